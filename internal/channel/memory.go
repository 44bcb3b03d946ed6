package channel

import (
	"context"
	"fmt"
	"sync"
)

// MemoryNode is one entry in the simulated address space.
type MemoryNode struct {
	ID          string
	DisplayName string
	Class       string
	Children    []*MemoryNode

	// Filters lists the non-default filter classes this node answers for,
	// such as "event" or "alarm_condition". Every node matches the default
	// value filter; containers match every filter so traversal stays
	// possible, the way a real driver keeps the hierarchy browsable.
	Filters []string
}

// Memory is an in-process Channel backed by a static node tree. It stands in
// for a real peripheral driver in tests and in `--channel memory` dev mode:
// commands are answered asynchronously through registered subscribers, the
// same way a driver's notification callback would fire.
type Memory struct {
	mu      sync.Mutex
	nodes   map[string]*MemoryNode
	subs    map[string]map[int]Handler
	nextSub int

	sendErrs map[string]error
	silent   map[string]bool

	sends int
}

// NewMemory creates an empty simulated driver.
func NewMemory() *Memory {
	return &Memory{
		nodes:    make(map[string]*MemoryNode),
		subs:     make(map[string]map[int]Handler),
		sendErrs: make(map[string]error),
		silent:   make(map[string]bool),
	}
}

// AddTree indexes root and all of its descendants.
func (m *Memory) AddTree(root *MemoryNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index(root)
}

func (m *Memory) index(n *MemoryNode) {
	if n == nil {
		return
	}
	m.nodes[n.ID] = n
	for _, c := range n.Children {
		m.index(c)
	}
}

// FailTarget makes SendBrowseCommand fail for one target id.
func (m *Memory) FailTarget(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErrs[id] = err
}

// SilenceTarget accepts commands for id but never publishes a reply.
func (m *Memory) SilenceTarget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silent[id] = true
}

// SendCount reports how many commands were accepted.
func (m *Memory) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

// SendBrowseCommand resolves the target's descendants down to depth levels
// and delivers them asynchronously to every subscriber of connectionID.
func (m *Memory) SendBrowseCommand(ctx context.Context, connectionID, token, target string, depth int, filter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendErrs[target]; err != nil {
		return err
	}
	m.sends++
	if m.silent[target] {
		return nil
	}

	node, ok := m.nodes[target]
	var raw []RawNode
	if ok {
		raw = collect(node, depth, filter)
	}

	handlers := make([]Handler, 0, len(m.subs[connectionID]))
	for _, h := range m.subs[connectionID] {
		handlers = append(handlers, h)
	}

	reply := Reply{Token: token, Nodes: raw}
	go func() {
		for _, h := range handlers {
			h(reply)
		}
	}()
	return nil
}

// collect gathers descendants of n down to depth levels, excluding n itself.
// Entries without a display name or outside the filter are dropped the way
// a real driver drops them.
func collect(n *MemoryNode, depth int, filter string) []RawNode {
	if depth <= 0 {
		return nil
	}
	var out []RawNode
	for _, c := range n.Children {
		if c.DisplayName != "" && matchesFilter(c, filter) {
			out = append(out, RawNode{ID: c.ID, DisplayName: c.DisplayName, Class: c.Class})
		}
		out = append(out, collect(c, depth-1, filter)...)
	}
	return out
}

func matchesFilter(n *MemoryNode, filter string) bool {
	if filter == "" || filter == "value" {
		return true
	}
	switch n.Class {
	case "object", "folder", "view":
		return true
	}
	for _, f := range n.Filters {
		if f == filter {
			return true
		}
	}
	return false
}

// Subscribe registers a reply handler for connectionID.
func (m *Memory) Subscribe(connectionID string, h Handler) (Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("handler is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[connectionID] == nil {
		m.subs[connectionID] = make(map[int]Handler)
	}
	id := m.nextSub
	m.nextSub++
	m.subs[connectionID][id] = h

	return &memorySub{m: m, conn: connectionID, id: id}, nil
}

type memorySub struct {
	m    *Memory
	conn string
	id   int
}

func (s *memorySub) Unsubscribe() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.subs[s.conn], s.id)
	return nil
}
