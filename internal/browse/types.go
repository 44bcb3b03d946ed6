package browse

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/scadad/internal/channel"
)

// Filter selects which kind of address-space references a browse follows.
type Filter string

const (
	// FilterValue browses value nodes (the default).
	FilterValue Filter = "value"
	// FilterEvent browses event sources.
	FilterEvent Filter = "event"
	// FilterAlarmCondition browses alarm and condition nodes.
	FilterAlarmCondition Filter = "alarm_condition"
)

// ParseFilter parses a filter name. An empty string means FilterValue.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return FilterValue, nil
	case FilterValue:
		return FilterValue, nil
	case FilterEvent:
		return FilterEvent, nil
	case FilterAlarmCondition:
		return FilterAlarmCondition, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
}

// HasChildren is the tri-state child indicator. The driver does not reliably
// report whether a node has children, so yes/no are inferred from the node
// class and unknown means "must ask".
type HasChildren int8

const (
	// ChildrenUnknown means the node must be browsed to find out.
	ChildrenUnknown HasChildren = iota
	// ChildrenNo marks a leaf. Leaves are never re-queried.
	ChildrenNo
	// ChildrenYes marks a container.
	ChildrenYes
)

// String implements fmt.Stringer.
func (h HasChildren) String() string {
	switch h {
	case ChildrenYes:
		return "true"
	case ChildrenNo:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalText keeps the tri-state explicit on the wire.
func (h HasChildren) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HasChildren) UnmarshalText(text []byte) error {
	switch string(text) {
	case "true":
		*h = ChildrenYes
	case "false":
		*h = ChildrenNo
	case "unknown", "":
		*h = ChildrenUnknown
	default:
		return fmt.Errorf("invalid has_children value %q", text)
	}
	return nil
}

// NodeClass is the coarse node category reported by the driver. It is
// derived, not authoritative.
type NodeClass string

const (
	ClassObject   NodeClass = "object"
	ClassFolder   NodeClass = "folder"
	ClassView     NodeClass = "view"
	ClassVariable NodeClass = "variable"
	ClassMethod   NodeClass = "method"
	ClassUnknown  NodeClass = "unknown"
)

func classOf(raw string) NodeClass {
	switch NodeClass(strings.ToLower(strings.TrimSpace(raw))) {
	case ClassObject:
		return ClassObject
	case ClassFolder:
		return ClassFolder
	case ClassView:
		return ClassView
	case ClassVariable:
		return ClassVariable
	case ClassMethod:
		return ClassMethod
	default:
		return ClassUnknown
	}
}

// childHint infers the tri-state child indicator from the node class.
// Objects, folders and views organize the namespace, variables and methods
// terminate it, anything else has to be asked.
func (c NodeClass) childHint() HasChildren {
	switch c {
	case ClassObject, ClassFolder, ClassView:
		return ChildrenYes
	case ClassVariable, ClassMethod:
		return ChildrenNo
	default:
		return ChildrenUnknown
	}
}

// Node is one entry in the external namespace.
type Node struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Class       NodeClass   `json:"class"`
	HasChildren HasChildren `json:"has_children"`
}

// nodeFromRaw converts a driver entry. Entries without a display name are
// discarded; the reported ok is false for those.
func nodeFromRaw(r channel.RawNode) (Node, bool) {
	if r.DisplayName == "" {
		return Node{}, false
	}
	class := classOf(r.Class)
	return Node{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		Class:       class,
		HasChildren: class.childHint(),
	}, true
}

func nodesFromRaw(raw []channel.RawNode) []Node {
	nodes := make([]Node, 0, len(raw))
	for _, r := range raw {
		if n, ok := nodeFromRaw(r); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Branch identifies a container node in the explored/expandable partition.
type Branch struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
}

// Stats summarizes the work one browse performed.
type Stats struct {
	APICalls  int `json:"api_calls"`
	MaxDepth  int `json:"max_depth"`
	LeafCount int `json:"leaf_count"`
}

// Result is the outcome of a browse: either a full unpaginated result set or
// a page over one.
type Result struct {
	Nodes          []Node   `json:"nodes"`
	IsPartial      bool     `json:"is_partial"`
	TotalAvailable int      `json:"total_available"`
	ActualDepth    int      `json:"actual_depth"`
	Note           string   `json:"note,omitempty"`
	Explored       []string `json:"explored_branches"`
	Expandable     []Branch `json:"expandable_branches"`
	NextOffset     *int     `json:"next_offset,omitempty"`
	Stats          Stats    `json:"stats"`
}
