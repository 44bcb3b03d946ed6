package browse

import (
	"context"

	"go.uber.org/zap"
)

// Explorer performs depth-first budget-aware exploration of one subtree. It
// keeps an explicit frame stack instead of recursing per node, which bounds
// memory and allows early termination at the limits.
type Explorer struct {
	limits *Limits
	send   sendFunc
	logger *zap.Logger
}

// NewExplorer creates an explorer issuing driver calls through send.
func NewExplorer(limits *Limits, send sendFunc, logger *zap.Logger) *Explorer {
	if limits == nil {
		limits = DefaultLimits()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explorer{limits: limits, send: send, logger: logger}
}

// frame is one pending subtree on the exploration stack.
type frame struct {
	id    string
	name  string
	depth int
	hint  HasChildren
}

// batchDepth picks the depth of the next driver call. Deeper batches trade a
// small risk of overshooting the budget, bounded by the hard limit, for
// large reductions in round trips, which dominate latency.
func (e *Explorer) batchDepth(accumulated int, hint HasChildren) int {
	if hint == ChildrenNo {
		return 1
	}
	remaining := e.limits.HardLimit - accumulated
	switch {
	case remaining > e.limits.BatchDeepRemaining:
		return 3
	case remaining > e.limits.BatchMidRemaining:
		return 2
	default:
		return 1
	}
}

// Explore walks the subtree under target down to leaves or limits. A failed
// sub-branch is recorded as expandable and exploration continues; the final
// Result always reflects the best aggregate outcome achievable within the
// limits.
func (e *Explorer) Explore(ctx context.Context, target string, filter Filter) (*Result, error) {
	res := &Result{}
	visited := make(map[string]bool)
	appended := make(map[string]bool)
	stack := []frame{{id: target, depth: 0}}
	truncated := false

	for len(stack) > 0 && len(res.Nodes) < e.limits.HardLimit {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// Idempotence against accidental duplicate enqueue.
		if visited[fr.id] {
			continue
		}
		visited[fr.id] = true

		if fr.depth > res.Stats.MaxDepth {
			res.Stats.MaxDepth = fr.depth
		}

		// Safety valve against pathological namespace depth.
		if fr.depth >= e.limits.MaxBranchDepth {
			res.Expandable = append(res.Expandable, Branch{ID: fr.id, DisplayName: fr.name, Level: fr.depth})
			continue
		}

		// Past the soft limit, branches already in progress finish cleanly
		// but no new top-level siblings are started.
		if len(res.Nodes) >= e.limits.SoftLimit && fr.depth <= 1 && fr.id != target {
			res.Expandable = append(res.Expandable, Branch{ID: fr.id, DisplayName: fr.name, Level: fr.depth})
			continue
		}

		batch := e.batchDepth(len(res.Nodes), fr.hint)
		nodes, err := e.send(ctx, fr.id, filter, batch)
		res.Stats.APICalls++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// One unreachable branch must not abort the whole exploration.
			e.logger.Warn("branch browse failed, recording as expandable",
				zap.String("target", fr.id),
				zap.Int("depth", fr.depth),
				zap.Error(err))
			res.Expandable = append(res.Expandable, Branch{ID: fr.id, DisplayName: fr.name, Level: fr.depth})
			continue
		}

		var children []frame
		for _, n := range nodes {
			if appended[n.ID] {
				continue
			}
			if len(res.Nodes) >= e.limits.HardLimit {
				truncated = true
				break
			}
			appended[n.ID] = true
			res.Nodes = append(res.Nodes, n)

			switch n.HasChildren {
			case ChildrenNo:
				res.Stats.LeafCount++
			default:
				// Containers and unknowns are candidates for expansion;
				// unknowns are not guaranteed to yield children.
				if !visited[n.ID] {
					children = append(children, frame{
						id:    n.ID,
						name:  n.DisplayName,
						depth: fr.depth + 1,
						hint:  n.HasChildren,
					})
				}
			}
		}

		if len(children) == 0 {
			// All leaves or nothing further to expand: the whole subtree of
			// this frame was retrieved. The initial target is not part of
			// the partition, only containers encountered below it.
			if fr.depth > 0 {
				res.Explored = append(res.Explored, fr.id)
			}
		} else {
			// Reverse push keeps exploration depth-first left-to-right.
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
	}

	// Whatever is still on the stack was cut off by a limit; report it so
	// the caller can re-issue a targeted browse.
	for i := len(stack) - 1; i >= 0; i-- {
		fr := stack[i]
		if visited[fr.id] {
			continue
		}
		visited[fr.id] = true
		res.Expandable = append(res.Expandable, Branch{ID: fr.id, DisplayName: fr.name, Level: fr.depth})
	}

	res.IsPartial = truncated || len(res.Expandable) > 0
	res.TotalAvailable = len(res.Nodes)
	res.ActualDepth = res.Stats.MaxDepth
	return res, nil
}
