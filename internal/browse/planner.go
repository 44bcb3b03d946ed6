package browse

import (
	"context"

	"go.uber.org/zap"
)

// Strategy tells the service how to execute a planned browse.
type Strategy string

const (
	// StrategySingle issues one driver call at the planned depth.
	StrategySingle Strategy = "single"
	// StrategyAutoRoot probes a well-known root at depth 2, retrying at
	// depth 1 when the result overflows the page budget.
	StrategyAutoRoot Strategy = "auto_root"
	// StrategyAutoBranch hands the target to the explorer, which manages
	// depth internally.
	StrategyAutoBranch Strategy = "auto_branch"
)

// Plan is the planner's verdict for one browse target.
type Plan struct {
	Depth    int
	Strategy Strategy
}

// wellKnownRoots are the standard namespace anchors that get the bounded
// two-candidate auto-root treatment instead of full recursive exploration.
var wellKnownRoots = map[string]bool{
	"i=84":      true, // Root folder
	"i=85":      true, // Objects folder
	"i=86":      true, // Types folder
	"i=87":      true, // Views folder
	"ns=0;i=84": true,
	"ns=0;i=85": true,
	"ns=0;i=86": true,
	"ns=0;i=87": true,
}

// Planner decides how deep a browse may go.
type Planner struct {
	limits *Limits
	send   sendFunc
	logger *zap.Logger
}

// NewPlanner creates a planner issuing probe calls through send.
func NewPlanner(limits *Limits, send sendFunc, logger *zap.Logger) *Planner {
	if limits == nil {
		limits = DefaultLimits()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{limits: limits, send: send, logger: logger}
}

// Plan validates a caller-supplied depth or auto-selects a strategy when
// requested is nil. Depths outside [1, MaxRequestedDepth] are rejected
// before any driver I/O; for deeper requests a depth-1 probe estimates the
// branching factor, and requests that would provably overflow the budget are
// rejected naming the maximum safe depth.
func (p *Planner) Plan(ctx context.Context, target string, filter Filter, requested *int) (Plan, error) {
	if requested == nil {
		if wellKnownRoots[target] {
			return Plan{Depth: 2, Strategy: StrategyAutoRoot}, nil
		}
		return Plan{Strategy: StrategyAutoBranch}, nil
	}

	depth := *requested
	if depth < 1 || depth > p.limits.MaxRequestedDepth {
		return Plan{}, &DepthRejectedError{Requested: depth, MaxSafe: p.limits.MaxRequestedDepth}
	}
	if depth == 1 {
		return Plan{Depth: 1, Strategy: StrategySingle}, nil
	}

	children, err := p.send(ctx, target, filter, 1)
	if err != nil {
		return Plan{}, err
	}
	n := len(children)

	// Threshold checks run strictest-first.
	if n > p.limits.WideBranchChildren {
		p.logger.Debug("rejecting wide branch",
			zap.String("target", target),
			zap.Int("children", n),
			zap.Int("requested_depth", depth))
		return Plan{}, &DepthRejectedError{Requested: depth, MaxSafe: 1, Children: n}
	}
	if n > p.limits.DeepBranchChildren && depth > 2 {
		return Plan{}, &DepthRejectedError{Requested: depth, MaxSafe: 2, Children: n}
	}

	return Plan{Depth: depth, Strategy: StrategySingle}, nil
}
