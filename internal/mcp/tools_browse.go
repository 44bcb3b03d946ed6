package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/scadad/internal/browse"
	"github.com/fyrsmithlabs/scadad/internal/logging"
)

type namespaceBrowseInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"required,Peripheral connection to browse"`
	Target       string `json:"target" jsonschema:"required,Node ID to browse from (e.g. i=85 or ns=2;s=Plant.Line1)"`
	Filter       string `json:"filter,omitempty" jsonschema:"Node filter: value (default) or event or alarm_condition"`
	Depth        *int   `json:"depth,omitempty" jsonschema:"Explicit browse depth 1-5; omit for automatic depth selection"`
	Offset       int    `json:"offset,omitempty" jsonschema:"Pagination offset into the full result set"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum nodes per page (default: 800)"`
}

type browseNode struct {
	ID          string `json:"id" jsonschema:"Node ID"`
	DisplayName string `json:"display_name" jsonschema:"Human-readable node name"`
	Class       string `json:"class" jsonschema:"Node class (object folder variable method view)"`
	HasChildren string `json:"has_children" jsonschema:"true false or unknown"`
}

type browseBranch struct {
	ID          string `json:"id" jsonschema:"Branch node ID"`
	DisplayName string `json:"display_name" jsonschema:"Branch display name"`
	Level       int    `json:"level" jsonschema:"Depth level the branch was seen at"`
}

type namespaceBrowseOutput struct {
	Nodes          []browseNode   `json:"nodes" jsonschema:"Nodes in this page"`
	IsPartial      bool           `json:"is_partial" jsonschema:"True when more nodes exist beyond this page or unexplored branches remain"`
	TotalAvailable int            `json:"total_available" jsonschema:"Total nodes in the full result set"`
	ActualDepth    int            `json:"actual_depth" jsonschema:"Depth actually browsed"`
	Note           string         `json:"note,omitempty" jsonschema:"Explanation when the engine adjusted the request"`
	Explored       []string       `json:"explored_branches" jsonschema:"Branch IDs fully explored"`
	Expandable     []browseBranch `json:"expandable_branches" jsonschema:"Branches with unexplored children; browse these next"`
	NextOffset     *int           `json:"next_offset,omitempty" jsonschema:"Offset for the next page when is_partial"`
	APICalls       int            `json:"api_calls" jsonschema:"Driver round-trips used"`
	LeafCount      int            `json:"leaf_count" jsonschema:"Leaf nodes in the full result set"`
}

type cacheInvalidateInput struct {
	ConnectionID string `json:"connection_id" jsonschema:"required,Connection whose cached browse results should be dropped"`
}

type cacheInvalidateOutput struct {
	Removed int `json:"removed" jsonschema:"Number of cache entries removed"`
}

func (s *Server) registerBrowseTools() {
	// namespace_browse
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "namespace_browse",
		Description: "Browse a peripheral's node namespace recursively within a bounded node budget. Returns nodes, branches still worth expanding, and pagination state.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args namespaceBrowseInput) (*mcp.CallToolResult, namespaceBrowseOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "namespace_browse")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "namespace_browse")
			s.metrics.RecordInvocation(ctx, "namespace_browse", time.Since(start), toolErr)
		}()

		ctx = logging.WithConnectionID(ctx, args.ConnectionID)

		res, err := s.browseSvc.Browse(ctx, browse.Params{
			ConnectionID: args.ConnectionID,
			Target:       args.Target,
			Filter:       browse.Filter(args.Filter),
			Depth:        args.Depth,
			Offset:       args.Offset,
			Limit:        args.Limit,
		})
		if err != nil {
			toolErr = err
			return nil, namespaceBrowseOutput{}, browseToolError(err)
		}

		output := namespaceBrowseOutput{
			Nodes:          make([]browseNode, 0, len(res.Nodes)),
			IsPartial:      res.IsPartial,
			TotalAvailable: res.TotalAvailable,
			ActualDepth:    res.ActualDepth,
			Note:           res.Note,
			Explored:       res.Explored,
			Expandable:     make([]browseBranch, 0, len(res.Expandable)),
			NextOffset:     res.NextOffset,
			APICalls:       res.Stats.APICalls,
			LeafCount:      res.Stats.LeafCount,
		}
		for _, n := range res.Nodes {
			output.Nodes = append(output.Nodes, browseNode{
				ID:          n.ID,
				DisplayName: n.DisplayName,
				Class:       string(n.Class),
				HasChildren: n.HasChildren.String(),
			})
		}
		for _, b := range res.Expandable {
			output.Expandable = append(output.Expandable, browseBranch{
				ID:          b.ID,
				DisplayName: b.DisplayName,
				Level:       b.Level,
			})
		}

		s.logger.Debug("namespace_browse served",
			zap.String("connection_id", args.ConnectionID),
			zap.String("target", args.Target),
			zap.Int("nodes", len(output.Nodes)),
			zap.Bool("is_partial", output.IsPartial))

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: browseGuidance(res)},
			},
		}, output, nil
	})

	// cache_invalidate
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cache_invalidate",
		Description: "Drop cached browse results for a connection, forcing the next browse to hit the peripheral again. Use after the peripheral's namespace changed.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cacheInvalidateInput) (*mcp.CallToolResult, cacheInvalidateOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "cache_invalidate")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "cache_invalidate")
			s.metrics.RecordInvocation(ctx, "cache_invalidate", time.Since(start), toolErr)
		}()

		if args.ConnectionID == "" {
			toolErr = browse.ErrEmptyConnection
			return nil, cacheInvalidateOutput{}, toolErr
		}

		removed := s.browseSvc.Invalidate(args.ConnectionID)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Removed %d cached browse result(s) for %s", removed, args.ConnectionID)},
			},
		}, cacheInvalidateOutput{Removed: removed}, nil
	})
}

// browseGuidance builds the human-readable summary for a browse result.
// Truncation is always explicit: a partial result names the specific
// branches to browse next, so callers never mistake it for a complete one.
func browseGuidance(res *browse.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Found %d node(s) at depth %d", res.TotalAvailable, res.ActualDepth)
	if len(res.Nodes) < res.TotalAvailable {
		fmt.Fprintf(&b, " (showing %d)", len(res.Nodes))
	}
	b.WriteString(".")

	if res.Note != "" {
		b.WriteString(" ")
		b.WriteString(res.Note)
		b.WriteString(".")
	}

	if res.IsPartial {
		b.WriteString(" Result is partial.")
		if res.NextOffset != nil {
			fmt.Fprintf(&b, " Request offset=%d for the next page.", *res.NextOffset)
		}
	} else if len(res.Expandable) == 0 {
		b.WriteString(" Result is complete.")
	}
	// Branches are named off the partition, not the flag, so a result can
	// never claim completeness while pointing at unexplored subtrees.
	if len(res.Expandable) > 0 {
		names := make([]string, 0, len(res.Expandable))
		for i, br := range res.Expandable {
			if i == maxGuidanceBranches {
				names = append(names, fmt.Sprintf("and %d more", len(res.Expandable)-maxGuidanceBranches))
				break
			}
			names = append(names, fmt.Sprintf("%s (%s)", br.DisplayName, br.ID))
		}
		fmt.Fprintf(&b, " Unexplored branches, browse these next: %s.", strings.Join(names, ", "))
	}

	return b.String()
}

// maxGuidanceBranches caps how many expandable branches the guidance text
// names before collapsing the rest into a count.
const maxGuidanceBranches = 8

// browseToolError maps engine errors to messages that tell the caller what
// to do instead, not just what went wrong.
func browseToolError(err error) error {
	var depthErr *browse.DepthRejectedError
	if errors.As(err, &depthErr) {
		if depthErr.MaxSafe > 0 {
			return fmt.Errorf("%w: retry with depth=%d or browse sub-branches individually", err, depthErr.MaxSafe)
		}
		return err
	}
	if errors.Is(err, browse.ErrBrowseTimeout) {
		return fmt.Errorf("%w: the peripheral did not reply; check the connection and retry", err)
	}
	return err
}
