package browse

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/scadad/internal/channel"
)

func plantDriver() *channel.Memory {
	m := channel.NewMemory()
	m.AddTree(&channel.MemoryNode{
		ID: "ns=2;s=Plant", DisplayName: "Plant", Class: "object",
		Children: []*channel.MemoryNode{
			{
				ID: "ns=2;s=Plant.Line1", DisplayName: "Line1", Class: "object",
				Children: []*channel.MemoryNode{
					{ID: "ns=2;s=Plant.Line1.Speed", DisplayName: "Speed", Class: "variable"},
					{ID: "ns=2;s=Plant.Line1.Temp", DisplayName: "Temp", Class: "variable"},
				},
			},
			{
				ID: "ns=2;s=Plant.Line2", DisplayName: "Line2", Class: "object",
				Children: []*channel.MemoryNode{
					{ID: "ns=2;s=Plant.Line2.Speed", DisplayName: "Speed", Class: "variable"},
					{ID: "ns=2;s=Plant.Line2.Temp", DisplayName: "Temp", Class: "variable"},
				},
			},
			{
				ID: "ns=2;s=Plant.Line3", DisplayName: "Line3", Class: "object",
				Children: []*channel.MemoryNode{
					{ID: "ns=2;s=Plant.Line3.Speed", DisplayName: "Speed", Class: "variable"},
					{ID: "ns=2;s=Plant.Line3.Temp", DisplayName: "Temp", Class: "variable"},
				},
			},
		},
	})

	wide := &channel.MemoryNode{ID: "ns=2;s=Wide", DisplayName: "Wide", Class: "object"}
	for i := 0; i < 120; i++ {
		wide.Children = append(wide.Children, &channel.MemoryNode{
			ID:          fmt.Sprintf("ns=2;s=Wide.%d", i),
			DisplayName: fmt.Sprintf("Tag%d", i),
			Class:       "variable",
		})
	}
	m.AddTree(wide)

	m.AddTree(&channel.MemoryNode{
		ID: "i=85", DisplayName: "Objects", Class: "object",
		Children: []*channel.MemoryNode{
			{
				ID: "i=85.server", DisplayName: "Server", Class: "object",
				Children: []*channel.MemoryNode{
					{ID: "i=85.server.status", DisplayName: "Status", Class: "variable"},
				},
			},
		},
	})
	return m
}

func newTestService(t *testing.T, m *channel.Memory) *Service {
	t.Helper()
	svc, err := NewService(m, DefaultLimits(), nil)
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)

	bad := DefaultLimits()
	bad.HardLimit = 1
	_, err = NewService(channel.NewMemory(), bad, nil)
	require.Error(t, err)
}

func TestService_BrowseValidatesParams(t *testing.T) {
	svc := newTestService(t, plantDriver())
	ctx := context.Background()

	_, err := svc.Browse(ctx, Params{Target: "x"})
	assert.ErrorIs(t, err, ErrEmptyConnection)

	_, err = svc.Browse(ctx, Params{ConnectionID: "conn-1"})
	assert.ErrorIs(t, err, ErrEmptyTarget)

	_, err = svc.Browse(ctx, Params{ConnectionID: "conn-1", Target: "x", Filter: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestService_AutoBranchExploresToLeaves(t *testing.T) {
	svc := newTestService(t, plantDriver())

	res, err := svc.Browse(context.Background(), Params{
		ConnectionID: "conn-1",
		Target:       "ns=2;s=Plant",
	})
	require.NoError(t, err)

	assert.Len(t, res.Nodes, 9)
	assert.False(t, res.IsPartial)
	assert.ElementsMatch(t, []string{"ns=2;s=Plant.Line1", "ns=2;s=Plant.Line2", "ns=2;s=Plant.Line3"}, res.Explored)
	assert.Empty(t, res.Expandable)
	assert.Equal(t, 6, res.Stats.LeafCount)
}

func TestService_CacheHitAvoidsDriverCalls(t *testing.T) {
	m := plantDriver()
	svc := newTestService(t, m)
	ctx := context.Background()
	p := Params{ConnectionID: "conn-1", Target: "ns=2;s=Plant"}

	first, err := svc.Browse(ctx, p)
	require.NoError(t, err)
	sends := m.SendCount()
	require.Greater(t, sends, 0)

	second, err := svc.Browse(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, sends, m.SendCount(), "cached browse must issue no driver calls")
	assert.Equal(t, first.Nodes, second.Nodes)
}

func TestService_InvalidateForcesRefresh(t *testing.T) {
	m := plantDriver()
	svc := newTestService(t, m)
	ctx := context.Background()
	p := Params{ConnectionID: "conn-1", Target: "ns=2;s=Plant"}

	_, err := svc.Browse(ctx, p)
	require.NoError(t, err)
	sends := m.SendCount()

	removed := svc.Invalidate("conn-1")
	assert.Equal(t, 1, removed)

	_, err = svc.Browse(ctx, p)
	require.NoError(t, err)
	assert.Greater(t, m.SendCount(), sends)
}

func TestService_DepthRejectedOnWideTarget(t *testing.T) {
	m := plantDriver()
	svc := newTestService(t, m)

	_, err := svc.Browse(context.Background(), Params{
		ConnectionID: "conn-1",
		Target:       "ns=2;s=Wide",
		Depth:        intPtr(3),
	})
	var rej *DepthRejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 1, rej.MaxSafe)
	assert.Equal(t, 120, rej.Children)
	assert.Equal(t, 1, m.SendCount(), "only the probe may reach the driver")
}

func TestService_SingleShotWithExplicitDepth(t *testing.T) {
	svc := newTestService(t, plantDriver())

	res, err := svc.Browse(context.Background(), Params{
		ConnectionID: "conn-1",
		Target:       "ns=2;s=Plant",
		Depth:        intPtr(1),
	})
	require.NoError(t, err)

	assert.Len(t, res.Nodes, 3)
	assert.Equal(t, 1, res.ActualDepth)
	assert.Len(t, res.Expandable, 3, "containers past the cut are expandable")
	assert.True(t, res.IsPartial, "expandable containers mean the subtree was not fully browsed")
	assert.Equal(t, 1, res.Stats.APICalls)
}

// An exploration cut by the depth valve whose node count fits in one page
// must still reach the caller as partial, with the cut branch named.
func TestService_DepthValveCutStaysPartialInOnePage(t *testing.T) {
	m := channel.NewMemory()
	m.AddTree(&channel.MemoryNode{
		ID: "ns=2;s=Rig", DisplayName: "Rig", Class: "object",
		Children: []*channel.MemoryNode{
			{
				ID: "ns=2;s=Rig.A", DisplayName: "A", Class: "object",
				Children: []*channel.MemoryNode{
					{
						ID: "ns=2;s=Rig.A.B", DisplayName: "B", Class: "object",
						Children: []*channel.MemoryNode{
							{ID: "ns=2;s=Rig.A.B.Leaf", DisplayName: "Leaf", Class: "variable"},
						},
					},
				},
			},
		},
	})

	limits := DefaultLimits()
	limits.SoftLimit = 300
	limits.HardLimit = 400 // keeps the explorer on single-level batches
	limits.MaxBranchDepth = 2

	svc, err := NewService(m, limits, nil)
	require.NoError(t, err)

	res, err := svc.Browse(context.Background(), Params{
		ConnectionID: "conn-1",
		Target:       "ns=2;s=Rig",
	})
	require.NoError(t, err)

	require.Len(t, res.Expandable, 1)
	assert.Equal(t, "ns=2;s=Rig.A.B", res.Expandable[0].ID)
	assert.True(t, res.IsPartial, "one-page result with a cut branch must not read as complete")
	assert.Nil(t, res.NextOffset)
}

// The planner's depth-1 probe is a driver round trip and must show up in
// the reported call count.
func TestService_ExplicitDepthCountsProbeCall(t *testing.T) {
	m := plantDriver()
	svc := newTestService(t, m)

	res, err := svc.Browse(context.Background(), Params{
		ConnectionID: "conn-1",
		Target:       "ns=2;s=Plant",
		Depth:        intPtr(2),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, m.SendCount())
	assert.Equal(t, 2, res.Stats.APICalls)
}

func TestService_AutoRootUsesDepthTwo(t *testing.T) {
	svc := newTestService(t, plantDriver())

	res, err := svc.Browse(context.Background(), Params{
		ConnectionID: "conn-1",
		Target:       "i=85",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.ActualDepth)
	assert.Len(t, res.Nodes, 2) // Server and its Status
	assert.Empty(t, res.Note)
}

func TestService_PaginatesResults(t *testing.T) {
	svc := newTestService(t, plantDriver())
	ctx := context.Background()

	var rebuilt []Node
	offset := 0
	pages := 0
	for {
		page, err := svc.Browse(ctx, Params{
			ConnectionID: "conn-1",
			Target:       "ns=2;s=Plant",
			Offset:       offset,
			Limit:        4,
		})
		require.NoError(t, err)
		rebuilt = append(rebuilt, page.Nodes...)
		pages++
		if page.NextOffset == nil {
			break
		}
		offset = *page.NextOffset
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, rebuilt, 9)
}

func TestService_SeparateConnectionsDoNotShareCache(t *testing.T) {
	m := plantDriver()
	svc := newTestService(t, m)
	ctx := context.Background()

	_, err := svc.Browse(ctx, Params{ConnectionID: "conn-1", Target: "ns=2;s=Plant"})
	require.NoError(t, err)
	sends := m.SendCount()

	_, err = svc.Browse(ctx, Params{ConnectionID: "conn-2", Target: "ns=2;s=Plant"})
	require.NoError(t, err)
	assert.Greater(t, m.SendCount(), sends)
}
