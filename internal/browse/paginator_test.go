package browse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_Basic(t *testing.T) {
	full := fullResult(10)

	page := Page(full, 0, 4, 800)
	assert.Len(t, page.Nodes, 4)
	assert.True(t, page.IsPartial)
	assert.Equal(t, 10, page.TotalAvailable)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 4, *page.NextOffset)
}

func TestPage_LastPage(t *testing.T) {
	full := fullResult(10)

	page := Page(full, 8, 4, 800)
	assert.Len(t, page.Nodes, 2)
	assert.False(t, page.IsPartial)
	assert.Nil(t, page.NextOffset)
}

func TestPage_Clamping(t *testing.T) {
	full := fullResult(10)

	t.Run("negative offset", func(t *testing.T) {
		page := Page(full, -5, 4, 800)
		assert.Equal(t, full.Nodes[0], page.Nodes[0])
	})

	t.Run("offset past end", func(t *testing.T) {
		page := Page(full, 50, 4, 800)
		assert.Empty(t, page.Nodes)
		assert.False(t, page.IsPartial)
		assert.Nil(t, page.NextOffset)
	})

	t.Run("zero limit falls back to max", func(t *testing.T) {
		page := Page(full, 0, 0, 800)
		assert.Len(t, page.Nodes, 10)
	})

	t.Run("limit above max is capped", func(t *testing.T) {
		page := Page(full, 0, 5000, 6)
		assert.Len(t, page.Nodes, 6)
	})
}

// A limit-cut exploration that fits in a single page must still be reported
// partial: the cut lives in the full result, not in the paging.
func TestPage_PartialFullResultStaysPartial(t *testing.T) {
	full := fullResult(5)
	full.IsPartial = true
	full.Expandable = []Branch{{ID: "c9", DisplayName: "Line9", Level: 2}}

	page := Page(full, 0, 800, 800)
	assert.Len(t, page.Nodes, 5)
	assert.True(t, page.IsPartial)
	assert.Nil(t, page.NextOffset, "nothing past the page, the cut is elsewhere")
}

func TestPage_CarriesFullResultMetadata(t *testing.T) {
	full := fullResult(10)
	full.Explored = []string{"c1"}
	full.Expandable = []Branch{{ID: "c2", DisplayName: "Line2", Level: 1}}
	full.Note = "depth reduced"
	full.Stats = Stats{APICalls: 4, MaxDepth: 2, LeafCount: 8}
	full.ActualDepth = 2

	page := Page(full, 0, 3, 800)
	assert.Equal(t, full.Explored, page.Explored)
	assert.Equal(t, full.Expandable, page.Expandable)
	assert.Equal(t, full.Note, page.Note)
	assert.Equal(t, full.Stats, page.Stats)
	assert.Equal(t, 2, page.ActualDepth)
}

// Concatenating successive pages reconstructs the full set exactly, with
// IsPartial false only on the last page.
func TestPage_ReconstructionLaw(t *testing.T) {
	full := fullResult(23)
	for _, k := range []int{1, 4, 7, 23, 40} {
		var rebuilt []Node
		offset := 0
		for {
			page := Page(full, offset, k, 800)
			rebuilt = append(rebuilt, page.Nodes...)
			if !page.IsPartial {
				assert.Nil(t, page.NextOffset)
				break
			}
			require.NotNil(t, page.NextOffset)
			offset = *page.NextOffset
		}
		assert.Equal(t, full.Nodes, rebuilt, "page size %d", k)
	}
}

func TestPage_DoesNotAliasFullResult(t *testing.T) {
	full := fullResult(5)
	page := Page(full, 0, 5, 800)

	page.Nodes[0].DisplayName = "mutated"
	assert.NotEqual(t, "mutated", full.Nodes[0].DisplayName)
}
