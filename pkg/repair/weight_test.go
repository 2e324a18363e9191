package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shredchain/shredger/pkg/types"
)

func TestRepairWeightBestOrphansRanksBySubtreeWeight(t *testing.T) {
	w := NewRepairWeight(0)

	// Two orphan roots, 5 and 9, each with a child carrying votes.
	w.Observe(6, 5)
	w.Observe(10, 9)
	w.AddVote(6, 100)
	w.AddVote(10, 500)

	orphans := w.BestOrphans(5)
	assert.Equal(t, []types.Slot{9, 5}, orphans)
}

func TestRepairWeightBestOrphansTieBreaksBySlot(t *testing.T) {
	w := NewRepairWeight(0)
	w.Observe(3, 2)
	w.Observe(7, 6)

	orphans := w.BestOrphans(5)
	assert.Equal(t, []types.Slot{2, 6}, orphans)
}

func TestRepairWeightBestOrphansExcludesRootAndKnownSlots(t *testing.T) {
	w := NewRepairWeight(4)
	w.Observe(4, 4) // the root itself, self-parented
	w.Observe(5, 4) // child of root, has meta: not an orphan

	assert.Empty(t, w.BestOrphans(5))
}

func TestRepairWeightBestOrphansRespectsMax(t *testing.T) {
	w := NewRepairWeight(0)
	w.Observe(10, 9)
	w.Observe(20, 19)
	w.Observe(30, 29)

	assert.Len(t, w.BestOrphans(2), 2)
}

func TestRepairWeightSetRootPrunesBelowRoot(t *testing.T) {
	w := NewRepairWeight(0)
	w.Observe(1, 0)
	w.Observe(2, 1)
	w.Observe(3, 2)

	w.SetRoot(2)

	assert.Equal(t, types.Slot(2), w.Root())
	assert.Nil(t, w.Children(0))
	assert.Equal(t, []types.Slot{3}, w.Children(2))
}

func TestRepairWeightChildrenSorted(t *testing.T) {
	w := NewRepairWeight(0)
	w.Observe(5, 0)
	w.Observe(3, 0)
	w.Observe(9, 0)

	assert.Equal(t, []types.Slot{3, 5, 9}, w.Children(0))
}
