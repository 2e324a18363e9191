package repair

import (
	"sort"

	"github.com/shredchain/shredger/pkg/types"
)

// forkNode is one slot's entry in the weight arena. Nodes are addressed
// by slot id through RepairWeight's map, never by pointer to another
// node, so pruning a subtree is a matter of deleting map entries rather
// than unlinking a pointer graph (spec.md §9's "avoid recursive
// references; walk by id").
type forkNode struct {
	slot     types.Slot
	parent   types.Slot
	hasMeta  bool // true once the blockstore has actually received a shred for this slot
	weight   uint64
	children map[types.Slot]struct{}
}

// RepairWeight is a weighted fork tree rooted at the node's current
// finalized root, biasing repair toward heavily-voted forks. It is
// single-writer (the repair service owns it) per spec.md §5.
type RepairWeight struct {
	root  types.Slot
	nodes map[types.Slot]*forkNode
}

func NewRepairWeight(root types.Slot) *RepairWeight {
	w := &RepairWeight{root: root, nodes: make(map[types.Slot]*forkNode)}
	w.nodeFor(root)
	return w
}

func (w *RepairWeight) nodeFor(slot types.Slot) *forkNode {
	n, ok := w.nodes[slot]
	if !ok {
		n = &forkNode{slot: slot, children: make(map[types.Slot]struct{})}
		w.nodes[slot] = n
	}
	return n
}

// Observe records that the blockstore has a meta for slot chained to
// parentSlot, creating placeholder nodes for either endpoint that the
// arena hasn't seen yet.
func (w *RepairWeight) Observe(slot, parentSlot types.Slot) {
	n := w.nodeFor(slot)
	n.hasMeta = true
	n.parent = parentSlot
	if slot == parentSlot {
		return
	}
	p := w.nodeFor(parentSlot)
	p.children[slot] = struct{}{}
}

// AddVote adds stake weight to slot's node, creating it if unseen.
func (w *RepairWeight) AddVote(slot types.Slot, stake uint64) {
	w.nodeFor(slot).weight += stake
}

// SetRoot advances the tracked root, forgetting any node strictly below
// the new root — the reference repair service calls this "purging
// outdated slots from the weighting heuristic" on every loop iteration.
func (w *RepairWeight) SetRoot(root types.Slot) {
	w.root = root
	for slot := range w.nodes {
		if slot < root {
			delete(w.nodes, slot)
		}
	}
	w.nodeFor(root)
}

// subtreeWeight sums a node's own weight and every descendant's weight.
func (w *RepairWeight) subtreeWeight(slot types.Slot) uint64 {
	n, ok := w.nodes[slot]
	if !ok {
		return 0
	}
	total := n.weight
	for child := range n.children {
		total += w.subtreeWeight(child)
	}
	return total
}

// BestOrphans returns up to max slot ids that are orphan roots — nodes
// with no meta of their own that aren't the tracked root — ranked by
// subtree weight descending, ties broken by lower slot first for
// determinism.
func (w *RepairWeight) BestOrphans(max int) []types.Slot {
	var orphans []types.Slot
	for slot, n := range w.nodes {
		if n.hasMeta || slot == w.root {
			continue
		}
		orphans = append(orphans, slot)
	}
	weights := make(map[types.Slot]uint64, len(orphans))
	for _, slot := range orphans {
		weights[slot] = w.subtreeWeight(slot)
	}
	sort.Slice(orphans, func(i, j int) bool {
		if weights[orphans[i]] != weights[orphans[j]] {
			return weights[orphans[i]] > weights[orphans[j]]
		}
		return orphans[i] < orphans[j]
	})
	if len(orphans) > max {
		orphans = orphans[:max]
	}
	return orphans
}

// Root reports the tracked finalized root slot.
func (w *RepairWeight) Root() types.Slot { return w.root }

// Children returns the known child slots of slot, for fork traversal.
func (w *RepairWeight) Children(slot types.Slot) []types.Slot {
	n, ok := w.nodes[slot]
	if !ok {
		return nil
	}
	children := make([]types.Slot, 0, len(n.children))
	for c := range n.children {
		children = append(children, c)
	}
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	return children
}
