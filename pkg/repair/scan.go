package repair

import (
	"time"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/types"
)

// requestsForSlot mirrors generate_repairs_for_slot from the reference
// repair service: a full slot needs nothing, a slot with no gap below
// its highest received index (consumed == received, including the
// zero/zero default for a slot that has never been inserted) needs a
// HighestShred request for index received onwards, and a slot with
// gaps needs targeted Shred requests for whichever indexes the
// blockstore reports missing.
func requestsForSlot(bs blockstore.Blockstore, meta types.SlotMetaSnapshot, repairDelay time.Duration, budget int) []Request {
	if budget <= 0 || meta.IsFull {
		return nil
	}
	if meta.Consumed == meta.Received {
		return []Request{{Kind: KindHighestWindowIndex, Slot: meta.Slot, Index: meta.Received}}
	}
	missing, err := bs.FindMissingDataIndexes(meta.Slot, meta.FirstShredTimestamp, meta.Consumed, meta.Received, repairDelay, budget)
	if err != nil {
		return nil
	}
	reqs := make([]Request, 0, len(missing))
	for _, idx := range missing {
		reqs = append(reqs, Request{Kind: KindWindowIndex, Slot: meta.Slot, Index: idx})
	}
	return reqs
}

// GenerateRepairsInRange generates repairs for every slot in [from, to],
// treating a slot with no blockstore meta as present-but-empty rather
// than skipping it, matching generate_repairs_in_range.
func GenerateRepairsInRange(bs blockstore.Blockstore, repairDelay time.Duration, from, to types.Slot, maxRepairs int) []Request {
	var requests []Request
	for slot := from; slot <= to; slot++ {
		if len(requests) >= maxRepairs {
			break
		}
		meta, err := bs.Meta(slot)
		if err != nil {
			meta = types.SlotMetaSnapshot{Slot: slot}
		}
		requests = append(requests, requestsForSlot(bs, meta, repairDelay, maxRepairs-len(requests))...)
	}
	return requests
}

// GenerateRepairsForFork walks the fork rooted at weight's tracked root
// breadth-first via each slot's known children, generating repairs along
// the way and feeding discovered parent/child links back into weight —
// matching generate_repairs_for_fork. The root itself is treated as
// present-but-empty when the blockstore has no meta for it yet, so a
// never-received root still produces a bootstrap request instead of
// stalling the walk before it starts.
func GenerateRepairsForFork(bs blockstore.Blockstore, weight *RepairWeight, repairDelay time.Duration, maxRepairs int) []Request {
	var requests []Request
	pending := []types.Slot{weight.Root()}
	for len(requests) < maxRepairs && len(pending) > 0 {
		slot := pending[0]
		pending = pending[1:]

		meta, err := bs.Meta(slot)
		if err != nil {
			if slot == weight.Root() {
				requests = append(requests, requestsForSlot(bs, types.SlotMetaSnapshot{Slot: slot}, repairDelay, maxRepairs-len(requests))...)
			}
			continue
		}
		weight.Observe(meta.Slot, meta.ParentSlot)
		requests = append(requests, requestsForSlot(bs, meta, repairDelay, maxRepairs-len(requests))...)
		pending = append(pending, meta.NextSlots...)
	}
	return requests
}
