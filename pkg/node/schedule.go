package node

import (
	"crypto/ed25519"
	"math/rand"
	"sync"

	"github.com/shredchain/shredger/pkg/identity"
	"github.com/shredchain/shredger/pkg/types"
)

// Validator is one entry in the stake table the leader schedule is
// computed from.
type Validator struct {
	Pubkey string
	Stake  uint64
}

// LeaderSchedule computes the deterministic (epoch, slot_in_epoch) ->
// pubkey map spec.md calls out as "a pure function": a stake-weighted
// shuffle seeded by the epoch number, computed lazily per epoch. Only
// one epoch is cached: a lookup for a slot in any other epoch
// recomputes the schedule and replaces the cached one.
type LeaderSchedule struct {
	validators   []Validator
	slotsPerEpoch types.Slot

	mu        sync.Mutex
	epoch     uint64
	schedule  []string // pubkey per slot_in_epoch
}

func NewLeaderSchedule(validators []Validator, slotsPerEpoch types.Slot) *LeaderSchedule {
	if slotsPerEpoch == 0 {
		slotsPerEpoch = 1
	}
	return &LeaderSchedule{validators: validators, slotsPerEpoch: slotsPerEpoch, epoch: ^uint64(0)}
}

func (ls *LeaderSchedule) epochOf(slot types.Slot) (epoch uint64, slotInEpoch types.Slot) {
	return uint64(slot) / uint64(ls.slotsPerEpoch), slot % ls.slotsPerEpoch
}

// LeaderForSlot satisfies replay.LeaderSchedule.
func (ls *LeaderSchedule) LeaderForSlot(slot types.Slot) (string, bool) {
	epoch, slotInEpoch := ls.epochOf(slot)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if epoch != ls.epoch {
		ls.schedule = computeSchedule(ls.validators, ls.slotsPerEpoch, epoch)
		ls.epoch = epoch
	}
	if int(slotInEpoch) >= len(ls.schedule) {
		return "", false
	}
	return ls.schedule[slotInEpoch], true
}

// computeSchedule builds one epoch's slot assignments: each validator
// appears a number of times proportional to its stake, then the
// sequence is shuffled with a generator seeded by the epoch number so
// every node derives the identical schedule independently.
func computeSchedule(validators []Validator, slotsPerEpoch types.Slot, epoch uint64) []string {
	var totalStake uint64
	for _, v := range validators {
		totalStake += v.Stake
	}
	if totalStake == 0 || len(validators) == 0 {
		return nil
	}

	slots := make([]string, 0, slotsPerEpoch)
	for _, v := range validators {
		count := int(uint64(slotsPerEpoch) * v.Stake / totalStake)
		for i := 0; i < count; i++ {
			slots = append(slots, v.Pubkey)
		}
	}
	for len(slots) < int(slotsPerEpoch) {
		slots = append(slots, validators[len(slots)%len(validators)].Pubkey)
	}
	slots = slots[:slotsPerEpoch]

	rng := rand.New(rand.NewSource(int64(epoch)))
	rng.Shuffle(len(slots), func(i, j int) { slots[i], slots[j] = slots[j], slots[i] })
	return slots
}

// BlockstoreSchedule adapts a LeaderSchedule's string pubkeys into the
// ed25519.PublicKey form blockstore.LeaderSchedule verifies shreds
// against, decoding and caching each lookup.
type BlockstoreSchedule struct {
	ls *LeaderSchedule

	mu    sync.Mutex
	cache map[string]ed25519.PublicKey
}

func NewBlockstoreSchedule(ls *LeaderSchedule) *BlockstoreSchedule {
	return &BlockstoreSchedule{ls: ls, cache: make(map[string]ed25519.PublicKey)}
}

func (b *BlockstoreSchedule) LeaderForSlot(slot types.Slot) (ed25519.PublicKey, bool) {
	pubkey, ok := b.ls.LeaderForSlot(slot)
	if !ok {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if pub, ok := b.cache[pubkey]; ok {
		return pub, true
	}
	pub, err := identity.DecodePubkey(pubkey)
	if err != nil {
		return nil, false
	}
	b.cache[pubkey] = pub
	return pub, true
}
