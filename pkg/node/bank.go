package node

import (
	"sync"

	"github.com/shredchain/shredger/pkg/repair"
	"github.com/shredchain/shredger/pkg/replay"
	"github.com/shredchain/shredger/pkg/types"
)

// Bank is the full slice of the execution layer a node needs: the root
// slot repair prunes its weight tree to, plus the tick height, hash
// chain tip, and entry commit path replay drives. Gossip/consensus and
// the bank's internal execution are explicit external collaborators
// (spec.md names both out of scope) — Node only ever consumes this
// interface, never implements it.
type Bank interface {
	repair.Bank
	replay.Bank
}

// StaticStakes is a fixed stake table, standing in for the "ClusterSlots
// view" spec.md describes as externally supplied. Stake is looked up by
// pubkey only; it does not vary per slot.
type StaticStakes struct {
	stakes map[string]uint64
}

func NewStaticStakes(validators []Validator) *StaticStakes {
	stakes := make(map[string]uint64, len(validators))
	for _, v := range validators {
		stakes[v.Pubkey] = v.Stake
	}
	return &StaticStakes{stakes: stakes}
}

func (s *StaticStakes) StakeForSlot(_ types.Slot, pubkey string) uint64 {
	return s.stakes[pubkey]
}

// MinimalBank is a bare in-memory stand-in for the execution layer:
// enough to let shredgerd run end to end without a real bank attached.
// It has no transaction execution and no consensus-driven root
// advancement; RootSlot never moves past 0, which is honest about what
// it is rather than faking finality.
type MinimalBank struct {
	mu         sync.Mutex
	tickHeight uint64
	lastID     [32]byte
}

func NewMinimalBank() *MinimalBank {
	return &MinimalBank{}
}

func (b *MinimalBank) RootSlot() types.Slot { return 0 }

func (b *MinimalBank) TickHeight() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tickHeight
}

func (b *MinimalBank) LastID() [32]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastID
}

// ProcessEntries commits a prefix by counting its ticks and adopting
// the PoH tip of its last entry; it runs no transactions.
func (b *MinimalBank) ProcessEntries(entries []types.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		if e.IsTick() {
			b.tickHeight++
		}
	}
	if len(entries) > 0 {
		b.lastID = entries[len(entries)-1].Hash
	}
	return nil
}
