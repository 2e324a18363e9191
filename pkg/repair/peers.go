package repair

import (
	"errors"
	"math/rand"

	"github.com/shredchain/shredger/pkg/types"
)

// ErrNoPeers is returned when the candidate peer set is empty.
var ErrNoPeers = errors.New("repair: no peers available")

// StakeLookup reports a peer's stake weight for a given slot, mirroring
// the reference ClusterSlots view repair_service.rs consults for
// weighted peer selection.
type StakeLookup interface {
	StakeForSlot(slot types.Slot, pubkey string) uint64
}

// Peers holds the candidate set a repair loop may send requests to:
// everyone gossip knows about who advertises a serve-repair address and
// isn't the local identity.
type Peers struct {
	localPubkey string
	contacts    []types.ContactInfo
	stakes      StakeLookup
	rng         *rand.Rand
}

func NewPeers(localPubkey string, contacts []types.ContactInfo, stakes StakeLookup, rng *rand.Rand) *Peers {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Peers{localPubkey: localPubkey, contacts: contacts, stakes: stakes, rng: rng}
}

// eligible returns contacts that advertise a serve-repair address and
// aren't the local node.
func (p *Peers) eligible() []types.ContactInfo {
	out := make([]types.ContactInfo, 0, len(p.contacts))
	for _, c := range p.contacts {
		if c.ServeRepair == nil || c.SelfRepair(p.localPubkey) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Select picks one peer for a repair request targeting slot, weighted
// by stake held for that slot. When every candidate's stake is zero, it
// falls back to a uniform pick — spec.md §4.3's "Peer selection".
func (p *Peers) Select(slot types.Slot) (types.ContactInfo, error) {
	candidates := p.eligible()
	if len(candidates) == 0 {
		return types.ContactInfo{}, ErrNoPeers
	}

	weights := make([]uint64, len(candidates))
	var total uint64
	for i, c := range candidates {
		if p.stakes != nil {
			weights[i] = p.stakes.StakeForSlot(slot, c.Pubkey)
		}
		total += weights[i]
	}
	if total == 0 {
		return candidates[p.rng.Intn(len(candidates))], nil
	}

	pick := uint64(p.rng.Int63n(int64(total)))
	var cursor uint64
	for i, w := range weights {
		cursor += w
		if pick < cursor {
			return candidates[i], nil
		}
	}
	return candidates[len(candidates)-1], nil
}
