package replay

import "github.com/shredchain/shredger/pkg/types"

// Bank is the execution layer the replay stage commits verified entries
// to. Its transaction-processing internals are out of scope for this
// core; the stage only needs the tick/hash bookkeeping process_entries
// exposes.
type Bank interface {
	// TickHeight returns the number of ticks committed so far, across
	// all slots since genesis.
	TickHeight() uint64

	// LastID returns the PoH tip committed so far.
	LastID() [32]byte

	// ProcessEntries commits a contiguous, chain-verified prefix of
	// entries, advancing TickHeight/LastID by however much of the
	// prefix it accepts. An error means the bank stopped partway
	// through the prefix; already-committed entries are not rolled
	// back.
	ProcessEntries(entries []types.Entry) error
}

// LeaderSchedule resolves the pubkey expected to lead a given slot. This
// is a narrower, identity-only view than blockstore.LeaderSchedule
// (which resolves a verification key for signature checks) since the
// replay stage only ever compares leaders for equality.
type LeaderSchedule interface {
	LeaderForSlot(slot types.Slot) (pubkey string, ok bool)
}

// VoteSink receives vote transactions the replay stage constructs at
// the end of each slot's ticks. A nil VoteSink disables voting.
type VoteSink interface {
	SubmitVote(slot types.Slot, tickHeight uint64, lastID [32]byte) error
}
