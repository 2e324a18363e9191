// Package blockstore is the persistent shred store the shred, repair, and
// replay components depend on: insertion with dedup/signature checks,
// per-slot progress tracking, missing-index discovery for repair, and
// contiguous-entry reassembly for replay.
package blockstore

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"
)

// ErrSlotNotFound is returned by Meta when no record exists for a slot.
var ErrSlotNotFound = errors.New("blockstore: slot not found")

// InsertionStats summarizes the outcome of one InsertShreds call.
type InsertionStats struct {
	Inserted      int
	Duplicates    int
	BadSignatures int
	Recovered     int
}

// LeaderSchedule resolves the public key expected to have signed shreds
// for a given slot, so InsertShreds can verify signatures without the
// caller pre-checking identity. Trusted callers (e.g. local test
// fixtures) may pass nil. On an untrusted insert with a nil
// LeaderSchedule, a data shred makes InsertShreds fail and a coding
// shred is skipped.
type LeaderSchedule interface {
	LeaderForSlot(slot types.Slot) (ed25519.PublicKey, bool)
}

// Blockstore is the persistent shred store consumed by the repair and
// replay components, per the insert/meta/entries/missing-indexes contract.
type Blockstore interface {
	// InsertShreds deduplicates by (slot, index, type), validates
	// signatures unless trusted is true, updates SlotMeta, triggers
	// erasure recovery when an FEC set completes, and signals
	// subscribers of every slot that received a new data shred.
	InsertShreds(shreds []*shred.Shred, schedule LeaderSchedule, trusted bool) (InsertionStats, error)

	// Meta returns a snapshot of a slot's progress record, or
	// ErrSlotNotFound if none exists yet.
	Meta(slot types.Slot) (types.SlotMetaSnapshot, error)

	// GetSlotEntries returns entries only when a contiguous run of data
	// shreds starting at fromIndex parses cleanly; the run stops at the
	// first gap, at the first DataComplete shred, or after max shreds
	// (max <= 0 means no cap), whichever comes first.
	GetSlotEntries(slot types.Slot, fromIndex uint64, max int) ([]types.Entry, error)

	// FindMissingDataIndexes returns indices in [consumed, received)
	// whose shreds are absent and whose age since firstTimestamp exceeds
	// repairDelay, capped at max results.
	FindMissingDataIndexes(slot types.Slot, firstTimestamp time.Time, consumed, received uint64, repairDelay time.Duration, max int) ([]uint64, error)

	// GetDataShred fetches one raw data shred by (slot, index), or nil if absent.
	GetDataShred(slot types.Slot, index uint32) (*shred.Shred, error)

	// PutDuplicateProof records a duplicate-shred proof for a slot.
	PutDuplicateProof(proof DuplicateShredProof) error

	// Signal returns the channel that InsertShreds publishes newly
	// touched slots to. It never blocks a publisher: a full channel drops
	// its oldest pending notification, whichever slot that names.
	Signal() <-chan types.Slot

	Close() error
}
