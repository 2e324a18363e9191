// Package types holds the plain data model shared by the shred codec,
// blockstore, repair service, and replay stage: slots, entries, peer
// contact info, and per-slot progress metadata. Its only behavior beyond
// simple accessors is entry serialization (entry.go) and the
// proof-of-history hash chain (poh.go) — it mirrors how the rest of this
// module treats Slot as an opaque monotonic index and Entry as an opaque
// hash-chained record the bank alone understands.
package types

import (
	"net"
	"time"
)

// Slot is a monotonic block index. Slots form a tree rooted at genesis.
type Slot uint64

// MaxDataShredsPerSlot is the ceiling on a data shred's index within a slot.
const MaxDataShredsPerSlot = 1 << 17

// Entry is a tick or a batch of transactions, hash-chained to its
// predecessor. The core only needs to serialize/deserialize and
// hash-chain entries; their contents are consumed by the bank.
type Entry struct {
	NumHashes    uint64
	Hash         [32]byte
	Transactions [][]byte
}

// NodeRole distinguishes a validator acting as leader from one replaying
// as a follower for a given slot. It has no relationship to consensus
// membership, which is external to this core.
type NodeRole string

const (
	RoleLeader    NodeRole = "leader"
	RoleValidator NodeRole = "validator"
)

// ContactInfo is a peer's public key plus the UDP addresses it advertises
// for gossip, shred retransmission (TVU), and serve-repair. It is consumed
// as-is from the gossip layer (ClusterInfo); this core never constructs
// one for a remote peer, only reads them.
type ContactInfo struct {
	// Pubkey identifies the peer. It doubles as the ed25519 verification
	// key for shreds the peer signs as leader.
	Pubkey string

	Gossip      *net.UDPAddr
	TVU         *net.UDPAddr
	ServeRepair *net.UDPAddr

	ShredVersion uint16
}

// SelfRepair reports whether this contact info names the given local
// identity, used by the serve-repair responder to drop self-addressed
// requests without replying.
func (c *ContactInfo) SelfRepair(localPubkey string) bool {
	return c != nil && c.Pubkey == localPubkey
}

// SlotMetaSnapshot is a read-only copy of a SlotMeta's scalar fields,
// returned by Blockstore.Meta so callers cannot mutate blockstore state
// through an aliased pointer.
type SlotMetaSnapshot struct {
	Slot               Slot
	ParentSlot         Slot
	Consumed           uint64
	Received           uint64
	FirstShredTimestamp time.Time
	IsFull             bool
	NextSlots          []Slot
}
