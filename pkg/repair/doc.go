/*
Package repair implements the repair service: a ~100ms ticker loop that
finds missing shreds and asks peers for them.

# Architecture

	┌──────────────────────────────────────────────────────────┐
	│                   Repair Loop (100ms)                     │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	    ┌────────────┼─────────────────┐
	    ▼             ▼                 ▼
	 set root    drain votes      rank repairs
	 (prune      (update fork      (orphans, then
	  weight      weights)          highest-shred,
	  tree)                         then specific
	                                shred indexes)
	                                     │
	                                     ▼
	                          pick peer + mint nonce
	                          + send UDP request

Requests are generated in three kinds, in priority order: Orphan for
forks whose ancestry doesn't connect back to the tracked root, then
HighestShred for incomplete slots with no gap below their highest
received index, then Shred for specific missing indexes inside
partially-received slots. The ranking logic
mirrors generate_repairs_for_slot/generate_repairs_for_fork from the
reference repair service: a slot with no meta (consumed == received == 0)
gets a HighestShred bootstrap request; a slot with some shreds missing
some indexes gets targeted Shred requests via the blockstore's missing-
index scan; a fully received slot needs nothing.

# Fork weighting

RepairWeight is an arena of nodes keyed by slot id (a map, not a
recursive tree of pointers) — see weight.go. A node exists for every
slot the repair service has observed, because the blockstore has a meta
for it, because some other slot named it as a parent, or because a vote
named it. A node
with no meta of its own, that isn't the tracked root, is an orphan root:
its subtree is disconnected from the chain the node can currently
replay, and the loop asks peers to walk it back via an Orphan request
instead of trying to guess specific missing indexes it has no evidence
for.

# Peer selection and back-off

Peers are sampled by stake weight (peers.go), falling back to a uniform
pick when every candidate weighs zero. Outstanding requests are tracked
by nonce (pkg/outstanding) so a response can be matched without
re-parsing. When a wave of requests goes unanswered, DumpBackoff
(backoff.go) halves the retry budget for the next wave, the same
decaying back-off the reference client uses for chunk-confirmation
batches, resetting to the ceiling after enough consecutive dumps or
after any successful match.
*/
package repair
