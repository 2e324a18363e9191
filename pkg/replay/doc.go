// Package replay implements the replay stage: the consumer-side
// counterpart to pkg/repair and pkg/servrepair. It drains verified,
// contiguous entries out of the blockstore, commits them to an external
// Bank, casts votes at tick-of-slot boundaries, and signals leader
// rotation.
//
// # Architecture
//
//	blockstore.Signal() --> [Stage.run] --> Bank.ProcessEntries
//	                             |    \
//	                             |     --> VoteSink.SubmitVote (tick-of-slot)
//	                             |
//	                             +--> ledger-entry channel (broadcast/streaming)
//	                             +--> rotation channel (leader change)
//
// Each iteration reads one contiguous run of shreds for the current
// slot (bounded by Config.MaxEntriesPerIter), chain-verifies the
// entries it decodes against the bank's PoH tip, and walks them
// tick-by-tick: whenever the slot's remaining-ticks countdown reaches
// zero, the processed prefix is committed, a vote is cast if voting is
// enabled, and the walk continues from a fresh countdown. When the
// bank's tick height reaches the slot's final tick, Stage consults the
// leader schedule and — terminal at most once per slot boundary —
// emits a rotation signal if the incoming leader is the local identity.
//
// When a read comes back short of the per-iteration budget, the stage
// has caught up with the blockstore and parks on its signal channel
// rather than busy-polling, exactly the wait-for-signal shape
// pkg/reconciler's ticker loop uses for its own schedule, substituting
// an event for a timer.
package replay
