// Package node wires one validator's shred/repair/replay subsystems
// into a single process: load identity and configuration, open the
// blockstore, then construct and start the repair service, the
// serve-repair responder, and the replay stage against it. Shaped
// after pkg/manager.Manager's construction order (store first, then
// every subsystem that depends on it, torn down in Shutdown in the
// opposite order) without the Raft/mTLS/ingress machinery that order
// also carried: gossip membership, the leader schedule's stake table,
// and the bank's execution are all external collaborators here, never
// built by Node itself.
package node
