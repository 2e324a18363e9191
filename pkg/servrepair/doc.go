// Package servrepair implements the serve-repair responder: the other
// half of the repair protocol, answering requests a peer's pkg/repair
// service sends.
//
// # Architecture
//
//	pkg/repair (peer) --UDP--> [Responder.run] --dispatch--> blockstore
//	                                |
//	                          self-repair / malformed
//	                                v
//	                              dropped
//
// Responder owns one UDP socket. Each loop iteration reads packets for
// up to batchTimeout (default 1s), dispatches every well-formed,
// non-self-addressed request by kind (WindowIndex, HighestWindowIndex,
// Orphan), and adjusts an adaptive per-batch packet cap: the cap shrinks
// when a batch takes longer than one second to handle and grows
// otherwise, the same feedback shape as a worker pool sizing itself to
// observed load.
//
// Requests beyond the current cap are read off the socket (so they don't
// back up the kernel buffer) but dropped and counted rather than
// processed — a reader under sustained overload falls behind the
// writers rather than falling over.
package servrepair
