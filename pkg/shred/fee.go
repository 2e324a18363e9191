package shred

import "github.com/shredchain/shredger/pkg/types"

// MaxEntriesForShreds returns the maximum number of entries the leader can
// pack into n data shreds, sized off the serialized length of a
// single-element entry vector rather than a fixed per-entry estimate, so
// the bound tracks whatever encoding pkg/types actually produces.
//
// Pure function: no I/O, no shred construction, safe to call on the hot
// block-assembly path.
func MaxEntriesForShreds(n int, sample types.Entry) int {
	if n <= 0 {
		return 0
	}
	unit := len(types.SerializeEntries([]types.Entry{sample}))
	if unit <= 0 {
		return 0
	}
	capacity := n * DataShredPayloadSize
	return capacity / unit
}
