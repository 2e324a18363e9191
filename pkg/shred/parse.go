package shred

import (
	"encoding/binary"

	"github.com/shredchain/shredger/pkg/types"
)

// ParseStats counts malformed packets dropped by PartialParse, broken out
// by rejection reason, so a caller can expose them as named metrics
// rather than a single opaque "dropped" counter.
type ParseStats struct {
	TooShort    uint64
	BadType     uint64
	OK          uint64
}

// PartialParse extracts (slot, index, isData) from a raw packet without
// full header deserialization, using the fixed byte offsets from
// spec.md §6, and reports malformed packets via stats instead of an
// error — the caller is expected to just drop them and move on.
func PartialParse(packet []byte, stats *ParseStats) (slot types.Slot, index uint32, isData bool, ok bool) {
	if len(packet) < OffsetFECSetIdx+4 {
		stats.TooShort++
		return 0, 0, false, false
	}
	shredType := packet[OffsetShredType]
	switch shredType {
	case DataShredType:
		isData = true
	case CodingShredType:
		isData = false
	default:
		stats.BadType++
		return 0, 0, false, false
	}
	slot = types.Slot(binary.LittleEndian.Uint64(packet[OffsetSlot:]))
	index = binary.LittleEndian.Uint32(packet[OffsetIndex:])
	stats.OK++
	return slot, index, isData, true
}
