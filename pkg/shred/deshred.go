package shred

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shredchain/shredger/pkg/types"
)

// ErrTooFewDataShards is returned when no shreds are supplied or the last
// one does not carry DataComplete, so the entry stream they'd produce is
// known to be incomplete.
var ErrTooFewDataShards = errors.New("shred: data shreds do not end on a DataComplete shred")

// ErrIncorrectShardSize is returned when a data shred's payload length
// disagrees with the others, which should never happen for shreds that
// passed Verify — deshredding assumes a uniform producer.
var ErrIncorrectShardSize = errors.New("shred: data shred payload size mismatch")

// Deshred concatenates a contiguous, ascending run of data shreds for one
// slot back into the entries they encode. Shreds need not be pre-sorted;
// Deshred sorts a copy by index. The final shred in the run must carry
// DataComplete (and LastInSlot, if the caller is assembling a whole slot);
// anything short of that is ErrTooFewDataShards.
func Deshred(dataShreds []*Shred) ([]types.Entry, error) {
	if len(dataShreds) == 0 {
		return nil, ErrTooFewDataShards
	}

	sorted := make([]*Shred, len(dataShreds))
	copy(sorted, dataShreds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index() < sorted[j].Index() })

	slot := sorted[0].Slot()
	startIndex := sorted[0].Index()
	for i, s := range sorted {
		if s.Slot() != slot {
			return nil, fmt.Errorf("shred: deshred slot mismatch at position %d: %d != %d", i, s.Slot(), slot)
		}
		if s.Index() != startIndex+uint32(i) {
			return nil, fmt.Errorf("shred: deshred index gap at position %d: want %d, got %d", i, startIndex+uint32(i), s.Index())
		}
	}

	last := sorted[len(sorted)-1]
	if !last.IsDataComplete() {
		return nil, ErrTooFewDataShards
	}

	payloadLen := len(sorted[0].Payload())
	buf := make([]byte, 0, payloadLen*len(sorted))
	for i, s := range sorted {
		p := s.Payload()
		if i < len(sorted)-1 && len(p) != payloadLen {
			return nil, ErrIncorrectShardSize
		}
		buf = append(buf, p...)
	}

	return types.DeserializeEntries(buf)
}
