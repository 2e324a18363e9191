package shred

import (
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/shredchain/shredger/pkg/types"
)

// ErrTooFewShards is returned when fewer than NumData shreds (of either
// kind) are present in an FEC set — recovery is impossible.
var ErrTooFewShards = errors.New("shred: too few shards present to recover FEC set")

// FECSet describes the shape of one FEC group for recovery purposes.
// FirstDataIndex doubles as the set's fec_set_index, since the shredder
// assigns a set's fec_set_index to equal its first member's shred index.
type FECSet struct {
	Slot           types.Slot
	FirstDataIndex uint32
	NumData        int
	NumCoding      int
}

// TryRecovery attempts to reconstruct missing shreds in an FEC set from
// whatever is present. data and coding are position-indexed (length
// NumData/NumCoding respectively); a nil entry marks an absent shred.
//
// Per spec.md §4.1: fewer than NumData present shreds fails with
// ErrTooFewShards; exactly NumData data shreds present returns an empty
// recovered list (nothing to do); otherwise Reed-Solomon reconstructs the
// missing type-specific-header-and-payload region (EncodableRegion never
// covers the common header, so slot/index/version/fec_set_index are set
// directly from the FEC set's own metadata rather than recovered).
// Reconstructed shreds carry no valid signature — they were never signed
// by the original leader and can't be, since nothing here holds its
// private key — callers insert them into the blockstore as trusted.
func TryRecovery(fs FECSet, data []*Shred, coding []*Shred, version uint16) ([]*Shred, error) {
	if len(data) != fs.NumData || len(coding) != fs.NumCoding {
		return nil, fmt.Errorf("shred: fec set shape mismatch: got %d/%d data/coding, want %d/%d", len(data), len(coding), fs.NumData, fs.NumCoding)
	}

	presentData := 0
	for _, d := range data {
		if d != nil {
			presentData++
		}
	}
	presentTotal := presentData
	for _, c := range coding {
		if c != nil {
			presentTotal++
		}
	}
	if presentTotal < fs.NumData {
		return nil, ErrTooFewShards
	}
	if presentData == fs.NumData {
		return nil, nil
	}

	enc, err := reedsolomon.New(fs.NumData, fs.NumCoding)
	if err != nil {
		return nil, fmt.Errorf("shred: reedsolomon.New(%d,%d): %w", fs.NumData, fs.NumCoding, err)
	}

	shards := make([][]byte, fs.NumData+fs.NumCoding)
	missingData := make([]bool, fs.NumData)
	for i, d := range data {
		if d != nil {
			shards[i] = d.EncodableRegion()
		} else {
			missingData[i] = true
		}
	}
	for j, c := range coding {
		if c != nil {
			shards[fs.NumData+j] = c.EncodableRegion()
		}
	}

	if err := enc.Reconstruct(shards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return nil, ErrTooFewShards
		}
		return nil, fmt.Errorf("shred: rs reconstruct: %w", err)
	}

	var recovered []*Shred
	for i, missing := range missingData {
		if !missing {
			continue
		}
		index := fs.FirstDataIndex + uint32(i)
		if index < fs.FirstDataIndex || index >= fs.FirstDataIndex+uint32(fs.NumData) {
			// Unreachable given how index is derived, kept as the
			// explicit safety net spec.md's recovery contract asks for.
			continue
		}
		s := newBlank()
		s.setCommonHeader(DataShredType, fs.Slot, index, version, fs.FirstDataIndex)
		copy(s.buf[OffsetTypeHeader:], shards[i])
		recovered = append(recovered, s)
	}
	return recovered, nil
}
