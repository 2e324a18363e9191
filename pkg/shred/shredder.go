package shred

import (
	"crypto/ed25519"
	"fmt"

	"github.com/shredchain/shredger/pkg/types"
)

// EntriesToShreds serializes entries into a flat buffer, splits it into
// DataShredPayloadSize chunks (zero-padding the last), and signs one data
// shred per chunk, exactly per spec.md §4.1's construction contract.
func EntriesToShreds(entries []types.Entry, parentSlot, slot types.Slot, version uint16, isLastInSlot bool, nextShredIndex uint32, priv ed25519.PrivateKey) (dataShreds []*Shred, newNextIndex uint32, err error) {
	buf := types.SerializeEntries(entries)

	numChunks := (len(buf) + DataShredPayloadSize - 1) / DataShredPayloadSize
	if numChunks == 0 {
		numChunks = 1 // an empty entry set still produces one (empty) shred
	}

	dataShreds = make([]*Shred, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		start := i * DataShredPayloadSize
		end := start + DataShredPayloadSize
		if end > len(buf) {
			end = len(buf)
		}
		// newDataShred zero-pads the frame; the header records only the
		// chunk's own length.
		chunk := buf[start:end]

		index := nextShredIndex + uint32(i)
		fecSetIndex := nextShredIndex + uint32(i-(i%MaxDataShredsPerFECBlock))

		var flags byte
		if i == numChunks-1 {
			flags |= FlagDataCompleteShred
			if isLastInSlot {
				flags |= FlagLastShredInSlot
			}
		}

		s, err := newDataShred(slot, index, version, fecSetIndex, parentSlot, flags, chunk)
		if err != nil {
			return nil, 0, fmt.Errorf("shredder: entry %d: %w", i, err)
		}
		s.Sign(priv)
		dataShreds = append(dataShreds, s)
	}

	return dataShreds, nextShredIndex + uint32(numChunks), nil
}
