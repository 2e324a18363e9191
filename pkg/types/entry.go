package types

import (
	"fmt"

	"github.com/shredchain/shredger/pkg/wire"
)

// SerializeEntries flattens a sequence of entries into the single byte
// buffer the shredder slices into DATA_SHRED_PAYLOAD_SIZE chunks. The
// encoding is deterministic and length-prefixed so DeserializeEntries can
// invert it exactly, including over a buffer reassembled from shreds that
// carries trailing zero padding.
func SerializeEntries(entries []Entry) []byte {
	w := wire.NewWriter()
	w.WriteUint64(uint64(len(entries)))
	for _, e := range entries {
		w.WriteUint64(e.NumHashes)
		w.WriteRaw(e.Hash[:])
		w.WriteUint64(uint64(len(e.Transactions)))
		for _, tx := range e.Transactions {
			w.WriteBytes(tx)
		}
	}
	return w.Bytes()
}

// DeserializeEntries inverts SerializeEntries. Trailing bytes beyond the
// encoded entries (zero padding from the last shred) are ignored.
func DeserializeEntries(buf []byte) ([]Entry, error) {
	r := wire.NewReader(buf)
	count, err := r.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("entries: read count: %w", err)
	}
	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var e Entry
		e.NumHashes, err = r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("entries: read numHashes[%d]: %w", i, err)
		}
		hash, err := r.ReadRaw(32)
		if err != nil {
			return nil, fmt.Errorf("entries: read hash[%d]: %w", i, err)
		}
		copy(e.Hash[:], hash)
		txCount, err := r.ReadUint64()
		if err != nil {
			return nil, fmt.Errorf("entries: read txCount[%d]: %w", i, err)
		}
		e.Transactions = make([][]byte, 0, txCount)
		for j := uint64(0); j < txCount; j++ {
			tx, err := r.ReadBytes()
			if err != nil {
				return nil, fmt.Errorf("entries: read tx[%d][%d]: %w", i, j, err)
			}
			e.Transactions = append(e.Transactions, tx)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
