package blockstore

import (
	"encoding/json"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/shredchain/shredger/pkg/types"
)

// SlotMeta is the per-slot progress record: how much of a slot's data
// shreds have arrived, which specific indices are still missing, and
// whether the slot is fully assembled. It is created on first shred
// receipt, mutated as shreds arrive, and frozen once IsFull is true and
// its parent chain is complete.
type SlotMeta struct {
	Slot       types.Slot
	ParentSlot types.Slot

	// Consumed is the lowest data-shred index not yet contiguously
	// present from index 0; Received is one past the highest index seen.
	Consumed uint64
	Received uint64

	FirstShredTimestamp time.Time
	IsFull              bool
	NextSlots           []types.Slot

	// Received indices, tracked with a bitmap rather than a slice so
	// find_missing_data_indexes can scan large, sparse slots cheaply.
	receivedIndexes *roaring.Bitmap
}

func newSlotMeta(slot, parentSlot types.Slot) *SlotMeta {
	return &SlotMeta{
		Slot:            slot,
		ParentSlot:      parentSlot,
		receivedIndexes: roaring.New(),
	}
}

func (m *SlotMeta) markReceived(index uint32) {
	m.receivedIndexes.Add(index)
	if uint64(index) >= m.Received {
		m.Received = uint64(index) + 1
	}
	m.advanceConsumed()
}

func (m *SlotMeta) advanceConsumed() {
	for m.receivedIndexes.Contains(uint32(m.Consumed)) {
		m.Consumed++
	}
}

// missingInRange reports indices in [from, to) absent from the bitmap,
// stopping once limit indices have been collected.
func (m *SlotMeta) missingInRange(from, to uint64, limit int) []uint64 {
	var missing []uint64
	for i := from; i < to && len(missing) < limit; i++ {
		if !m.receivedIndexes.Contains(uint32(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

func (m *SlotMeta) snapshot() types.SlotMetaSnapshot {
	return types.SlotMetaSnapshot{
		Slot:                m.Slot,
		ParentSlot:          m.ParentSlot,
		Consumed:            m.Consumed,
		Received:            m.Received,
		FirstShredTimestamp: m.FirstShredTimestamp,
		IsFull:              m.IsFull,
		NextSlots:           append([]types.Slot(nil), m.NextSlots...),
	}
}

// persistedSlotMeta is SlotMeta's on-disk shape: the bitmap is serialized
// through its own binary codec rather than JSON since roaring.Bitmap has
// no exported fields for encoding/json to walk.
type persistedSlotMeta struct {
	Slot                types.Slot
	ParentSlot          types.Slot
	Consumed            uint64
	Received            uint64
	FirstShredTimestamp time.Time
	IsFull              bool
	NextSlots           []types.Slot
	ReceivedIndexes     []byte
}

func (m *SlotMeta) marshal() ([]byte, error) {
	bitmapBytes, err := m.receivedIndexes.ToBytes()
	if err != nil {
		return nil, err
	}
	return json.Marshal(persistedSlotMeta{
		Slot:                m.Slot,
		ParentSlot:          m.ParentSlot,
		Consumed:            m.Consumed,
		Received:            m.Received,
		FirstShredTimestamp: m.FirstShredTimestamp,
		IsFull:              m.IsFull,
		NextSlots:           m.NextSlots,
		ReceivedIndexes:     bitmapBytes,
	})
}

func unmarshalSlotMeta(data []byte) (*SlotMeta, error) {
	var p persistedSlotMeta
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	bm := roaring.New()
	if len(p.ReceivedIndexes) > 0 {
		if _, err := bm.FromBuffer(p.ReceivedIndexes); err != nil {
			return nil, err
		}
	}
	return &SlotMeta{
		Slot:                p.Slot,
		ParentSlot:          p.ParentSlot,
		Consumed:            p.Consumed,
		Received:            p.Received,
		FirstShredTimestamp: p.FirstShredTimestamp,
		IsFull:              p.IsFull,
		NextSlots:           p.NextSlots,
		receivedIndexes:     bm,
	}, nil
}
