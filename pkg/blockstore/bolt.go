package blockstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	bolt "go.etcd.io/bbolt"

	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"
)

var (
	bucketMeta       = []byte("meta")
	bucketShreds     = []byte("shreds")
	bucketDuplicates = []byte("duplicates")
)

// BoltBlockstore is a bbolt-backed Blockstore: one bucket per entity,
// SlotMeta JSON-encoded, shred payloads snappy-compressed at rest (the
// wire format on the network is untouched — compression is purely a
// storage-layer optimization applied after InsertShreds validates a
// shred and before it's written to disk).
type BoltBlockstore struct {
	db *bolt.DB

	mu    sync.Mutex
	metas map[types.Slot]*SlotMeta

	signal chan types.Slot
}

// NewBoltBlockstore opens (creating if absent) a bbolt database under
// dataDir and prepares its buckets, mirroring pkg/storage's
// NewBoltStore shape: open, create buckets in one update transaction,
// fail closed on any error.
func NewBoltBlockstore(dataDir string) (*BoltBlockstore, error) {
	dbPath := filepath.Join(dataDir, "shredger.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketShreds, bucketDuplicates} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	bs := &BoltBlockstore{
		db:     db,
		metas:  make(map[types.Slot]*SlotMeta),
		signal: make(chan types.Slot, 256),
	}
	if err := bs.loadMetas(); err != nil {
		db.Close()
		return nil, err
	}
	return bs, nil
}

func (bs *BoltBlockstore) loadMetas() error {
	return bs.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		return b.ForEach(func(k, v []byte) error {
			m, err := unmarshalSlotMeta(v)
			if err != nil {
				return fmt.Errorf("unmarshal slot meta %x: %w", k, err)
			}
			bs.metas[m.Slot] = m
			return nil
		})
	})
}

func shredKey(slot types.Slot, index uint32, isData bool) []byte {
	key := make([]byte, 8+4+1)
	binary.BigEndian.PutUint64(key[0:8], uint64(slot))
	binary.BigEndian.PutUint32(key[8:12], index)
	if isData {
		key[12] = 1
	}
	return key
}

func (bs *BoltBlockstore) persistMeta(tx *bolt.Tx, m *SlotMeta) error {
	data, err := m.marshal()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(m.Slot))
	return tx.Bucket(bucketMeta).Put(key, data)
}

func (bs *BoltBlockstore) metaFor(slot, parentSlot types.Slot) *SlotMeta {
	m, ok := bs.metas[slot]
	if !ok {
		m = newSlotMeta(slot, parentSlot)
		bs.metas[slot] = m
		if parentMeta, ok := bs.metas[parentSlot]; ok && parentSlot != slot {
			parentMeta.NextSlots = appendUnique(parentMeta.NextSlots, slot)
		}
	}
	return m
}

func appendUnique(slots []types.Slot, s types.Slot) []types.Slot {
	for _, existing := range slots {
		if existing == s {
			return slots
		}
	}
	return append(slots, s)
}

func (bs *BoltBlockstore) notify(slot types.Slot) {
	select {
	case bs.signal <- slot:
	default:
		// Drop the oldest pending slot rather than block the inserter;
		// the replay stage only cares that *something* changed, it
		// re-reads state from Meta/GetSlotEntries on wake.
		select {
		case <-bs.signal:
		default:
		}
		select {
		case bs.signal <- slot:
		default:
		}
	}
}

// InsertShreds implements Blockstore.InsertShreds.
func (bs *BoltBlockstore) InsertShreds(shreds []*shred.Shred, schedule LeaderSchedule, trusted bool) (InsertionStats, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.insertLocked(shreds, schedule, trusted)
}

// insertLocked is InsertShreds' body, callable recursively (for
// recovered shreds) without re-acquiring bs.mu — sync.Mutex isn't
// reentrant, so InsertShreds itself must never call back into itself.
func (bs *BoltBlockstore) insertLocked(shreds []*shred.Shred, schedule LeaderSchedule, trusted bool) (InsertionStats, error) {
	var stats InsertionStats
	touched := make(map[types.Slot]bool)

	err := bs.db.Update(func(tx *bolt.Tx) error {
		shredBucket := tx.Bucket(bucketShreds)
		dupBucket := tx.Bucket(bucketDuplicates)

		for _, s := range shreds {
			slot := s.Slot()
			index := s.Index()
			isData := s.IsDataShred()
			key := shredKey(slot, index, isData)

			existing := shredBucket.Get(key)
			if existing != nil {
				stats.Duplicates++
				if decoded, err := snappy.Decode(nil, existing); err == nil && !bytesEqual(decoded, s.Bytes()) {
					proof := DuplicateShredProof{Slot: slot, Index: index, Original: decoded, Conflict: append([]byte(nil), s.Bytes()...), SeenAt: time.Now()}
					if data, err := json.Marshal(proof); err == nil {
						_ = dupBucket.Put(shredKey(slot, index, isData), data)
					}
				}
				continue
			}

			if !trusted {
				if isData {
					if schedule == nil {
						return fmt.Errorf("blockstore: no leader schedule to verify untrusted shred at slot %d index %d", slot, index)
					}
					pub, ok := schedule.LeaderForSlot(slot)
					if !ok || !s.Verify(pub) {
						stats.BadSignatures++
						continue
					}
				} else {
					// Coding shreds are signed by the leader too, but this
					// core only needs their parity content, never replays
					// them directly, so an unverifiable coding shred is
					// simply skipped rather than treated as an error.
					if schedule == nil {
						continue
					}
					if pub, ok := schedule.LeaderForSlot(slot); !ok || !s.Verify(pub) {
						continue
					}
				}
			}

			compressed := snappy.Encode(nil, s.Bytes())
			if err := shredBucket.Put(key, compressed); err != nil {
				return fmt.Errorf("put shred %d/%d: %w", slot, index, err)
			}
			stats.Inserted++

			if isData {
				m := bs.metaFor(slot, s.ParentSlot())
				if m.FirstShredTimestamp.IsZero() {
					m.FirstShredTimestamp = time.Now()
				}
				m.markReceived(index)
				if !m.IsFull && m.Consumed >= m.Received {
					// No gaps remain: the slot is full once its highest
					// received shred is the last-in-slot one, whichever
					// shred happened to close the final gap.
					last := s
					if uint64(index)+1 != m.Received {
						last = nil
						if raw, err := snappy.Decode(nil, shredBucket.Get(shredKey(slot, uint32(m.Received-1), true))); err == nil {
							last, _ = shred.FromBytes(raw)
						}
					}
					m.IsFull = last != nil && last.IsLastInSlot()
				}
				if err := bs.persistMeta(tx, m); err != nil {
					return err
				}
				touched[slot] = true
			}
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	recovered, err := bs.attemptRecovery(shreds)
	if err != nil {
		return stats, err
	}
	stats.Recovered = len(recovered)
	if len(recovered) > 0 {
		recStats, err := bs.insertLocked(recovered, nil, true)
		if err != nil {
			return stats, err
		}
		stats.Inserted += recStats.Inserted
	}

	for slot := range touched {
		bs.notify(slot)
	}
	return stats, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// attemptRecovery inspects every coding shred just inserted, gathers the
// rest of its FEC set from storage, and hands complete-enough sets to
// shred.TryRecovery. It runs from insertLocked with bs.mu held and only
// returns what it recovers; insertLocked inserts those shreds itself.
func (bs *BoltBlockstore) attemptRecovery(inserted []*shred.Shred) ([]*shred.Shred, error) {
	seen := make(map[string]bool)
	var recovered []*shred.Shred

	for _, s := range inserted {
		if !s.IsCodingShred() {
			continue
		}
		fecKey := fmt.Sprintf("%d:%d", s.Slot(), s.FECSetIndex())
		if seen[fecKey] {
			continue
		}
		seen[fecKey] = true

		numData := int(s.NumDataShreds())
		numCoding := int(s.NumCodingShreds())
		fs := shred.FECSet{Slot: s.Slot(), FirstDataIndex: s.FECSetIndex(), NumData: numData, NumCoding: numCoding}

		data := make([]*shred.Shred, numData)
		missing := 0
		for i := 0; i < numData; i++ {
			ds, err := bs.GetDataShred(s.Slot(), s.FECSetIndex()+uint32(i))
			if err != nil {
				return nil, err
			}
			data[i] = ds
			if ds == nil {
				missing++
			}
		}
		if missing == 0 {
			continue
		}

		coding := make([]*shred.Shred, numCoding)
		for j := 0; j < numCoding; j++ {
			cs, err := bs.getShred(s.Slot(), s.FECSetIndex()+uint32(j), false)
			if err != nil {
				return nil, err
			}
			coding[j] = cs
		}

		rec, err := shred.TryRecovery(fs, data, coding, s.Version())
		if err != nil {
			continue // TooFewShards or similar: nothing to do this round
		}
		recovered = append(recovered, rec...)
	}
	return recovered, nil
}

// GetDataShred implements Blockstore.GetDataShred.
func (bs *BoltBlockstore) GetDataShred(slot types.Slot, index uint32) (*shred.Shred, error) {
	return bs.getShred(slot, index, true)
}

func (bs *BoltBlockstore) getShred(slot types.Slot, index uint32, isData bool) (*shred.Shred, error) {
	var out *shred.Shred
	err := bs.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketShreds).Get(shredKey(slot, index, isData))
		if data == nil {
			return nil
		}
		raw, err := snappy.Decode(nil, data)
		if err != nil {
			return fmt.Errorf("decompress shred %d/%d: %w", slot, index, err)
		}
		s, err := shred.FromBytes(raw)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

// Meta implements Blockstore.Meta.
func (bs *BoltBlockstore) Meta(slot types.Slot) (types.SlotMetaSnapshot, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	m, ok := bs.metas[slot]
	if !ok {
		return types.SlotMetaSnapshot{}, ErrSlotNotFound
	}
	return m.snapshot(), nil
}

// GetSlotEntries implements Blockstore.GetSlotEntries.
func (bs *BoltBlockstore) GetSlotEntries(slot types.Slot, fromIndex uint64, max int) ([]types.Entry, error) {
	var run []*shred.Shred
	for i := fromIndex; len(run) < max || max <= 0; i++ {
		s, err := bs.GetDataShred(slot, uint32(i))
		if err != nil {
			return nil, err
		}
		if s == nil {
			break
		}
		run = append(run, s)
		if s.IsDataComplete() {
			break
		}
	}
	if len(run) == 0 {
		return nil, nil
	}
	return shred.Deshred(run)
}

// FindMissingDataIndexes implements Blockstore.FindMissingDataIndexes.
func (bs *BoltBlockstore) FindMissingDataIndexes(slot types.Slot, firstTimestamp time.Time, consumed, received uint64, repairDelay time.Duration, max int) ([]uint64, error) {
	if time.Since(firstTimestamp) < repairDelay {
		return nil, nil
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	m, ok := bs.metas[slot]
	if !ok {
		return nil, nil
	}
	return m.missingInRange(consumed, received, max), nil
}

// PutDuplicateProof implements Blockstore.PutDuplicateProof.
func (bs *BoltBlockstore) PutDuplicateProof(proof DuplicateShredProof) error {
	data, err := json.Marshal(proof)
	if err != nil {
		return err
	}
	return bs.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDuplicates).Put(shredKey(proof.Slot, proof.Index, true), data)
	})
}

// Signal implements Blockstore.Signal.
func (bs *BoltBlockstore) Signal() <-chan types.Slot { return bs.signal }

// Close implements Blockstore.Close.
func (bs *BoltBlockstore) Close() error { return bs.db.Close() }
