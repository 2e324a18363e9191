package replay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"

	"crypto/ed25519"
)

type fakeBank struct {
	mu         sync.Mutex
	tickHeight uint64
	lastID     [32]byte
}

func (b *fakeBank) TickHeight() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tickHeight
}

func (b *fakeBank) LastID() [32]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastID
}

func (b *fakeBank) ProcessEntries(entries []types.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range entries {
		if e.IsTick() {
			b.tickHeight++
		}
	}
	if len(entries) > 0 {
		b.lastID = entries[len(entries)-1].Hash
	}
	return nil
}

type fakeSchedule struct{ leaders map[types.Slot]string }

func (s fakeSchedule) LeaderForSlot(slot types.Slot) (string, bool) {
	l, ok := s.leaders[slot]
	return l, ok
}

type fakeVotes struct {
	mu    sync.Mutex
	calls []uint64
}

func (v *fakeVotes) SubmitVote(slot types.Slot, tickHeight uint64, lastID [32]byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, tickHeight)
	return nil
}

func (v *fakeVotes) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.calls)
}

// buildTickChain returns n single-hash tick entries chained from last,
// plus the resulting chain tip.
func buildTickChain(last [32]byte, n int) ([]types.Entry, [32]byte) {
	entries := make([]types.Entry, 0, n)
	for i := 0; i < n; i++ {
		next := types.NextHash(last, 1, nil)
		entries = append(entries, types.Entry{NumHashes: 1, Hash: next})
		last = next
	}
	return entries, last
}

func insertEntries(t *testing.T, bs *blockstore.BoltBlockstore, priv ed25519.PrivateKey, parentSlot, slot types.Slot, entries []types.Entry) {
	t.Helper()
	data, _, err := shred.EntriesToShreds(entries, parentSlot, slot, 1, true, 0, priv)
	require.NoError(t, err)
	_, err = bs.InsertShreds(data, nil, true)
	require.NoError(t, err)
}

func TestStageCommitsVotesAndRotatesAtSlotBoundary(t *testing.T) {
	bs, err := blockstore.NewBoltBlockstore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	entries, _ := buildTickChain([32]byte{}, 3)
	insertEntries(t, bs, priv, 0, 0, entries)

	bank := &fakeBank{}
	votes := &fakeVotes{}
	schedule := fakeSchedule{leaders: map[types.Slot]string{0: "other", 1: "me"}}
	rotationCh := make(chan RotationSignal, 1)

	st := NewStage(Config{
		Blockstore:    bs,
		Bank:          bank,
		Schedule:      schedule,
		Votes:         votes,
		Rotation:      rotationCh,
		Local:         "me",
		TicksPerSlot:  3,
		VotingEnabled: true,
	})

	caughtUp, err := st.iterate()
	require.NoError(t, err)
	assert.True(t, caughtUp)

	assert.Equal(t, uint64(3), bank.TickHeight())
	assert.Equal(t, 1, votes.count())
	assert.Equal(t, types.Slot(1), st.currentSlot)

	select {
	case sig := <-rotationCh:
		assert.Equal(t, types.Slot(1), sig.Slot)
		assert.Equal(t, uint64(3), sig.TickHeight)
	default:
		t.Fatal("expected a rotation signal for the validator-to-leader boundary")
	}
}

func TestStageCaughtUpWhenNoShredPresent(t *testing.T) {
	bs, err := blockstore.NewBoltBlockstore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	bank := &fakeBank{}
	schedule := fakeSchedule{leaders: map[types.Slot]string{0: "me", 1: "me"}}

	st := NewStage(Config{
		Blockstore:   bs,
		Bank:         bank,
		Schedule:     schedule,
		Local:        "me",
		TicksPerSlot: 4,
	})

	caughtUp, err := st.iterate()
	require.NoError(t, err)
	assert.True(t, caughtUp)
	assert.Equal(t, uint64(0), bank.TickHeight())
}

func TestStageVerificationFailureSkipsCommitButAdvancesCursor(t *testing.T) {
	bs, err := blockstore.NewBoltBlockstore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	// A tick entry whose Hash doesn't match NextHash(zero, 1, nil): the
	// chain verification in step 2 must reject this batch wholesale.
	entries := []types.Entry{{NumHashes: 1, Hash: [32]byte{0xff}}}
	insertEntries(t, bs, priv, 0, 0, entries)

	bank := &fakeBank{}
	schedule := fakeSchedule{leaders: map[types.Slot]string{0: "me", 1: "me"}}

	st := NewStage(Config{
		Blockstore:   bs,
		Bank:         bank,
		Schedule:     schedule,
		Local:        "me",
		TicksPerSlot: 4,
	})

	_, err = st.iterate()
	require.NoError(t, err)

	assert.Equal(t, uint64(0), bank.TickHeight(), "bank must not commit a chain-broken batch")
	assert.Equal(t, uint64(1), st.shredCursor, "the shred was read and must not be re-fetched forever")
}

// Property 9: no vote is emitted at a tick height that isn't the last
// tick of its slot.
func TestStageVoteOnlyAtTickOfSlotEnd(t *testing.T) {
	bs, err := blockstore.NewBoltBlockstore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	// Only 3 of 5 ticks-per-slot: the countdown must not reach zero.
	entries, _ := buildTickChain([32]byte{}, 3)
	insertEntries(t, bs, priv, 0, 0, entries)

	bank := &fakeBank{}
	votes := &fakeVotes{}
	schedule := fakeSchedule{leaders: map[types.Slot]string{0: "me", 1: "me"}}

	st := NewStage(Config{
		Blockstore:    bs,
		Bank:          bank,
		Schedule:      schedule,
		Votes:         votes,
		Local:         "me",
		TicksPerSlot:  5,
		VotingEnabled: true,
	})

	_, err = st.iterate()
	require.NoError(t, err)

	assert.Equal(t, uint64(3), bank.TickHeight(), "the partial prefix still commits")
	assert.Equal(t, 0, votes.count(), "no vote before the slot's final tick")
	assert.Equal(t, types.Slot(0), st.currentSlot, "no rotation before the slot's final tick")
}

// Property 8: at most one rotation signal per slot boundary, even
// across repeated iterations once the boundary has already been
// crossed.
func TestStageRotationExactlyOncePerSlotBoundary(t *testing.T) {
	bs, err := blockstore.NewBoltBlockstore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	entries, _ := buildTickChain([32]byte{}, 2)
	insertEntries(t, bs, priv, 0, 0, entries)

	bank := &fakeBank{}
	schedule := fakeSchedule{leaders: map[types.Slot]string{0: "other", 1: "me", 2: "me"}}
	rotationCh := make(chan RotationSignal, 4)

	st := NewStage(Config{
		Blockstore:   bs,
		Bank:         bank,
		Schedule:     schedule,
		Rotation:     rotationCh,
		Local:        "me",
		TicksPerSlot: 2,
	})

	_, err = st.iterate()
	require.NoError(t, err)
	_, err = st.iterate() // slot 1 has no shreds yet: must not re-fire for slot 0's boundary
	require.NoError(t, err)

	assert.Len(t, rotationCh, 1)
}
