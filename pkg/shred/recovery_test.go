package shred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/types"
)

func buildFECSet(t *testing.T, numEntries int) ([]*Shred, []*Shred) {
	t.Helper()
	priv := testKey(t)
	entries := make([]types.Entry, 0, numEntries)
	for i := 0; i < numEntries; i++ {
		entries = append(entries, types.Entry{NumHashes: uint64(i), Transactions: [][]byte{make([]byte, 900)}})
	}
	data, _, err := EntriesToShreds(entries, 0, 10, 1, true, 0, priv)
	require.NoError(t, err)
	require.LessOrEqual(t, len(data), MaxDataShredsPerFECBlock, "test fixture must stay within a single FEC set")

	coding, err := GenerateCodingShreds(data, 0.5, 1, priv)
	require.NoError(t, err)
	require.NotEmpty(t, coding)
	return data, coding
}

func TestTryRecovery_ExactDataPresent(t *testing.T) {
	data, coding := buildFECSet(t, 6)
	fs := FECSet{Slot: data[0].Slot(), FirstDataIndex: data[0].Index(), NumData: len(data), NumCoding: len(coding)}

	recovered, err := TryRecovery(fs, data, make([]*Shred, len(coding)), 1)
	require.NoError(t, err)
	assert.Empty(t, recovered)
}

func TestTryRecovery_ReconstructsMissingData(t *testing.T) {
	data, coding := buildFECSet(t, 6)
	fs := FECSet{Slot: data[0].Slot(), FirstDataIndex: data[0].Index(), NumData: len(data), NumCoding: len(coding)}

	missingIdx := 1
	present := make([]*Shred, len(data))
	copy(present, data)
	want := present[missingIdx]
	present[missingIdx] = nil

	recovered, err := TryRecovery(fs, present, coding, 1)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, want.Slot(), recovered[0].Slot())
	assert.Equal(t, want.Index(), recovered[0].Index())
	assert.Equal(t, want.Payload(), recovered[0].Payload())
	assert.Equal(t, want.IsLastInSlot(), recovered[0].IsLastInSlot())
	assert.Equal(t, want.IsDataComplete(), recovered[0].IsDataComplete())
}

func TestTryRecovery_TooFewShards(t *testing.T) {
	data, coding := buildFECSet(t, 6)
	fs := FECSet{Slot: data[0].Slot(), FirstDataIndex: data[0].Index(), NumData: len(data), NumCoding: len(coding)}

	present := make([]*Shred, len(data))
	present[0] = data[0]
	noCoding := make([]*Shred, len(coding))

	_, err := TryRecovery(fs, present, noCoding, 1)
	assert.ErrorIs(t, err, ErrTooFewShards)
}

func TestTryRecovery_ShapeMismatch(t *testing.T) {
	data, coding := buildFECSet(t, 6)
	fs := FECSet{Slot: data[0].Slot(), FirstDataIndex: data[0].Index(), NumData: len(data) + 1, NumCoding: len(coding)}

	_, err := TryRecovery(fs, data, coding, 1)
	assert.Error(t, err)
}
