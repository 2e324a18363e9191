package shred

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/types"
)

func testKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv
}

func TestEntriesToShreds_RoundTrip(t *testing.T) {
	priv := testKey(t)
	entries := []types.Entry{
		{NumHashes: 1, Transactions: [][]byte{[]byte("tx-a")}},
		{NumHashes: 2, Transactions: [][]byte{[]byte("tx-b"), []byte("tx-c")}},
	}

	shreds, next, err := EntriesToShreds(entries, 41, 42, 7, true, 0, priv)
	require.NoError(t, err)
	require.NotEmpty(t, shreds)
	assert.Equal(t, uint32(len(shreds)), next)

	for i, s := range shreds {
		assert.True(t, s.IsDataShred())
		assert.Equal(t, types.Slot(42), s.Slot())
		assert.Equal(t, uint32(i), s.Index())
		assert.Equal(t, types.Slot(41), s.ParentSlot())
		assert.True(t, s.Verify(priv.Public().(ed25519.PublicKey)))
	}
	last := shreds[len(shreds)-1]
	assert.True(t, last.IsDataComplete())
	assert.True(t, last.IsLastInSlot())

	got, err := Deshred(shreds)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entries[0].Transactions, got[0].Transactions)
	assert.Equal(t, entries[1].Transactions, got[1].Transactions)
}

func TestEntriesToShreds_NotLastInSlot(t *testing.T) {
	priv := testKey(t)
	entries := []types.Entry{{NumHashes: 1}}
	shreds, _, err := EntriesToShreds(entries, 0, 1, 1, false, 0, priv)
	require.NoError(t, err)
	last := shreds[len(shreds)-1]
	assert.True(t, last.IsDataComplete())
	assert.False(t, last.IsLastInSlot())
}

func TestNewDataShred_ParentAfterSlotRejected(t *testing.T) {
	_, err := newDataShred(10, 0, 1, 0, 11, 0, nil)
	assert.Error(t, err)
}

func TestNewDataShred_PayloadTooLarge(t *testing.T) {
	_, err := newDataShred(10, 0, 1, 0, 0, 0, make([]byte, DataShredPayloadSize+1))
	assert.Error(t, err)
}

func TestPartialParse(t *testing.T) {
	priv := testKey(t)
	shreds, _, err := EntriesToShreds([]types.Entry{{NumHashes: 1}}, 0, 99, 1, true, 3, priv)
	require.NoError(t, err)

	var stats ParseStats
	slot, index, isData, ok := PartialParse(shreds[0].Bytes(), &stats)
	require.True(t, ok)
	assert.Equal(t, types.Slot(99), slot)
	assert.Equal(t, uint32(3), index)
	assert.True(t, isData)
	assert.Equal(t, uint64(1), stats.OK)

	_, _, _, ok = PartialParse(make([]byte, 4), &stats)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), stats.TooShort)

	bad := make([]byte, len(shreds[0].Bytes()))
	copy(bad, shreds[0].Bytes())
	bad[OffsetShredType] = 0x00
	_, _, _, ok = PartialParse(bad, &stats)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), stats.BadType)
}

func TestMaxEntriesForShreds(t *testing.T) {
	sample := types.Entry{NumHashes: 1, Transactions: [][]byte{make([]byte, 32)}}
	n := MaxEntriesForShreds(4, sample)
	assert.Greater(t, n, 0)
	assert.Equal(t, 0, MaxEntriesForShreds(0, sample))
}
