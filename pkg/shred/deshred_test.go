package shred

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/types"
)

func TestDeshred_Empty(t *testing.T) {
	_, err := Deshred(nil)
	assert.ErrorIs(t, err, ErrTooFewDataShards)
}

func TestDeshred_MissingLastShredIncomplete(t *testing.T) {
	priv := testKey(t)
	entries := make([]types.Entry, 0, 40)
	for i := 0; i < 40; i++ {
		entries = append(entries, types.Entry{NumHashes: uint64(i), Transactions: [][]byte{make([]byte, 1100)}})
	}
	shreds, _, err := EntriesToShreds(entries, 0, 5, 1, true, 0, priv)
	require.NoError(t, err)
	require.Greater(t, len(shreds), 1)

	_, err = Deshred(shreds[:len(shreds)-1])
	assert.ErrorIs(t, err, ErrTooFewDataShards)
}

func TestDeshred_IndexGap(t *testing.T) {
	priv := testKey(t)
	entries := make([]types.Entry, 0, 40)
	for i := 0; i < 40; i++ {
		entries = append(entries, types.Entry{NumHashes: uint64(i), Transactions: [][]byte{make([]byte, 1100)}})
	}
	shreds, _, err := EntriesToShreds(entries, 0, 5, 1, true, 0, priv)
	require.NoError(t, err)
	require.Greater(t, len(shreds), 2)

	withGap := append(append([]*Shred{}, shreds[0]), shreds[2:]...)
	_, err = Deshred(withGap)
	assert.Error(t, err)
}

func TestDeshred_SlotMismatch(t *testing.T) {
	priv := testKey(t)
	a, _, err := EntriesToShreds([]types.Entry{{NumHashes: 1}}, 0, 5, 1, false, 0, priv)
	require.NoError(t, err)
	b, _, err := EntriesToShreds([]types.Entry{{NumHashes: 1}}, 0, 6, 1, true, 1, priv)
	require.NoError(t, err)

	_, err = Deshred(append(a, b...))
	assert.Error(t, err)
}
