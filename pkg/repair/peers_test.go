package repair

import (
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/types"
)

type fixedStakes map[string]uint64

func (f fixedStakes) StakeForSlot(_ types.Slot, pubkey string) uint64 { return f[pubkey] }

func contact(pubkey string, serveRepair bool) types.ContactInfo {
	c := types.ContactInfo{Pubkey: pubkey}
	if serveRepair {
		c.ServeRepair = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}
	}
	return c
}

func TestPeersSelectReturnsErrNoPeersWhenEmpty(t *testing.T) {
	p := NewPeers("me", nil, nil, nil)
	_, err := p.Select(1)
	assert.ErrorIs(t, err, ErrNoPeers)
}

func TestPeersSelectExcludesSelf(t *testing.T) {
	contacts := []types.ContactInfo{contact("me", true)}
	p := NewPeers("me", contacts, nil, nil)
	_, err := p.Select(1)
	assert.ErrorIs(t, err, ErrNoPeers)
}

func TestPeersSelectExcludesNoServeRepair(t *testing.T) {
	contacts := []types.ContactInfo{contact("a", false)}
	p := NewPeers("me", contacts, nil, nil)
	_, err := p.Select(1)
	assert.ErrorIs(t, err, ErrNoPeers)
}

func TestPeersSelectUniformFallbackWhenAllZeroStake(t *testing.T) {
	contacts := []types.ContactInfo{contact("a", true), contact("b", true)}
	p := NewPeers("me", contacts, nil, rand.New(rand.NewSource(1)))
	peer, err := p.Select(1)
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, peer.Pubkey)
}

func TestPeersSelectWeightedPicksOnlyNonZeroStakePeer(t *testing.T) {
	contacts := []types.ContactInfo{contact("a", true), contact("b", true)}
	stakes := fixedStakes{"a": 0, "b": 100}
	p := NewPeers("me", contacts, stakes, rand.New(rand.NewSource(1)))

	for i := 0; i < 20; i++ {
		peer, err := p.Select(1)
		require.NoError(t, err)
		assert.Equal(t, "b", peer.Pubkey)
	}
}
