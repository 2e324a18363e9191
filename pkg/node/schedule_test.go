package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shredchain/shredger/pkg/identity"
	"github.com/shredchain/shredger/pkg/types"
)

func TestLeaderScheduleIsDeterministicAcrossInstances(t *testing.T) {
	validators := []Validator{{Pubkey: "a", Stake: 10}, {Pubkey: "b", Stake: 30}, {Pubkey: "c", Stake: 60}}

	ls1 := NewLeaderSchedule(validators, 10)
	ls2 := NewLeaderSchedule(validators, 10)

	for slot := types.Slot(0); slot < 25; slot++ {
		l1, ok1 := ls1.LeaderForSlot(slot)
		l2, ok2 := ls2.LeaderForSlot(slot)
		require.Equal(t, ok1, ok2)
		assert.Equal(t, l1, l2, "schedule must be a pure function of (epoch, slot_in_epoch)")
	}
}

func TestLeaderScheduleEveryValidatorAppears(t *testing.T) {
	validators := []Validator{{Pubkey: "a", Stake: 1}, {Pubkey: "b", Stake: 1}}
	ls := NewLeaderSchedule(validators, 10)

	seen := map[string]bool{}
	for slot := types.Slot(0); slot < 10; slot++ {
		leader, ok := ls.LeaderForSlot(slot)
		require.True(t, ok)
		seen[leader] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestLeaderScheduleEmptyValidatorSetReturnsNotFound(t *testing.T) {
	ls := NewLeaderSchedule(nil, 10)
	_, ok := ls.LeaderForSlot(0)
	assert.False(t, ok)
}

func TestBlockstoreScheduleDecodesPubkey(t *testing.T) {
	id, err := identity.Generate()
	require.NoError(t, err)

	validators := []Validator{{Pubkey: id.Pubkey(), Stake: 1}}
	ls := NewLeaderSchedule(validators, 1)
	bss := NewBlockstoreSchedule(ls)

	pub, ok := bss.LeaderForSlot(0)
	require.True(t, ok)
	assert.True(t, pub.Equal(id.PublicKey()))
}

func TestStaticStakesLooksUpByPubkey(t *testing.T) {
	stakes := NewStaticStakes([]Validator{{Pubkey: "a", Stake: 42}})
	assert.Equal(t, uint64(42), stakes.StakeForSlot(0, "a"))
	assert.Equal(t, uint64(0), stakes.StakeForSlot(0, "unknown"))
}
