package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfig() RepairConfig {
	return RepairConfig{CheckTimeoutMaxMS: 1000, CheckDelayMS: 100, MaxDumps: 2}
}

func TestDumpBackoffCeilingTries(t *testing.T) {
	d := NewDumpBackoff(testConfig())
	assert.Equal(t, uint64(10), d.MaxTries())
}

func TestDumpBackoffDumpHalvesBudget(t *testing.T) {
	d := NewDumpBackoff(testConfig())
	d.Dump()
	assert.Equal(t, uint64(5), d.MaxTries())
	d.Dump()
	assert.Equal(t, uint64(2), d.MaxTries())
}

func TestDumpBackoffResetsAfterMaxDumps(t *testing.T) {
	cfg := testConfig() // MaxDumps: 2
	d := NewDumpBackoff(cfg)
	d.Dump() // dumps 0 -> 1, maxTries 10 -> 5
	d.Dump() // dumps 1 -> 2, maxTries 5 -> 2
	d.Dump() // dumps(2) >= MaxDumps(2): reset to ceiling, dumps -> 0
	assert.Equal(t, uint64(10), d.MaxTries())
}

func TestDumpBackoffNeverHitsZeroTries(t *testing.T) {
	cfg := RepairConfig{CheckTimeoutMaxMS: 100, CheckDelayMS: 100, MaxDumps: 100}
	d := NewDumpBackoff(cfg)
	for i := 0; i < 10; i++ {
		d.Dump()
	}
	assert.GreaterOrEqual(t, d.MaxTries(), uint64(1))
}

func TestDumpBackoffSuccessResetsState(t *testing.T) {
	d := NewDumpBackoff(testConfig())
	d.Dump()
	d.Success()
	assert.Equal(t, uint64(10), d.MaxTries())
}

func TestDumpBackoffExpiredConsumesBudget(t *testing.T) {
	cfg := RepairConfig{CheckTimeoutMaxMS: 100, CheckDelayMS: 100, MaxDumps: 2}
	d := NewDumpBackoff(cfg) // maxTries == 1
	assert.False(t, d.Expired())
	assert.True(t, d.Expired())
}
