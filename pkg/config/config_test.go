package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForOmittedSections(t *testing.T) {
	path := writeConfig(t, `
identity:
  key_path: /var/lib/shredger/identity.key
store:
  data_dir: /var/lib/shredger/blockstore
network:
  serve_repair: 0.0.0.0:8003
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(15000), cfg.Repair.CheckTimeoutMaxMS)
	assert.Equal(t, uint64(100), cfg.Repair.CheckDelayMS)
	assert.Equal(t, uint64(50), cfg.Repair.MaxDumps)
	assert.Equal(t, uint64(64), cfg.Replay.TicksPerSlot)
	assert.Equal(t, 64, cfg.Replay.MaxEntriesPerIter)
	assert.Equal(t, 1.0, cfg.Shred.FECRate)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverridesDefaultsWhenSet(t *testing.T) {
	path := writeConfig(t, `
identity:
  key_path: /key
store:
  data_dir: /data
network:
  serve_repair: 0.0.0.0:8003
repair:
  max_dumps: 10
replay:
  ticks_per_slot: 8
  voting_enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(10), cfg.Repair.MaxDumps)
	assert.Equal(t, uint64(15000), cfg.Repair.CheckTimeoutMaxMS, "unset fields keep their default")
	assert.Equal(t, uint64(8), cfg.Replay.TicksPerSlot)
	assert.True(t, cfg.Replay.VotingEnabled)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
store:
  data_dir: /data
network:
  serve_repair: 0.0.0.0:8003
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "identity.key_path")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRepairConfigToRepairConfig(t *testing.T) {
	c := RepairConfig{CheckTimeoutMaxMS: 1, CheckDelayMS: 2, MaxDumps: 3, RepairDelayMS: 4}
	rc := c.ToRepairConfig()
	assert.Equal(t, uint64(1), rc.CheckTimeoutMaxMS)
	assert.Equal(t, uint64(2), rc.CheckDelayMS)
	assert.Equal(t, uint64(3), rc.MaxDumps)
}
