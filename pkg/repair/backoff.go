package repair

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RepairConfig holds the empirically-tuned batching back-off constants
// spec.md §9 calls out as an open question the source never justifies —
// exposed as configuration rather than hardcoded, per that section's
// instruction.
type RepairConfig struct {
	// CheckTimeoutMaxMS / CheckDelayMS together set the retry ceiling:
	// CheckTimeoutMaxMS / CheckDelayMS attempts before a wave of
	// requests is dumped.
	CheckTimeoutMaxMS uint64
	CheckDelayMS      uint64
	// MaxDumps is how many consecutive dumps are tolerated before the
	// retry budget resets to its ceiling, on the theory that a long run
	// of dumps means the cluster is backlogged rather than dropping
	// packets.
	MaxDumps uint64
}

func DefaultRepairConfig() RepairConfig {
	return RepairConfig{CheckTimeoutMaxMS: 15000, CheckDelayMS: 100, MaxDumps: 50}
}

func (c RepairConfig) delay() time.Duration {
	return time.Duration(c.CheckDelayMS) * time.Millisecond
}

func (c RepairConfig) ceilingTries() uint64 {
	if c.CheckDelayMS == 0 {
		return 0
	}
	return c.CheckTimeoutMaxMS / c.CheckDelayMS
}

// DumpBackoff tracks the retry budget for a wave of outstanding repair
// requests, mirroring the reference client's chunk-confirmation back-off
// (bench-exchange's CHECK_TX_TIMEOUT_MAX_MS/CHECK_TX_DELAY_MS/MAX_DUMPS
// loop): each wave gets `ceilingTries` ticks of patience before it is
// "dumped" — abandoned in favor of fresh requests to new peers. Each
// dump halves the budget; after MaxDumps consecutive dumps the budget
// resets to the ceiling, and any successful match resets it immediately.
type DumpBackoff struct {
	cfg      RepairConfig
	budget   backoff.BackOff
	maxTries uint64
	dumps    uint64
}

func NewDumpBackoff(cfg RepairConfig) *DumpBackoff {
	d := &DumpBackoff{cfg: cfg, maxTries: cfg.ceilingTries()}
	d.rebuild()
	return d
}

func (d *DumpBackoff) rebuild() {
	d.budget = backoff.WithMaxRetries(backoff.NewConstantBackOff(d.cfg.delay()), d.maxTries)
}

// Expired consumes one tick of the retry budget and reports whether it
// is now exhausted.
func (d *DumpBackoff) Expired() bool {
	return d.budget.NextBackOff() == backoff.Stop
}

// Dump applies one dump's effect: halve the budget, or reset to the
// ceiling once MaxDumps consecutive dumps have occurred.
func (d *DumpBackoff) Dump() {
	if d.dumps >= d.cfg.MaxDumps {
		d.dumps = 0
		d.maxTries = d.cfg.ceilingTries()
	} else {
		d.dumps++
		d.maxTries /= 2
	}
	if d.maxTries == 0 {
		d.maxTries = 1
	}
	d.rebuild()
}

// Success resets the back-off state after a wave's requests are matched.
func (d *DumpBackoff) Success() {
	d.dumps = 0
	d.maxTries = d.cfg.ceilingTries()
	d.rebuild()
}

// MaxTries reports the current retry ceiling, for metrics.
func (d *DumpBackoff) MaxTries() uint64 { return d.maxTries }
