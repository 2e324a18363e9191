package replay

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/log"
	"github.com/shredchain/shredger/pkg/metrics"
	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"
)

// DefaultMaxEntriesPerIter bounds how many shreds one replay iteration
// reads from the current slot before yielding, absent an explicit
// Config.MaxEntriesPerIter.
const DefaultMaxEntriesPerIter = 64

// errBatchNotReady means the blockstore doesn't yet hold a complete,
// contiguous run of shreds starting at the stage's read cursor.
var errBatchNotReady = errors.New("replay: entry batch not yet available")

// EntryBatch is published on the ledger-entry channel after a prefix of
// entries commits to the bank, for downstream consumers such as
// broadcast or streaming.
type EntryBatch struct {
	Slot    types.Slot
	Entries []types.Entry
}

// RotationSignal is emitted when the local identity becomes the leader
// for the slot following the one just replayed.
type RotationSignal struct {
	Slot        types.Slot
	TickHeight  uint64
	EntryHeight uint64
	LastID      [32]byte
}

// Config bundles a Stage's collaborators and tuning.
type Config struct {
	Blockstore blockstore.Blockstore
	Bank       Bank
	Schedule   LeaderSchedule
	Votes      VoteSink // optional; nil disables voting
	Entries    chan<- EntryBatch
	Rotation   chan<- RotationSignal
	Stream     *StreamSink // optional

	Local             string
	StartSlot         types.Slot
	TicksPerSlot      uint64
	MaxEntriesPerIter int
	VotingEnabled     bool
}

// Stage is the replay stage: it owns one background goroutine that
// drains verified entries from the blockstore into the bank, per
// spec.md §4.6's eight-step iteration.
type Stage struct {
	bs            blockstore.Blockstore
	bank          Bank
	schedule      LeaderSchedule
	votes         VoteSink
	entriesCh     chan<- EntryBatch
	rotationCh    chan<- RotationSignal
	stream        *StreamSink
	local         string
	ticksPerSlot  uint64
	maxPerIter    int
	votingEnabled bool

	logger zerolog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu                   sync.Mutex
	currentSlot          types.Slot
	currentLeader        string
	shredCursor          uint64
	entryHeight          uint64
	ticksToNextVote      uint64
	maxTickHeightForSlot uint64
}

func NewStage(cfg Config) *Stage {
	maxPerIter := cfg.MaxEntriesPerIter
	if maxPerIter <= 0 {
		maxPerIter = DefaultMaxEntriesPerIter
	}
	leader, _ := cfg.Schedule.LeaderForSlot(cfg.StartSlot)
	return &Stage{
		bs:            cfg.Blockstore,
		bank:          cfg.Bank,
		schedule:      cfg.Schedule,
		votes:         cfg.Votes,
		entriesCh:     cfg.Entries,
		rotationCh:    cfg.Rotation,
		stream:        cfg.Stream,
		local:         cfg.Local,
		ticksPerSlot:  cfg.TicksPerSlot,
		maxPerIter:    maxPerIter,
		votingEnabled: cfg.VotingEnabled,
		logger:        log.WithComponent("replay"),
		stopCh:        make(chan struct{}),

		currentSlot:          cfg.StartSlot,
		currentLeader:        leader,
		maxTickHeightForSlot: cfg.Bank.TickHeight() + cfg.TicksPerSlot,
		ticksToNextVote:      cfg.TicksPerSlot,
	}
}

func (s *Stage) Start() { s.wg.Add(1); go s.run() }

func (s *Stage) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Stage) run() {
	defer s.wg.Done()
	s.logger.Info().Msg("replay stage started")
	for {
		select {
		case <-s.stopCh:
			s.logger.Info().Msg("replay stage stopped")
			return
		default:
		}

		caughtUp, err := s.iterate()
		if err != nil {
			s.logger.Error().Err(err).Msg("replay iteration failed")
		}
		if !caughtUp {
			continue
		}

		select {
		case <-s.bs.Signal():
		case <-s.stopCh:
			s.logger.Info().Msg("replay stage stopped")
			return
		}
	}
}

// iterate runs one pass of the eight-step algorithm and reports whether
// the stage caught up with everything currently in the blockstore (in
// which case the caller should park on the signal channel).
func (s *Stage) iterate() (caughtUp bool, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReplayIterationDuration)

	s.mu.Lock()
	slot := s.currentSlot
	fromIndex := s.shredCursor
	s.mu.Unlock()

	entries, consumed, err := s.readBatch(slot, fromIndex, s.maxPerIter)
	if err != nil {
		if errors.Is(err, errBatchNotReady) {
			return true, nil
		}
		return true, err
	}

	s.mu.Lock()
	s.shredCursor += uint64(consumed)
	s.mu.Unlock()

	if _, verr := types.VerifyEntryChain(s.bank.LastID(), entries); verr != nil {
		metrics.ReplayVerificationFailedTotal.Inc()
		s.logger.Error().Err(verr).Uint64("slot", uint64(slot)).Msg("entry chain verification failed")
		return consumed < s.maxPerIter, nil
	}

	s.processEntries(slot, entries)

	return consumed < s.maxPerIter, nil
}

// readBatch walks data shreds for slot starting at fromIndex until it
// hits a gap (not ready), the DataComplete shred (a full batch), or
// maxShreds is exhausted without completing (also not ready — the
// caller will retry once more shreds land). It mirrors
// Blockstore.GetSlotEntries's own walk, duplicated here because that
// interface doesn't report how many shreds a batch consumed, which the
// replay cursor needs and GetSlotEntries has no reason to expose.
func (s *Stage) readBatch(slot types.Slot, fromIndex uint64, maxShreds int) ([]types.Entry, int, error) {
	var run []*shred.Shred
	for i := fromIndex; len(run) < maxShreds; i++ {
		sh, err := s.bs.GetDataShred(slot, uint32(i))
		if err != nil {
			return nil, len(run), err
		}
		if sh == nil {
			return nil, len(run), errBatchNotReady
		}
		run = append(run, sh)
		if sh.IsDataComplete() {
			entries, err := shred.Deshred(run)
			if err != nil {
				return nil, len(run), err
			}
			return entries, len(run), nil
		}
	}
	return nil, len(run), errBatchNotReady
}

// processEntries walks chain-verified entries tick by tick, committing
// a prefix to the bank each time the vote countdown reaches zero or the
// entries run out, per steps 3-7. A bank error stops the remainder of
// the batch without rolling back what already committed.
func (s *Stage) processEntries(slot types.Slot, entries []types.Entry) {
	i := 0
	for i < len(entries) {
		j := i
		hitZero := false
		for j < len(entries) {
			if entries[j].IsTick() && s.ticksToNextVote > 0 {
				s.ticksToNextVote--
			}
			j++
			if s.ticksToNextVote == 0 {
				hitZero = true
				break
			}
		}
		prefix := entries[i:j]
		i = j

		if err := s.bank.ProcessEntries(prefix); err != nil {
			s.logger.Error().Err(err).Uint64("slot", uint64(slot)).Msg("bank rejected entry prefix")
			return
		}
		metrics.ReplayEntriesCommittedTotal.Add(float64(len(prefix)))
		s.publishBatch(slot, prefix)

		if hitZero {
			if s.votingEnabled {
				s.castVote(slot)
			}
			s.ticksToNextVote = s.ticksPerSlot
		}

		s.maybeRotate(slot)
	}
}

func (s *Stage) castVote(slot types.Slot) {
	if s.votes == nil {
		return
	}
	if err := s.votes.SubmitVote(slot, s.bank.TickHeight(), s.bank.LastID()); err != nil {
		s.logger.Info().Err(err).Uint64("slot", uint64(slot)).Msg("vote submission failed")
		return
	}
	metrics.ReplayVotesCastTotal.Inc()
}

// maybeRotate implements step 7: once the bank's tick height reaches
// the current slot's final tick, query the schedule for the next
// slot's leader, emit a rotation signal if it names the local identity
// and differs from the outgoing leader, then advance past the
// boundary. Guarded by the currentSlot match so a stale caller (the
// remainder of an already-rotated-past batch) can't re-fire it.
func (s *Stage) maybeRotate(slot types.Slot) {
	s.mu.Lock()
	current := s.currentSlot
	s.mu.Unlock()
	if slot != current || s.bank.TickHeight() < s.maxTickHeightForSlot {
		return
	}

	nextSlot := slot + 1
	newLeader, _ := s.schedule.LeaderForSlot(nextSlot)
	transition := nextRotationState(s.currentLeader == s.local, newLeader == s.local)
	metrics.ReplayRotationsTotal.WithLabelValues(transition.String()).Inc()

	if s.currentLeader != newLeader && newLeader == s.local {
		s.emitRotation(slot, nextSlot)
	}

	s.mu.Lock()
	s.currentSlot = nextSlot
	s.shredCursor = 0
	s.maxTickHeightForSlot += s.ticksPerSlot
	s.ticksToNextVote = s.ticksPerSlot
	s.mu.Unlock()
	s.currentLeader = newLeader
}

func (s *Stage) emitRotation(finishedSlot, nextSlot types.Slot) {
	if s.rotationCh == nil {
		return
	}
	sig := RotationSignal{
		Slot:        nextSlot,
		TickHeight:  s.bank.TickHeight(),
		EntryHeight: s.entryHeight,
		LastID:      s.bank.LastID(),
	}
	select {
	case s.rotationCh <- sig:
	default:
		s.logger.Warn().Uint64("slot", uint64(finishedSlot)).Msg("rotation signal dropped: channel full")
	}
}

func (s *Stage) publishBatch(slot types.Slot, entries []types.Entry) {
	s.entryHeight += uint64(len(entries))
	if s.stream != nil {
		s.stream.Publish(entries)
	}
	if s.entriesCh == nil {
		return
	}
	batch := EntryBatch{Slot: slot, Entries: entries}
	select {
	case s.entriesCh <- batch:
	default:
		s.logger.Warn().Uint64("slot", uint64(slot)).Msg("ledger entry batch dropped: channel full")
	}
}
