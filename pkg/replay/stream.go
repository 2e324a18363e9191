package replay

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shredchain/shredger/pkg/log"
	"github.com/shredchain/shredger/pkg/types"
)

// streamRecord is the line-delimited JSON shape the optional entry
// stream emits: a timestamp plus the verified entry itself.
type streamRecord struct {
	DT    time.Time   `json:"dt"`
	Entry types.Entry `json:"entry"`
}

// StreamSink fans verified entries out to a line-delimited JSON writer.
// It is the same non-blocking, drop-when-full shape as the teacher's
// event broker (github.com/cuemby/warren/pkg/events.Broker), specialized
// to one consumer instead of many subscribers: publishing never blocks
// the replay stage, and a slow or stalled writer just loses records
// rather than backing up commit.
type StreamSink struct {
	w      io.Writer
	ch     chan streamRecord
	logger zerolog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	dropped uint64
}

// NewStreamSink constructs a sink writing to w. Nothing is written until
// Start runs; records published before that wait in the sink's buffer.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{
		w:      w,
		ch:     make(chan streamRecord, 256),
		logger: log.WithComponent("replay-stream"),
		stopCh: make(chan struct{}),
	}
}

func (s *StreamSink) Start() { s.wg.Add(1); go s.run() }

func (s *StreamSink) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Publish enqueues entries for streaming. Entries that don't fit in the
// buffer are dropped and counted rather than blocking the caller.
func (s *StreamSink) Publish(entries []types.Entry) {
	now := time.Now()
	for _, e := range entries {
		select {
		case s.ch <- streamRecord{DT: now, Entry: e}:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		}
	}
}

// Dropped returns the number of records dropped for a full buffer.
func (s *StreamSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *StreamSink) run() {
	defer s.wg.Done()
	enc := json.NewEncoder(s.w)
	for {
		select {
		case rec := <-s.ch:
			if err := enc.Encode(rec); err != nil {
				s.logger.Info().Err(err).Msg("entry stream write failed")
			}
		case <-s.stopCh:
			return
		}
	}
}
