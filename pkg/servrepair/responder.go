package servrepair

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/log"
	"github.com/shredchain/shredger/pkg/metrics"
	"github.com/shredchain/shredger/pkg/repair"
	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"
)

const (
	minMaxPackets     = 64
	maxMaxPackets     = 8192
	defaultMaxPackets = 1024
	slowBatchDuration = time.Second
)

// PacketConn is the UDP surface the responder reads requests from and
// writes responses to. *net.UDPConn satisfies it.
type PacketConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetReadDeadline(t time.Time) error
}

// Config bundles a Responder's collaborators and tuning.
type Config struct {
	Conn         PacketConn
	Blockstore   blockstore.Blockstore
	Local        types.ContactInfo
	BatchTimeout time.Duration // default 1s
}

// Responder answers repair requests per spec.md §4.4: one UDP socket,
// batched reads, self-repair and malformed-packet drops, dispatch by
// request kind, and an adaptive per-batch packet cap.
type Responder struct {
	conn         PacketConn
	bs           blockstore.Blockstore
	local        types.ContactInfo
	batchTimeout time.Duration

	maxPackets int
	logger     zerolog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewResponder(cfg Config) *Responder {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Responder{
		conn:         cfg.Conn,
		bs:           cfg.Blockstore,
		local:        cfg.Local,
		batchTimeout: timeout,
		maxPackets:   defaultMaxPackets,
		logger:       log.WithComponent("servrepair"),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the responder loop in a background goroutine.
func (r *Responder) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop signals the responder loop to exit and waits for it to finish.
func (r *Responder) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

type packet struct {
	data []byte
	from net.Addr
}

func (r *Responder) run() {
	defer r.wg.Done()
	r.logger.Info().Msg("serve-repair responder started")

	buf := make([]byte, shred.PacketDataSize+shred.SizeOfNonce+64)
	for {
		select {
		case <-r.stopCh:
			r.logger.Info().Msg("serve-repair responder stopped")
			return
		default:
		}

		batch, dropped := r.readBatch(buf)
		if len(batch) == 0 && dropped == 0 {
			continue
		}

		metrics.ServeRepairDroppedTotal.Add(float64(dropped))

		timer := metrics.NewTimer()
		for _, p := range batch {
			r.handlePacket(p.data, p.from)
		}
		elapsed := timer.Duration()
		metrics.ServeRepairBatchDuration.Observe(elapsed.Seconds())
		r.adjustMaxPackets(elapsed)
	}
}

// readBatch drains the socket for up to batchTimeout, keeping at most
// maxPackets for processing and counting (and discarding) the rest, so
// a burst of requests never backs up the kernel's receive buffer.
func (r *Responder) readBatch(buf []byte) ([]packet, int) {
	deadline := time.Now().Add(r.batchTimeout)
	_ = r.conn.SetReadDeadline(deadline)

	var batch []packet
	var dropped int
	for {
		select {
		case <-r.stopCh:
			return batch, dropped
		default:
		}

		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return batch, dropped
			}
			return batch, dropped
		}
		if len(batch) >= r.maxPackets {
			dropped++
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		batch = append(batch, packet{data: data, from: addr})
	}
}

func (r *Responder) adjustMaxPackets(elapsed time.Duration) {
	if elapsed > slowBatchDuration {
		r.maxPackets /= 2
		if r.maxPackets < minMaxPackets {
			r.maxPackets = minMaxPackets
		}
	} else {
		r.maxPackets += r.maxPackets / 10
		if r.maxPackets > maxMaxPackets {
			r.maxPackets = maxMaxPackets
		}
	}
	metrics.ServeRepairMaxPackets.Set(float64(r.maxPackets))
}

func (r *Responder) handlePacket(data []byte, from net.Addr) {
	req, fromPubkey, nonce, err := repair.DecodeRequest(data)
	if err != nil {
		metrics.ServeRepairDroppedTotal.Inc()
		return
	}
	if fromPubkey == r.local.Pubkey {
		metrics.ServeRepairSelfRepairTotal.Inc()
		return
	}

	metrics.ServeRepairRequestsTotal.WithLabelValues(kindLabel(req.Kind)).Inc()

	switch req.Kind {
	case repair.KindWindowIndex:
		r.handleWindowIndex(req, from, nonce)
	case repair.KindHighestWindowIndex:
		r.handleHighestWindowIndex(req, from, nonce)
	case repair.KindOrphan:
		r.handleOrphan(req, from, nonce)
	}
}

func (r *Responder) handleWindowIndex(req repair.Request, from net.Addr, nonce uint32) {
	sh, err := r.bs.GetDataShred(req.Slot, uint32(req.Index))
	if err != nil || sh == nil {
		return
	}
	r.respond(sh, from, nonce)
}

func (r *Responder) handleHighestWindowIndex(req repair.Request, from net.Addr, nonce uint32) {
	meta, err := r.bs.Meta(req.Slot)
	if err != nil || meta.Received <= req.Index {
		return
	}
	sh, err := r.bs.GetDataShred(req.Slot, uint32(meta.Received-1))
	if err != nil || sh == nil {
		return
	}
	r.respond(sh, from, nonce)
}

// handleOrphan walks up the parent chain from req.Slot, replying with
// the highest known shred of each ancestor in turn, up to
// MaxOrphanRepairResponses packets, until the chain ends (self-parented
// slot) or an ancestor has no meta to answer from.
func (r *Responder) handleOrphan(req repair.Request, from net.Addr, nonce uint32) {
	slot := req.Slot
	for i := 0; i < shred.MaxOrphanRepairResponses; i++ {
		meta, err := r.bs.Meta(slot)
		if err != nil || meta.Received == 0 {
			return
		}
		sh, err := r.bs.GetDataShred(slot, uint32(meta.Received-1))
		if err != nil || sh == nil {
			return
		}
		r.respond(sh, from, nonce)

		if meta.ParentSlot == slot {
			return
		}
		slot = meta.ParentSlot
	}
}

func (r *Responder) respond(sh *shred.Shred, from net.Addr, nonce uint32) {
	packet := repair.EncodeResponse(sh.Bytes(), nonce)
	if _, err := r.conn.WriteTo(packet, from); err != nil {
		r.logger.Info().Err(err).Msg("serve-repair response send failed")
	}
}

func kindLabel(kind repair.Kind) string {
	switch kind {
	case repair.KindWindowIndex:
		return "window_index"
	case repair.KindHighestWindowIndex:
		return "highest_window_index"
	case repair.KindOrphan:
		return "orphan"
	default:
		return "unknown"
	}
}
