package repair

import (
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/log"
	"github.com/shredchain/shredger/pkg/metrics"
	"github.com/shredchain/shredger/pkg/outstanding"
	"github.com/shredchain/shredger/pkg/shred"
	"github.com/shredchain/shredger/pkg/types"
)

// Bank is the slice of the execution layer the repair service consults:
// just enough to learn the finalized root to prune the weight tree to.
type Bank interface {
	RootSlot() types.Slot
}

// Vote is a confirmed vote delivered over an MPSC-style channel, used to
// bias repair toward heavily-voted forks (spec.md §4.3 step 2).
type Vote struct {
	Slot   types.Slot
	Pubkey string
	Stake  uint64
}

// Conn is the UDP surface the repair service sends requests over and
// the caller feeds response packets into. *net.UDPConn satisfies it.
type Conn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Service runs the ~100ms repair loop described in spec.md §4.3.
type Service struct {
	bs          blockstore.Blockstore
	schedule    blockstore.LeaderSchedule
	bank        Bank
	votes       <-chan Vote
	peers       *Peers
	outstanding *outstanding.Requests[Request]
	backoff     *DumpBackoff
	weight      *RepairWeight
	conn        Conn
	cfg         RepairConfig
	repairDelay time.Duration
	local       types.ContactInfo

	logger zerolog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// Stats summarizes one ~2s reporting window, mirroring the reference
// repair service's periodic "repair_stats" log line.
type Stats struct {
	ShredRequests, HighestShredRequests, OrphanRequests, Dumps uint64
}

// Config bundles Service's external collaborators and tuning, so
// NewService doesn't take an unreadable run of positional arguments.
type Config struct {
	Blockstore     blockstore.Blockstore
	LeaderSchedule blockstore.LeaderSchedule
	Bank           Bank
	Votes          <-chan Vote
	Conn           Conn
	Local          types.ContactInfo
	Peers          *Peers
	Repair         RepairConfig
	RepairDelay    time.Duration
	RequestTable   *outstanding.Requests[Request]
}

func NewService(cfg Config) *Service {
	root := cfg.Bank.RootSlot()
	return &Service{
		bs:          cfg.Blockstore,
		schedule:    cfg.LeaderSchedule,
		bank:        cfg.Bank,
		votes:       cfg.Votes,
		peers:       cfg.Peers,
		outstanding: cfg.RequestTable,
		backoff:     NewDumpBackoff(cfg.Repair),
		weight:      NewRepairWeight(root),
		conn:        cfg.Conn,
		cfg:         cfg.Repair,
		repairDelay: cfg.RepairDelay,
		local:       cfg.Local,
		logger:      log.WithComponent("repair"),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the repair loop in a background goroutine.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop signals the repair loop to exit and waits for it to finish.
func (s *Service) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(shred.RepairIntervalMS * time.Millisecond)
	defer ticker.Stop()
	statsTicker := time.NewTicker(2 * time.Second)
	defer statsTicker.Stop()

	s.logger.Info().Msg("repair service started")

	for {
		select {
		case <-ticker.C:
			s.cycle()
		case <-statsTicker.C:
			s.logStats()
		case <-s.stopCh:
			s.logger.Info().Msg("repair service stopped")
			return
		}
	}
}

// cycle runs one iteration of the main loop: spec.md §4.3 steps 1-5.
func (s *Service) cycle() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RepairCycleDuration)

	root := s.bank.RootSlot()
	s.weight.SetRoot(root)
	s.drainVotes()

	requests := s.rankRequests(shred.MaxRepairLength)
	if len(requests) == 0 {
		return
	}

	now := time.Now()
	sent := 0
	for _, req := range requests {
		peer, err := s.peers.Select(req.Slot)
		if err != nil {
			metrics.RepairNoPeersTotal.Inc()
			continue
		}
		nonce := s.outstanding.AddRequest(req, now)
		packet := EncodeRequest(req, s.local, nonce)
		if _, err := s.conn.WriteTo(packet, peer.ServeRepair); err != nil {
			s.logger.Info().Err(err).Str("peer", peer.Pubkey).Msg("repair request send failed")
			continue
		}
		sent++
		s.recordSent(req.Kind, peer.Pubkey)
	}

	if sent > 0 && s.backoff.Expired() {
		s.backoff.Dump()
		s.statsMu.Lock()
		s.stats.Dumps++
		s.statsMu.Unlock()
		metrics.RepairDumpsTotal.Inc()
	}
}

func (s *Service) rankRequests(maxTotal int) []Request {
	var requests []Request

	for _, slot := range s.weight.BestOrphans(shred.MaxOrphans) {
		if len(requests) >= maxTotal {
			return requests
		}
		requests = append(requests, Request{Kind: KindOrphan, Slot: slot})
	}

	// HighestShred requests rank ahead of Shred requests; the fork walk's
	// order is kept within each kind.
	forkRequests := GenerateRepairsForFork(s.bs, s.weight, s.repairDelay, maxTotal-len(requests))
	for _, kind := range []Kind{KindHighestWindowIndex, KindWindowIndex} {
		for _, r := range forkRequests {
			if r.Kind == kind {
				requests = append(requests, r)
			}
		}
	}
	if len(requests) > maxTotal {
		requests = requests[:maxTotal]
	}
	return requests
}

func (s *Service) drainVotes() {
	for {
		select {
		case v, ok := <-s.votes:
			if !ok {
				return
			}
			s.weight.AddVote(v.Slot, v.Stake)
		default:
			return
		}
	}
}

func (s *Service) recordSent(kind Kind, peerPubkey string) {
	s.statsMu.Lock()
	switch kind {
	case KindWindowIndex:
		s.stats.ShredRequests++
	case KindHighestWindowIndex:
		s.stats.HighestShredRequests++
	case KindOrphan:
		s.stats.OrphanRequests++
	}
	s.statsMu.Unlock()

	metrics.RepairRequestsTotal.WithLabelValues(kindLabel(kind)).Inc()
	metrics.RepairRequestsByPeerTotal.WithLabelValues(peerPubkey).Inc()
}

func kindLabel(kind Kind) string {
	switch kind {
	case KindWindowIndex:
		return "shred"
	case KindHighestWindowIndex:
		return "highest_shred"
	case KindOrphan:
		return "orphan"
	default:
		return "unknown"
	}
}

func (s *Service) logStats() {
	s.statsMu.Lock()
	stats := s.stats
	s.stats = Stats{}
	s.statsMu.Unlock()

	total := stats.ShredRequests + stats.HighestShredRequests + stats.OrphanRequests
	if total == 0 {
		return
	}
	s.logger.Info().
		Uint64("shred", stats.ShredRequests).
		Uint64("highest_shred", stats.HighestShredRequests).
		Uint64("orphan", stats.OrphanRequests).
		Uint64("dumps", stats.Dumps).
		Msg("repair_stats")
}

// HandleResponse matches a repair response packet's nonce against the
// outstanding request table, and if it matches, inserts the enclosed
// shred into the blockstore. Unmatched or expired responses are dropped
// silently, same as the reference implementation's nonce discipline.
func (s *Service) HandleResponse(packet []byte) error {
	shredBytes, nonce, err := DecodeResponse(packet)
	if err != nil {
		return err
	}
	timeout := time.Duration(s.backoff.MaxTries()) * s.cfg.delay()
	if _, ok := s.outstanding.RegisterResponse(nonce, time.Now(), timeout); !ok {
		return nil
	}

	buf := make([]byte, len(shredBytes))
	copy(buf, shredBytes)
	sh, err := shred.FromBytes(buf)
	if err != nil {
		return err
	}
	if _, err := s.bs.InsertShreds([]*shred.Shred{sh}, s.schedule, false); err != nil {
		return err
	}
	s.backoff.Success()
	return nil
}

// NewLocalRand returns a non-cryptographic RNG seeded with seed, suitable for stake-weighted peer sampling (not security
// sensitive — worst case is a skewed but not exploitable peer pick).
func NewLocalRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
