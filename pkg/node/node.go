package node

import (
	"fmt"
	"math/rand"
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/shredchain/shredger/pkg/blockstore"
	"github.com/shredchain/shredger/pkg/config"
	"github.com/shredchain/shredger/pkg/identity"
	"github.com/shredchain/shredger/pkg/log"
	"github.com/shredchain/shredger/pkg/outstanding"
	"github.com/shredchain/shredger/pkg/repair"
	"github.com/shredchain/shredger/pkg/replay"
	"github.com/shredchain/shredger/pkg/servrepair"
	"github.com/shredchain/shredger/pkg/types"
)

// Config bundles the pieces Node cannot derive from the config file
// alone: the bank (execution layer), the validator stake table the
// leader schedule and peer selection are computed from, and the
// cluster's contact list, all external collaborators per spec.md.
type Config struct {
	File       config.Config
	Bank       Bank
	Validators []Validator
	Contacts   []types.ContactInfo
	Votes      <-chan repair.Vote
	VoteSink   replay.VoteSink
	Entries    chan<- replay.EntryBatch
	Rotation   chan<- replay.RotationSignal
}

// Node supervises one validator process: the blockstore plus the
// repair service, serve-repair responder, and replay stage running
// against it.
type Node struct {
	id *identity.Identity
	bs *blockstore.BoltBlockstore

	repairSvc  *repair.Service
	responder  *servrepair.Responder
	replayStg  *replay.Stage
	streamSink *replay.StreamSink

	conn   *net.UDPConn
	logger zerolog.Logger
}

// New constructs every subsystem but starts none of them: the
// blockstore is opened, the UDP socket bound, and the leader schedule,
// peer set, and outstanding-request table built from cfg. Call Start
// to begin serving.
func New(cfg Config) (*Node, error) {
	id, err := identity.LoadFromFile(cfg.File.Identity.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("node: load identity: %w", err)
	}

	bs, err := blockstore.NewBoltBlockstore(cfg.File.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("node: open blockstore: %w", err)
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.File.Network.ServeRepair)
	if err != nil {
		bs.Close()
		return nil, fmt.Errorf("node: resolve serve-repair address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		bs.Close()
		return nil, fmt.Errorf("node: bind serve-repair socket: %w", err)
	}

	local := types.ContactInfo{
		Pubkey:       id.Pubkey(),
		ServeRepair:  addr,
		ShredVersion: cfg.File.Network.ShredVersion,
	}

	schedule := NewLeaderSchedule(cfg.Validators, 0)
	if len(cfg.Validators) > 0 {
		schedule = NewLeaderSchedule(cfg.Validators, types.Slot(len(cfg.Validators))*defaultSlotsPerValidator)
	}
	bsSchedule := NewBlockstoreSchedule(schedule)
	stakes := NewStaticStakes(cfg.Validators)
	peers := repair.NewPeers(id.Pubkey(), cfg.Contacts, stakes, rand.New(rand.NewSource(1)))

	repairSvc := repair.NewService(repair.Config{
		Blockstore:     bs,
		LeaderSchedule: bsSchedule,
		Bank:           cfg.Bank,
		Votes:          cfg.Votes,
		Conn:           conn,
		Local:          local,
		Peers:          peers,
		Repair:         cfg.File.Repair.ToRepairConfig(),
		RepairDelay:    cfg.File.Repair.RepairDelay(),
		RequestTable:   outstanding.New[repair.Request](4096),
	})

	responder := servrepair.NewResponder(servrepair.Config{
		Conn:       conn,
		Blockstore: bs,
		Local:      local,
	})

	var stream *replay.StreamSink
	if cfg.File.Replay.StreamPath != "" {
		f, err := os.OpenFile(cfg.File.Replay.StreamPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			conn.Close()
			bs.Close()
			return nil, fmt.Errorf("node: open entry stream: %w", err)
		}
		stream = replay.NewStreamSink(f)
	}

	replayStg := replay.NewStage(replay.Config{
		Blockstore:        bs,
		Bank:              cfg.Bank,
		Schedule:          schedule,
		Votes:             cfg.VoteSink,
		Entries:           cfg.Entries,
		Rotation:          cfg.Rotation,
		Stream:            stream,
		Local:             id.Pubkey(),
		TicksPerSlot:      cfg.File.Replay.TicksPerSlot,
		MaxEntriesPerIter: cfg.File.Replay.MaxEntriesPerIter,
		VotingEnabled:     cfg.File.Replay.VotingEnabled,
	})

	return &Node{
		id:         id,
		bs:         bs,
		repairSvc:  repairSvc,
		responder:  responder,
		replayStg:  replayStg,
		streamSink: stream,
		conn:       conn,
		logger:     log.WithComponent("node").With().Str("identity", id.Pubkey()).Logger(),
	}, nil
}

// defaultSlotsPerValidator sizes an epoch when the caller doesn't name
// one explicitly: enough slots that every validator gets a meaningful
// run without forcing every deployment to configure slots_per_epoch.
const defaultSlotsPerValidator = 16

// Start begins every subsystem.
func (n *Node) Start() {
	n.logger.Info().Msg("node starting")
	if n.streamSink != nil {
		n.streamSink.Start()
	}
	n.repairSvc.Start()
	n.responder.Start()
	n.replayStg.Start()
}

// Stop halts every subsystem (replay and repair before the responder,
// so no new work is generated for the socket that's about to close)
// and closes the blockstore and socket.
func (n *Node) Stop() error {
	n.logger.Info().Msg("node stopping")
	n.replayStg.Stop()
	n.repairSvc.Stop()
	n.responder.Stop()
	if n.streamSink != nil {
		n.streamSink.Stop()
	}

	if err := n.conn.Close(); err != nil {
		return fmt.Errorf("node: close socket: %w", err)
	}
	if err := n.bs.Close(); err != nil {
		return fmt.Errorf("node: close blockstore: %w", err)
	}
	return nil
}

// Identity returns the node's loaded keypair.
func (n *Node) Identity() *identity.Identity { return n.id }
