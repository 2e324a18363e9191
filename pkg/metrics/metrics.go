package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Shred codec metrics
	ShredsSignedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredger_shreds_signed_total",
			Help: "Total number of shreds signed, by type (data/coding)",
		},
		[]string{"type"},
	)

	ShredParseDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredger_shred_parse_drops_total",
			Help: "Total number of packets dropped during partial shred parsing, by reason",
		},
		[]string{"reason"},
	)

	// Blockstore metrics
	ShredsInsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_shreds_inserted_total",
			Help: "Total number of shreds successfully inserted into the blockstore",
		},
	)

	ShredsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_shreds_duplicate_total",
			Help: "Total number of duplicate shred insertions detected",
		},
	)

	ShredsBadSignatureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_shreds_bad_signature_total",
			Help: "Total number of shreds rejected for signature verification failure",
		},
	)

	ShredsRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_shreds_recovered_total",
			Help: "Total number of data shreds reconstructed via Reed-Solomon recovery",
		},
	)

	// Repair service metrics
	RepairCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shredger_repair_cycle_duration_seconds",
			Help:    "Time taken for one repair service loop iteration",
			Buckets: prometheus.DefBuckets,
		},
	)

	RepairRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredger_repair_requests_total",
			Help: "Total number of repair requests sent, by kind",
		},
		[]string{"kind"},
	)

	RepairRequestsByPeerTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredger_repair_requests_by_peer_total",
			Help: "Total number of repair requests sent, by destination peer",
		},
		[]string{"peer"},
	)

	RepairDumpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_repair_dumps_total",
			Help: "Total number of times the repair back-off dumped an unanswered wave of requests",
		},
	)

	RepairNoPeersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_repair_no_peers_total",
			Help: "Total number of repair requests dropped for lack of an eligible peer",
		},
	)

	// Serve-repair responder metrics
	ServeRepairRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredger_serve_repair_requests_total",
			Help: "Total number of repair requests handled by the serve-repair responder, by kind",
		},
		[]string{"kind"},
	)

	ServeRepairSelfRepairTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_serve_repair_self_repair_total",
			Help: "Total number of self-addressed repair requests dropped",
		},
	)

	ServeRepairDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_serve_repair_dropped_total",
			Help: "Total number of repair request packets dropped (batch overflow or malformed)",
		},
	)

	ServeRepairMaxPackets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shredger_serve_repair_max_packets",
			Help: "Current adaptive batch size for the serve-repair responder",
		},
	)

	ServeRepairBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shredger_serve_repair_batch_duration_seconds",
			Help:    "Time taken to handle one batch of repair request packets",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Replay stage metrics
	ReplayEntriesCommittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_replay_entries_committed_total",
			Help: "Total number of entries committed to the bank by the replay stage",
		},
	)

	ReplayVerificationFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_replay_verification_failed_total",
			Help: "Total number of entry batches that failed hash-chain verification",
		},
	)

	ReplayVotesCastTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shredger_replay_votes_cast_total",
			Help: "Total number of vote transactions constructed by the replay stage",
		},
	)

	ReplayRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shredger_replay_rotations_total",
			Help: "Total number of leader rotation signals emitted, by transition kind",
		},
		[]string{"transition"},
	)

	ReplayIterationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shredger_replay_iteration_duration_seconds",
			Help:    "Time taken for one replay stage iteration",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ShredsSignedTotal)
	prometheus.MustRegister(ShredParseDropsTotal)
	prometheus.MustRegister(ShredsInsertedTotal)
	prometheus.MustRegister(ShredsDuplicateTotal)
	prometheus.MustRegister(ShredsBadSignatureTotal)
	prometheus.MustRegister(ShredsRecoveredTotal)

	prometheus.MustRegister(RepairCycleDuration)
	prometheus.MustRegister(RepairRequestsTotal)
	prometheus.MustRegister(RepairRequestsByPeerTotal)
	prometheus.MustRegister(RepairDumpsTotal)
	prometheus.MustRegister(RepairNoPeersTotal)

	prometheus.MustRegister(ServeRepairRequestsTotal)
	prometheus.MustRegister(ServeRepairSelfRepairTotal)
	prometheus.MustRegister(ServeRepairDroppedTotal)
	prometheus.MustRegister(ServeRepairMaxPackets)
	prometheus.MustRegister(ServeRepairBatchDuration)

	prometheus.MustRegister(ReplayEntriesCommittedTotal)
	prometheus.MustRegister(ReplayVerificationFailedTotal)
	prometheus.MustRegister(ReplayVotesCastTotal)
	prometheus.MustRegister(ReplayRotationsTotal)
	prometheus.MustRegister(ReplayIterationDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
