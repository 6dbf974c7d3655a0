// Package metrics exposes Prometheus instrumentation over simulator
// and node activity. It is purely additive observability: nothing in
// netsim or node reads these values back, so a nil *Metrics is always
// safe to pass around.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge/histogram this run publishes.
type Metrics struct {
	MessagesSent       prometheus.Counter
	MessagesDropped    prometheus.Counter
	MessagesDuplicated prometheus.Counter
	RateLimitBlocks    prometheus.Counter
	FinalizedHeight    *prometheus.GaugeVec
	TimeToFinalize     prometheus.Histogram
}

// New registers every metric against reg and returns the bundle.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bftsim",
			Name:      "messages_sent_total",
			Help:      "Messages that passed the rate limiter and the loss gate and were scheduled for delivery.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bftsim",
			Name:      "messages_dropped_total",
			Help:      "Messages discarded by the loss gate (plain, header, or body).",
		}),
		MessagesDuplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bftsim",
			Name:      "messages_duplicated_total",
			Help:      "Extra delivery events scheduled by the duplicate gate.",
		}),
		RateLimitBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bftsim",
			Name:      "rate_limit_blocks_total",
			Help:      "Times a directed sender/receiver pair exceeded its rate limit and entered a block window.",
		}),
		FinalizedHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bftsim",
			Name:      "finalized_height",
			Help:      "Highest height finalized so far, by node.",
		}, []string{"node_id"}),
		TimeToFinalize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bftsim",
			Name:      "time_to_finalize_seconds",
			Help:      "Virtual time elapsed between a node proposing a block and that same node finalizing it.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{
		m.MessagesSent, m.MessagesDropped, m.MessagesDuplicated,
		m.RateLimitBlocks, m.FinalizedHeight, m.TimeToFinalize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The Inc*/Observe* helpers below tolerate a nil *Metrics so call sites
// in netsim don't need an if-m-is-nil guard at every instrumentation
// point; metrics wiring is optional, never load-bearing.

func (m *Metrics) IncSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.MessagesDropped.Inc()
	}
}

func (m *Metrics) IncDuplicated() {
	if m != nil {
		m.MessagesDuplicated.Inc()
	}
}

func (m *Metrics) IncRateLimitBlocks() {
	if m != nil {
		m.RateLimitBlocks.Inc()
	}
}

func (m *Metrics) SetFinalizedHeight(nodeID string, height uint64) {
	if m != nil {
		m.FinalizedHeight.WithLabelValues(nodeID).Set(float64(height))
	}
}

func (m *Metrics) ObserveTimeToFinalize(seconds float64) {
	if m != nil {
		m.TimeToFinalize.Observe(seconds)
	}
}
