// Package metrics provides the Prometheus collector for the coordination
// daemon.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trinity-symphony/coordination/transport"
	"github.com/trinity-symphony/coordination/types"
)

// Collector aggregates the coordination metrics.
type Collector struct {
	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration *prometheus.HistogramVec
	broadcastFanout  prometheus.Histogram

	consensusRoundsTotal *prometheus.CounterVec
	votesTotal           *prometheus.CounterVec

	registerer prometheus.Registerer
}

// NewCollector registers the coordination metrics under the namespace on
// the given registerer. A nil registerer uses the default one.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{registerer: reg}

	c.deliveriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of message delivery attempts",
		},
		[]string{"path", "result"},
	)

	c.deliveryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Message delivery duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	c.broadcastFanout = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_fanout",
			Help:      "Number of recipients per broadcast",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	c.consensusRoundsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_rounds_total",
			Help:      "Total number of resolved consensus rounds",
		},
		[]string{"result"},
	)

	c.votesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of consensus votes received",
		},
		[]string{"vote"},
	)

	return c
}

// ObserveDelivery records one delivery attempt.
func (c *Collector) ObserveDelivery(manager *types.Manager, outcome transport.Outcome) {
	path := "external"
	if manager.IsInternal() {
		path = "internal"
	}
	result := "failure"
	if outcome.Success {
		result = "success"
	}
	c.deliveriesTotal.WithLabelValues(path, result).Inc()
	c.deliveryDuration.WithLabelValues(path).Observe(outcome.Elapsed.Seconds())
}

// ObserveBroadcast records the recipient count of one broadcast.
func (c *Collector) ObserveBroadcast(recipients int) {
	c.broadcastFanout.Observe(float64(recipients))
}

// ObserveConsensusResolved records a resolved round.
func (c *Collector) ObserveConsensusResolved(approved bool) {
	result := "rejected"
	if approved {
		result = "approved"
	}
	c.consensusRoundsTotal.WithLabelValues(result).Inc()
}

// ObserveVote records one received ballot.
func (c *Collector) ObserveVote(choice types.VoteChoice) {
	c.votesTotal.WithLabelValues(string(choice)).Inc()
}

// RegisterGauges exposes live state as gauge functions. The callbacks must
// be safe for concurrent use.
func (c *Collector) RegisterGauges(namespace string, managersOnline, sessionsActive func() float64) {
	c.registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "managers_online",
			Help:      "Number of managers currently online",
		},
		managersOnline,
	))
	c.registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open bilateral sessions",
		},
		sessionsActive,
	))
}

// Deliverer forwards deliveries to the underlying transport and records
// their outcomes.
type Deliverer struct {
	next      deliverFunc
	collector *Collector
}

type deliverFunc interface {
	Deliver(ctx context.Context, manager *types.Manager, msg *types.Message) transport.Outcome
}

// InstrumentDeliverer wraps a transport so every delivery is observed.
func InstrumentDeliverer(next deliverFunc, collector *Collector) *Deliverer {
	return &Deliverer{next: next, collector: collector}
}

func (d *Deliverer) Deliver(ctx context.Context, manager *types.Manager, msg *types.Message) transport.Outcome {
	start := time.Now()
	outcome := d.next.Deliver(ctx, manager, msg)
	if outcome.Elapsed == 0 {
		outcome.Elapsed = time.Since(start)
	}
	d.collector.ObserveDelivery(manager, outcome)
	return outcome
}
