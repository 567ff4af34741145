package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/trinity-symphony/coordination/transport"
	"github.com/trinity-symphony/coordination/types"
)

func newTestCollector() (*Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewCollector("trinity", reg), reg
}

func TestObserveDelivery(t *testing.T) {
	c, _ := newTestCollector()

	c.ObserveDelivery(&types.Manager{ID: "a", Endpoint: "http://a.local"},
		transport.Outcome{Success: true, Elapsed: 20 * time.Millisecond})
	c.ObserveDelivery(&types.Manager{ID: "b", Endpoint: types.EndpointInternal},
		transport.Outcome{Success: false, Elapsed: time.Millisecond})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesTotal.WithLabelValues("external", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesTotal.WithLabelValues("internal", "failure")))
}

func TestObserveConsensusAndVotes(t *testing.T) {
	c, _ := newTestCollector()

	c.ObserveConsensusResolved(true)
	c.ObserveConsensusResolved(false)
	c.ObserveConsensusResolved(false)
	c.ObserveVote(types.VoteApprove)
	c.ObserveVote(types.VoteAbstain)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.consensusRoundsTotal.WithLabelValues("approved")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.consensusRoundsTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.votesTotal.WithLabelValues("approve")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.votesTotal.WithLabelValues("abstain")))
}

func TestRegisterGauges(t *testing.T) {
	c, reg := newTestCollector()

	c.RegisterGauges("trinity",
		func() float64 { return 3 },
		func() float64 { return 2 },
	)

	families, err := reg.Gather()
	assert.NoError(t, err)

	found := map[string]float64{}
	for _, mf := range families {
		if len(mf.Metric) == 1 && mf.Metric[0].Gauge != nil {
			found[mf.GetName()] = mf.Metric[0].Gauge.GetValue()
		}
	}
	assert.Equal(t, 3.0, found["trinity_managers_online"])
	assert.Equal(t, 2.0, found["trinity_sessions_active"])
}

type staticDeliverer struct {
	outcome transport.Outcome
}

func (s *staticDeliverer) Deliver(context.Context, *types.Manager, *types.Message) transport.Outcome {
	return s.outcome
}

func TestInstrumentedDeliverer(t *testing.T) {
	c, _ := newTestCollector()
	d := InstrumentDeliverer(&staticDeliverer{
		outcome: transport.Outcome{Success: true, Elapsed: 5 * time.Millisecond},
	}, c)

	out := d.Deliver(context.Background(), &types.Manager{ID: "a", Endpoint: "http://a.local"},
		&types.Message{From: "x", To: "a", Type: types.MessageQuery})

	assert.True(t, out.Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesTotal.WithLabelValues("external", "success")))
}
