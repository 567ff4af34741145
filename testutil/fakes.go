// Package testutil provides shared fakes and helpers for coordination
// tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/trinity-symphony/coordination/transport"
	"github.com/trinity-symphony/coordination/types"
)

// FakeDeliverer is an in-memory Deliverer that records every delivery and
// supports per-manager artificial delay and failure, which makes broadcast
// concurrency properties testable without a network.
type FakeDeliverer struct {
	mu         sync.Mutex
	deliveries map[string][]*types.Message
	failures   map[string]bool
	delays     map[string]time.Duration
	recorder   transport.OutcomeRecorder
}

// NewFakeDeliverer creates an empty fake. If recorder is non-nil every
// delivery outcome is reported to it, mirroring the real transport.
func NewFakeDeliverer(recorder transport.OutcomeRecorder) *FakeDeliverer {
	return &FakeDeliverer{
		deliveries: make(map[string][]*types.Message),
		failures:   make(map[string]bool),
		delays:     make(map[string]time.Duration),
		recorder:   recorder,
	}
}

// FailFor makes deliveries to the manager fail.
func (f *FakeDeliverer) FailFor(managerID string) {
	f.mu.Lock()
	f.failures[managerID] = true
	f.mu.Unlock()
}

// DelayFor makes deliveries to the manager block for d before settling.
func (f *FakeDeliverer) DelayFor(managerID string, d time.Duration) {
	f.mu.Lock()
	f.delays[managerID] = d
	f.mu.Unlock()
}

// Deliver implements the router's Deliverer contract.
func (f *FakeDeliverer) Deliver(ctx context.Context, manager *types.Manager, msg *types.Message) transport.Outcome {
	f.mu.Lock()
	delay := f.delays[manager.ID]
	fail := f.failures[manager.ID]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.deliveries[manager.ID] = append(f.deliveries[manager.ID], msg.Clone())
	f.mu.Unlock()

	outcome := transport.Outcome{Success: !fail, Attempts: 1}
	if fail {
		outcome.Err = transport.ErrDeliveryFailed
	}
	if f.recorder != nil {
		_ = f.recorder.RecordOutcome(manager.ID, outcome.Success)
	}
	return outcome
}

// Received returns the messages delivered to the manager in order.
func (f *FakeDeliverer) Received(managerID string) []*types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	msgs := f.deliveries[managerID]
	out := make([]*types.Message, len(msgs))
	copy(out, msgs)
	return out
}

// DeliveryCount returns the total number of deliveries attempted.
func (f *FakeDeliverer) DeliveryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, msgs := range f.deliveries {
		n += len(msgs)
	}
	return n
}
