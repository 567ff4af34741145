package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trinity-symphony/coordination/history"
	"github.com/trinity-symphony/coordination/registry"
	"github.com/trinity-symphony/coordination/transport"
	"github.com/trinity-symphony/coordination/types"
)

// Deliverer delivers one message to one manager. Implemented by
// transport.Transport; tests substitute fakes.
type Deliverer interface {
	Deliver(ctx context.Context, manager *types.Manager, msg *types.Message) transport.Outcome
}

// ManagerSource resolves send targets. Implemented by registry.Registry.
type ManagerSource interface {
	Get(id string) (*types.Manager, error)
	All() []*types.Manager
}

// Router addresses messages to one recipient or to all known managers,
// fanning out broadcasts concurrently and aggregating outcomes.
type Router struct {
	managers  ManagerSource
	deliverer Deliverer
	history   history.Store
	logger    *zap.Logger

	// recipientMu serializes direct sends per recipient so one caller's
	// messages to one manager arrive in submission order.
	recipientMu   map[string]*sync.Mutex
	recipientMuMu sync.Mutex

	fanoutObserver func(recipients int)
}

// SetFanoutObserver registers a callback invoked with the recipient count
// of every broadcast. Must be called before Send.
func (r *Router) SetFanoutObserver(f func(recipients int)) {
	r.fanoutObserver = f
}

// New creates a Router.
func New(managers ManagerSource, deliverer Deliverer, hist history.Store, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hist == nil {
		hist = history.NewMemoryStore()
	}
	return &Router{
		managers:    managers,
		deliverer:   deliverer,
		history:     hist,
		logger:      logger.With(zap.String("component", "router")),
		recipientMu: make(map[string]*sync.Mutex),
	}
}

// History returns the message history log.
func (r *Router) History() history.Store {
	return r.history
}

// Send assigns id and timestamp, appends the message to the history log
// and delivers it. Broadcasts fan out concurrently to every online or busy
// manager except the sender and always accept; direct sends return after
// delivery resolves, surfacing failure to the caller.
func (r *Router) Send(ctx context.Context, msg *types.Message) (string, error) {
	if msg == nil {
		return "", types.ErrNilMessage
	}

	msg = msg.Clone()
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()

	if err := msg.Validate(); err != nil {
		return "", err
	}

	// The history log records every sent message regardless of delivery
	// outcome.
	if err := r.history.Append(ctx, msg); err != nil {
		r.logger.Error("history append failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	if msg.IsBroadcast() {
		r.broadcast(ctx, msg)
		return msg.ID, nil
	}
	return msg.ID, r.direct(ctx, msg)
}

// broadcast fans out concurrently and waits for all deliveries to settle.
// Individual failures are recorded by the transport; none are surfaced to
// the caller.
func (r *Router) broadcast(ctx context.Context, msg *types.Message) {
	targets := make([]*types.Manager, 0)
	for _, m := range r.managers.All() {
		if m.ID == msg.From {
			continue
		}
		// Busy managers are reachable-but-degraded: still included.
		if m.Status == types.ManagerOnline || m.Status == types.ManagerBusy {
			targets = append(targets, m)
		}
	}

	r.logger.Info("broadcast started",
		zap.String("message_id", msg.ID),
		zap.String("from", msg.From),
		zap.Int("targets", len(targets)),
	)
	if r.fanoutObserver != nil {
		r.fanoutObserver(len(targets))
	}

	var wg sync.WaitGroup
	var delivered, failed int64
	var countMu sync.Mutex

	for _, target := range targets {
		wg.Add(1)
		go func(m *types.Manager) {
			defer wg.Done()
			outcome := r.deliverer.Deliver(ctx, m, msg)
			countMu.Lock()
			if outcome.Success {
				delivered++
			} else {
				failed++
			}
			countMu.Unlock()
		}(target)
	}
	wg.Wait()

	r.logger.Info("broadcast settled",
		zap.String("message_id", msg.ID),
		zap.Int64("delivered", delivered),
		zap.Int64("failed", failed),
	)
}

// direct resolves the recipient and delivers, propagating the outcome.
func (r *Router) direct(ctx context.Context, msg *types.Message) error {
	target, err := r.managers.Get(msg.To)
	if err != nil {
		if errors.Is(err, registry.ErrManagerNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownRecipient, msg.To)
		}
		return err
	}

	// No delivery attempt against known-dead endpoints.
	if target.Status == types.ManagerOffline {
		return fmt.Errorf("%w: %s", ErrRecipientUnavailable, msg.To)
	}

	mu := r.lockFor(msg.To)
	mu.Lock()
	defer mu.Unlock()

	outcome := r.deliverer.Deliver(ctx, target, msg)
	if !outcome.Success {
		return outcome.Err
	}
	return nil
}

func (r *Router) lockFor(recipient string) *sync.Mutex {
	r.recipientMuMu.Lock()
	defer r.recipientMuMu.Unlock()

	mu, ok := r.recipientMu[recipient]
	if !ok {
		mu = &sync.Mutex{}
		r.recipientMu[recipient] = mu
	}
	return mu
}
