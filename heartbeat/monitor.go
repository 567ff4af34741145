// Package heartbeat drives periodic liveness sweeps over the manager
// registry.
package heartbeat

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/trinity-symphony/coordination/internal/clock"
	"github.com/trinity-symphony/coordination/registry"
)

// Sweeper applies the liveness rules at a point in time. Implemented by
// registry.Registry.
type Sweeper interface {
	SweepLiveness(now time.Time) []registry.StatusChange
}

// Config holds the monitor settings.
type Config struct {
	// Interval is the time between sweeps.
	Interval time.Duration `yaml:"interval"`
}

// DefaultConfig returns the standard heartbeat settings.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Monitor ticks on the injected clock and sweeps the registry. Start and
// Stop are both once-only; a sweep already in flight suppresses the next
// tick instead of stacking.
type Monitor struct {
	sweeper Sweeper
	clock   clock.Clock
	config  Config
	logger  *zap.Logger

	sweeping atomic.Bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Monitor.
func New(sweeper Sweeper, clk clock.Clock, config Config, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Monitor{
		sweeper: sweeper,
		clock:   clk,
		config:  config,
		logger:  logger.With(zap.String("component", "heartbeat")),
		done:    make(chan struct{}),
	}
}

// Start launches the sweep loop. Subsequent calls are no-ops.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		// Create the ticker before spawning the loop so a caller that
		// advances an injected mock clock right after Start observes the
		// first interval.
		ticker := m.clock.NewTicker(m.config.Interval)
		m.wg.Add(1)
		go m.run(ticker)
		m.logger.Info("heartbeat monitor started",
			zap.Duration("interval", m.config.Interval))
	})
}

// Stop terminates the loop and waits for it to exit. Subsequent calls are
// no-ops.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.logger.Info("heartbeat monitor stopped")
	})
}

func (m *Monitor) run(ticker clock.Ticker) {
	defer m.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C():
			m.sweep(now)
		}
	}
}

// Sweep runs one liveness pass immediately, outside the ticker schedule.
func (m *Monitor) Sweep() {
	m.sweep(m.clock.Now())
}

func (m *Monitor) sweep(now time.Time) {
	if !m.sweeping.CompareAndSwap(false, true) {
		return
	}
	defer m.sweeping.Store(false)

	changes := m.sweeper.SweepLiveness(now)
	for _, change := range changes {
		m.logger.Info("manager status changed",
			zap.String("manager_id", change.ManagerID),
			zap.String("from", string(change.From)),
			zap.String("to", string(change.To)),
		)
	}
}
