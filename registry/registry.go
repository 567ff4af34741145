package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trinity-symphony/coordination/types"
)

// Config holds the liveness and trust policy for a registry. Zero values
// select the defaults; a literal zero reward, penalty or threshold is not
// expressible.
type Config struct {
	// BusyThreshold is the silence after which a manager is downgraded
	// to busy.
	BusyThreshold time.Duration `yaml:"busy_threshold"`

	// OfflineThreshold is the silence after which a manager is
	// downgraded to offline.
	OfflineThreshold time.Duration `yaml:"offline_threshold"`

	// TrustReward is added to the trust score on a successful delivery,
	// capped at 1.0.
	TrustReward float64 `yaml:"trust_reward"`

	// TrustPenalty is subtracted from the trust score on a failed
	// delivery, floored at 0.0.
	TrustPenalty float64 `yaml:"trust_penalty"`
}

// DefaultConfig returns a Config with the standard coordination policy.
func DefaultConfig() Config {
	return Config{
		BusyThreshold:    2 * time.Minute,
		OfflineThreshold: 5 * time.Minute,
		TrustReward:      0.1,
		TrustPenalty:     0.2,
	}
}

// Registry is the single owner of Manager records. Every other component
// reads manager state through it and requests mutation only through
// RecordOutcome and SweepLiveness.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]*types.Manager
	config   Config
	logger   *zap.Logger
}

// New creates an empty registry.
func New(config Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.BusyThreshold == 0 {
		config.BusyThreshold = DefaultConfig().BusyThreshold
	}
	if config.OfflineThreshold == 0 {
		config.OfflineThreshold = DefaultConfig().OfflineThreshold
	}
	if config.TrustReward == 0 {
		config.TrustReward = DefaultConfig().TrustReward
	}
	if config.TrustPenalty == 0 {
		config.TrustPenalty = DefaultConfig().TrustPenalty
	}

	return &Registry{
		managers: make(map[string]*types.Manager),
		config:   config,
		logger:   logger.With(zap.String("component", "registry")),
	}
}

// Register inserts or replaces the record for the manager's id. Empty
// status, zero LastSeen and a zero TrustScore are treated as unset and
// replaced with online, now and DefaultTrustScore; a manager cannot be
// registered at zero trust, it can only earn its way there through failed
// deliveries.
func (r *Registry) Register(m *types.Manager) error {
	if err := m.Validate(); err != nil {
		return err
	}

	record := m.Clone()
	if record.Status == "" {
		record.Status = types.ManagerOnline
	}
	if record.LastSeen.IsZero() {
		record.LastSeen = time.Now()
	}
	if record.TrustScore == 0 {
		record.TrustScore = types.DefaultTrustScore
	}
	record.TrustScore = clamp(record.TrustScore)

	r.mu.Lock()
	r.managers[record.ID] = record
	r.mu.Unlock()

	r.logger.Info("manager registered",
		zap.String("manager_id", record.ID),
		zap.String("endpoint", record.Endpoint),
		zap.Int("capabilities", len(record.Capabilities)),
	)
	return nil
}

// Get returns a copy of the manager record.
func (r *Registry) Get(id string) (*types.Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.managers[id]
	if !ok {
		return nil, ErrManagerNotFound
	}
	return m.Clone(), nil
}

// All returns a snapshot of every registered manager. The snapshot is safe
// against concurrent registry mutation.
func (r *Registry) All() []*types.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Manager, 0, len(r.managers))
	for _, m := range r.managers {
		out = append(out, m.Clone())
	}
	return out
}

// Evict removes a manager record. Absent managers simply stay offline
// forever, so eviction is an operator convenience, not a protocol step.
func (r *Registry) Evict(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.managers[id]; !ok {
		return ErrManagerNotFound
	}
	delete(r.managers, id)
	r.logger.Info("manager evicted", zap.String("manager_id", id))
	return nil
}

// RecordOutcome updates a manager's trust score and status from one delivery
// attempt. Success raises trust and is the only path that promotes a manager
// to online; failure lowers trust and flips the manager offline. The update
// is atomic with the observation.
func (r *Registry) RecordOutcome(id string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[id]
	if !ok {
		return ErrManagerNotFound
	}

	if success {
		m.TrustScore = clamp(m.TrustScore + r.config.TrustReward)
		m.Status = types.ManagerOnline
		m.LastSeen = time.Now()
	} else {
		m.TrustScore = clamp(m.TrustScore - r.config.TrustPenalty)
		m.Status = types.ManagerOffline
	}

	r.logger.Debug("delivery outcome recorded",
		zap.String("manager_id", id),
		zap.Bool("success", success),
		zap.Float64("trust_score", m.TrustScore),
		zap.String("status", string(m.Status)),
	)
	return nil
}

// StatusChange records one reclassification made by a liveness sweep.
type StatusChange struct {
	ManagerID string
	From      types.ManagerStatus
	To        types.ManagerStatus
}

// SweepLiveness reclassifies every manager from elapsed silence: past the
// offline threshold a manager goes offline, past the busy threshold it goes
// busy. The sweep never promotes a manager to online; only a successful
// delivery does that. It returns the changes it made.
func (r *Registry) SweepLiveness(now time.Time) []StatusChange {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changes []StatusChange
	for _, m := range r.managers {
		silence := now.Sub(m.LastSeen)
		prev := m.Status
		switch {
		case silence > r.config.OfflineThreshold:
			if prev != types.ManagerOffline {
				r.logger.Warn("manager went silent",
					zap.String("manager_id", m.ID),
					zap.Duration("silence", silence),
				)
			}
			m.Status = types.ManagerOffline
		case silence > r.config.BusyThreshold:
			m.Status = types.ManagerBusy
		}
		if m.Status != prev {
			changes = append(changes, StatusChange{ManagerID: m.ID, From: prev, To: m.Status})
		}
	}
	return changes
}

// Stats summarizes registry state for health reporting. It is always
// computable without error.
type Stats struct {
	Managers     int     `json:"managers"`
	Online       int     `json:"online"`
	AverageTrust float64 `json:"average_trust"`
}

// Stats returns the current registry summary.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Managers: len(r.managers)}
	if len(r.managers) == 0 {
		return s
	}

	var total float64
	for _, m := range r.managers {
		total += m.TrustScore
		if m.Status == types.ManagerOnline {
			s.Online++
		}
	}
	s.AverageTrust = total / float64(len(r.managers))
	return s
}

func clamp(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < 0.0 {
		return 0.0
	}
	return score
}
