package types

import "time"

// ManagerStatus represents the liveness classification of a manager.
type ManagerStatus string

const (
	ManagerOnline  ManagerStatus = "online"
	ManagerBusy    ManagerStatus = "busy"
	ManagerOffline ManagerStatus = "offline"
)

// EndpointInternal is the sentinel endpoint value marking a manager as an
// in-process target. An empty endpoint is treated the same way.
const EndpointInternal = "internal"

// DefaultTrustScore is assigned to newly registered managers that do not
// carry an explicit trust score.
const DefaultTrustScore = 0.5

// Manager is one coordination participant: an autonomous agent with an
// identity, a delivery endpoint and a bounded trust score.
type Manager struct {
	// ID uniquely identifies the manager across the registry.
	ID string `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Endpoint is the base URL for signed HTTP delivery, or
	// EndpointInternal for in-process dispatch.
	Endpoint string `json:"endpoint"`

	// Capabilities is an advisory set of capability names.
	Capabilities []string `json:"capabilities,omitempty"`

	// Status is derived from delivery outcomes and liveness sweeps.
	// It is never set directly by callers.
	Status ManagerStatus `json:"status"`

	// LastSeen is the time of the last successful contact.
	LastSeen time.Time `json:"last_seen"`

	// TrustScore is a reputation signal clamped to [0,1], adjusted by
	// delivery success and failure.
	TrustScore float64 `json:"trust_score"`
}

// IsInternal reports whether the manager is dispatched in-process rather
// than over the network.
func (m *Manager) IsInternal() bool {
	return m.Endpoint == "" || m.Endpoint == EndpointInternal
}

// Clone returns a deep copy of the manager.
func (m *Manager) Clone() *Manager {
	if m == nil {
		return nil
	}
	cp := *m
	if len(m.Capabilities) > 0 {
		cp.Capabilities = make([]string, len(m.Capabilities))
		copy(cp.Capabilities, m.Capabilities)
	}
	return &cp
}

// Validate checks that the manager record is well formed.
func (m *Manager) Validate() error {
	if m == nil {
		return ErrNilManager
	}
	if m.ID == "" {
		return ErrManagerMissingID
	}
	return nil
}
