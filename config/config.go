// Package config loads the daemon configuration from a YAML file with
// environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("coordd.yaml").
//	    WithEnvPrefix("TRINITY").
//	    Load()
//
// Precedence: defaults, then YAML file, then environment.
package config

import (
	"time"

	"github.com/trinity-symphony/coordination/consensus"
	"github.com/trinity-symphony/coordination/heartbeat"
	"github.com/trinity-symphony/coordination/registry"
	"github.com/trinity-symphony/coordination/transport"
	"github.com/trinity-symphony/coordination/types"
)

// Config is the full daemon configuration.
type Config struct {
	// Manager identifies this node in the coordination mesh.
	Manager ManagerConfig `yaml:"manager" env:"MANAGER"`

	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Transport TransportConfig `yaml:"transport" env:"TRANSPORT"`
	Registry  RegistryConfig  `yaml:"registry" env:"REGISTRY"`
	Consensus ConsensusConfig `yaml:"consensus" env:"CONSENSUS"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat" env:"HEARTBEAT"`
	History   HistoryConfig   `yaml:"history" env:"HISTORY"`
	Log       LogConfig       `yaml:"log" env:"LOG"`

	// Bootstrap lists managers registered at startup, before any peer
	// announces itself.
	Bootstrap []BootstrapManager `yaml:"bootstrap" env:"-"`
}

// ManagerConfig is this node's identity.
type ManagerConfig struct {
	ID           string   `yaml:"id" env:"ID"`
	Name         string   `yaml:"name" env:"NAME"`
	Capabilities []string `yaml:"capabilities" env:"CAPABILITIES"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" env:"LISTEN_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	ReplayWindow    time.Duration `yaml:"replay_window" env:"REPLAY_WINDOW"`
}

// TransportConfig holds the outbound delivery settings.
type TransportConfig struct {
	SharedSecret string        `yaml:"shared_secret" env:"SHARED_SECRET"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RetryCount   int           `yaml:"retry_count" env:"RETRY_COUNT"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
	RateLimit    float64       `yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst    int           `yaml:"rate_burst" env:"RATE_BURST"`
}

// RegistryConfig holds liveness thresholds and trust adjustments.
type RegistryConfig struct {
	BusyThreshold    time.Duration `yaml:"busy_threshold" env:"BUSY_THRESHOLD"`
	OfflineThreshold time.Duration `yaml:"offline_threshold" env:"OFFLINE_THRESHOLD"`
	TrustReward      float64       `yaml:"trust_reward" env:"TRUST_REWARD"`
	TrustPenalty     float64       `yaml:"trust_penalty" env:"TRUST_PENALTY"`
}

// ConsensusConfig holds the voting policy.
type ConsensusConfig struct {
	Window                 time.Duration `yaml:"window" env:"WINDOW"`
	ApprovalThreshold      float64       `yaml:"approval_threshold" env:"APPROVAL_THRESHOLD"`
	ParticipationThreshold float64       `yaml:"participation_threshold" env:"PARTICIPATION_THRESHOLD"`
	EarlyResolve           bool          `yaml:"early_resolve" env:"EARLY_RESOLVE"`
}

// HeartbeatConfig holds the liveness sweep schedule.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

// HistoryConfig selects the message history backend.
type HistoryConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend" env:"BACKEND"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB"`
}

// LogConfig holds the zap logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
}

// BootstrapManager is one statically configured peer.
type BootstrapManager struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Endpoint     string   `yaml:"endpoint"`
	Capabilities []string `yaml:"capabilities"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Manager: ManagerConfig{
			ID:   "conductor",
			Name: "Conductor",
		},
		Server: ServerConfig{
			ListenAddr:      ":8745",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ReplayWindow:    5 * time.Minute,
		},
		Transport: TransportConfig{
			Timeout:      3 * time.Second,
			RetryCount:   2,
			RetryBackoff: 500 * time.Millisecond,
		},
		Registry: RegistryConfig{
			BusyThreshold:    2 * time.Minute,
			OfflineThreshold: 5 * time.Minute,
			TrustReward:      0.1,
			TrustPenalty:     0.2,
		},
		Consensus: ConsensusConfig{
			Window:                 5 * time.Minute,
			ApprovalThreshold:      0.66,
			ParticipationThreshold: 0.5,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 30 * time.Second,
		},
		History: HistoryConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// TransportConfig converts to the transport package's config.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		SharedSecret: c.Transport.SharedSecret,
		Timeout:      c.Transport.Timeout,
		RetryCount:   c.Transport.RetryCount,
		RetryBackoff: c.Transport.RetryBackoff,
		RateLimit:    c.Transport.RateLimit,
		RateBurst:    c.Transport.RateBurst,
	}
}

// RegistryConfig converts to the registry package's config.
func (c *Config) RegistryConfig() registry.Config {
	return registry.Config{
		BusyThreshold:    c.Registry.BusyThreshold,
		OfflineThreshold: c.Registry.OfflineThreshold,
		TrustReward:      c.Registry.TrustReward,
		TrustPenalty:     c.Registry.TrustPenalty,
	}
}

// ConsensusConfig converts to the consensus package's config.
func (c *Config) ConsensusConfig() consensus.Config {
	return consensus.Config{
		Window:                 c.Consensus.Window,
		ApprovalThreshold:      c.Consensus.ApprovalThreshold,
		ParticipationThreshold: c.Consensus.ParticipationThreshold,
		EarlyResolve:           c.Consensus.EarlyResolve,
	}
}

// HeartbeatConfig converts to the heartbeat package's config.
func (c *Config) HeartbeatConfig() heartbeat.Config {
	return heartbeat.Config{Interval: c.Heartbeat.Interval}
}

// BootstrapManagers converts the bootstrap list into registry entries.
func (c *Config) BootstrapManagers() []*types.Manager {
	managers := make([]*types.Manager, 0, len(c.Bootstrap))
	for _, b := range c.Bootstrap {
		managers = append(managers, &types.Manager{
			ID:           b.ID,
			Name:         b.Name,
			Endpoint:     b.Endpoint,
			Capabilities: b.Capabilities,
		})
	}
	return managers
}
