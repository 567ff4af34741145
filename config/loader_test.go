package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coordd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "conductor", cfg.Manager.ID)
	assert.Equal(t, ":8745", cfg.Server.ListenAddr)
	assert.Equal(t, 3*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 2, cfg.Transport.RetryCount)
	assert.Equal(t, 2*time.Minute, cfg.Registry.BusyThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Registry.OfflineThreshold)
	assert.Equal(t, 0.66, cfg.Consensus.ApprovalThreshold)
	assert.Equal(t, 0.5, cfg.Consensus.ParticipationThreshold)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, "memory", cfg.History.Backend)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `
manager:
  id: analyst
  name: Analyst
  capabilities: [verification, research]
transport:
  shared_secret: s3cret
  timeout: 5s
  retry_count: 1
consensus:
  window: 2m
  early_resolve: true
history:
  backend: redis
  redis_addr: redis.local:6379
bootstrap:
  - id: conductor
    name: Conductor
    endpoint: http://conductor.local:8745
  - id: scout
    endpoint: internal
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "analyst", cfg.Manager.ID)
	assert.Equal(t, []string{"verification", "research"}, cfg.Manager.Capabilities)
	assert.Equal(t, "s3cret", cfg.Transport.SharedSecret)
	assert.Equal(t, 5*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 1, cfg.Transport.RetryCount)
	assert.Equal(t, 2*time.Minute, cfg.Consensus.Window)
	assert.True(t, cfg.Consensus.EarlyResolve)
	assert.Equal(t, "redis", cfg.History.Backend)
	assert.Equal(t, "redis.local:6379", cfg.History.RedisAddr)

	managers := cfg.BootstrapManagers()
	require.Len(t, managers, 2)
	assert.Equal(t, "conductor", managers[0].ID)
	assert.Equal(t, "http://conductor.local:8745", managers[0].Endpoint)
	assert.True(t, managers[1].IsInternal())

	// File values only override what they name.
	assert.Equal(t, 0.66, cfg.Consensus.ApprovalThreshold)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, ":8745", cfg.Server.ListenAddr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRINITY_MANAGER_ID", "scout")
	t.Setenv("TRINITY_TRANSPORT_TIMEOUT", "7s")
	t.Setenv("TRINITY_TRANSPORT_RETRY_COUNT", "4")
	t.Setenv("TRINITY_CONSENSUS_APPROVAL_THRESHOLD", "0.75")
	t.Setenv("TRINITY_CONSENSUS_EARLY_RESOLVE", "true")
	t.Setenv("TRINITY_MANAGER_CAPABILITIES", "search, verify")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "scout", cfg.Manager.ID)
	assert.Equal(t, 7*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 4, cfg.Transport.RetryCount)
	assert.Equal(t, 0.75, cfg.Consensus.ApprovalThreshold)
	assert.True(t, cfg.Consensus.EarlyResolve)
	assert.Equal(t, []string{"search", "verify"}, cfg.Manager.Capabilities)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "manager:\n  id: from-file\n")
	t.Setenv("TRINITY_MANAGER_ID", "from-env")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Manager.ID)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.SharedSecret = "s3cret"
	assert.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Manager.ID = ""
	bad.Transport.SharedSecret = ""
	bad.Registry.BusyThreshold = 10 * time.Minute
	bad.History.Backend = "postgres"
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manager id required")
	assert.Contains(t, err.Error(), "shared_secret required")
	assert.Contains(t, err.Error(), "busy_threshold")
	assert.Contains(t, err.Error(), "history backend")
}

func TestLoaderValidatorRuns(t *testing.T) {
	sentinel := errors.New("rejected")
	_, err := NewLoader().WithValidator(func(*Config) error { return sentinel }).Load()
	assert.ErrorIs(t, err, sentinel)
}

func TestComponentConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transport.SharedSecret = "s3cret"

	tc := cfg.TransportConfig()
	assert.Equal(t, "s3cret", tc.SharedSecret)
	assert.Equal(t, 3*time.Second, tc.Timeout)

	rc := cfg.RegistryConfig()
	assert.Equal(t, 0.1, rc.TrustReward)
	assert.Equal(t, 0.2, rc.TrustPenalty)

	cc := cfg.ConsensusConfig()
	assert.Equal(t, 5*time.Minute, cc.Window)

	hc := cfg.HeartbeatConfig()
	assert.Equal(t, 30*time.Second, hc.Interval)
}
