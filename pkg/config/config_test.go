package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/pkg/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"UBA_AUTH_DOMAIN",
		"UBA_SOURCE_SYSTEM",
		"UBA_DRIFT_OBSERVATION_WINDOW_DAYS",
		"RANSOMEYE_TEMPLATE_REGISTRY_PATH",
		"RANSOMEYE_POLICY_ENGINE_KEY_DIR",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnvironmentAppliesDocumentedDefaults(t *testing.T) {
	clearEnv(t)
	env, err := config.FromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultAuthDomain, env.AuthDomain)
	assert.Equal(t, config.DefaultSourceSystem, env.SourceSystem)
	assert.Equal(t, 7*24*time.Hour, env.DriftObservationWindow)
	assert.Empty(t, env.TemplateRegistryPath)
	assert.Empty(t, env.PolicyEngineKeyDir)
}

func TestFromEnvironmentHonorsExplicitOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("UBA_AUTH_DOMAIN", "prod")
	t.Setenv("UBA_SOURCE_SYSTEM", "windows-agent")
	t.Setenv("UBA_DRIFT_OBSERVATION_WINDOW_DAYS", "14")

	env, err := config.FromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "prod", env.AuthDomain)
	assert.Equal(t, "windows-agent", env.SourceSystem)
	assert.Equal(t, 14*24*time.Hour, env.DriftObservationWindow)
}

func TestFromEnvironmentRejectsNonIntegerWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv("UBA_DRIFT_OBSERVATION_WINDOW_DAYS", "not-a-number")
	_, err := config.FromEnvironment()
	assert.Error(t, err)
}

func TestLoadParsesSubsystemYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subsystem.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ledger_path: /var/lib/ransomeye/ledger.jsonl
dedup_backend: redis
redis_addr: localhost:6379
dispatch_rate_limit: 5
dispatch_burst: 2
telemetry_endpoint: localhost:4317
extra_knob: on
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ransomeye/ledger.jsonl", cfg.LedgerPath)
	assert.Equal(t, "redis", cfg.DedupBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 5.0, cfg.DispatchRateLimit)
	assert.Equal(t, 2, cfg.DispatchBurst)
	assert.Equal(t, "on", cfg.Extra["extra_knob"])
}

func TestLoadRejectsMissingLedgerPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subsystem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dedup_backend: inmem\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidDedupBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subsystem.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger_path: /tmp/l.jsonl\ndedup_backend: memcached\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
