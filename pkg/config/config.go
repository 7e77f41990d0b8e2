// Package config loads RansomEye's ambient configuration: environment
// variables for the small set of process-wide knobs, and a YAML file (via
// gopkg.in/yaml.v3) for each subsystem's structured settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ransomeye/core/pkg/rerrors"
)

// Environment holds the process-wide settings read directly from the
// environment, per SPEC_FULL.md §2.
type Environment struct {
	AuthDomain             string
	SourceSystem           string
	DriftObservationWindow time.Duration
	TemplateRegistryPath   string
	PolicyEngineKeyDir     string
}

const (
	envAuthDomain           = "UBA_AUTH_DOMAIN"
	envSourceSystem         = "UBA_SOURCE_SYSTEM"
	envDriftWindowDays      = "UBA_DRIFT_OBSERVATION_WINDOW_DAYS"
	envTemplateRegistryPath = "RANSOMEYE_TEMPLATE_REGISTRY_PATH"
	envPolicyEngineKeyDir   = "RANSOMEYE_POLICY_ENGINE_KEY_DIR"
)

// Defaults per spec.md §6's environment variable table.
const (
	DefaultAuthDomain   = "local"
	DefaultSourceSystem = "linux-agent"
	DefaultWindowDays   = 7
)

// FromEnvironment reads the process environment, applying the documented
// defaults for anything unset. Only the two RANSOMEYE_* paths are
// deployment-specific and left blank when unset; callers that need them
// (the policy engine, the template registry) check for blank themselves.
func FromEnvironment() (Environment, error) {
	windowDays := DefaultWindowDays
	if raw := os.Getenv(envDriftWindowDays); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Environment{}, rerrors.New(rerrors.InputRejected, "config.FromEnvironment", envDriftWindowDays, err)
		}
		windowDays = parsed
	}

	authDomain := os.Getenv(envAuthDomain)
	if authDomain == "" {
		authDomain = DefaultAuthDomain
	}
	sourceSystem := os.Getenv(envSourceSystem)
	if sourceSystem == "" {
		sourceSystem = DefaultSourceSystem
	}

	return Environment{
		AuthDomain:             authDomain,
		SourceSystem:           sourceSystem,
		DriftObservationWindow: time.Duration(windowDays) * 24 * time.Hour,
		TemplateRegistryPath:   os.Getenv(envTemplateRegistryPath),
		PolicyEngineKeyDir:     os.Getenv(envPolicyEngineKeyDir),
	}, nil
}

// SubsystemConfig is the structured, per-subsystem configuration file
// format (ledger paths, dedup backend selection, dispatch rate limits,
// telemetry endpoint). Unknown top-level keys are preserved under Extra so
// a config file shared across subsystems doesn't need per-reader pruning.
type SubsystemConfig struct {
	LedgerPath        string            `yaml:"ledger_path"`
	DedupBackend      string            `yaml:"dedup_backend"` // "inmem" | "redis"
	RedisAddr         string            `yaml:"redis_addr,omitempty"`
	DispatchRateLimit float64           `yaml:"dispatch_rate_limit"`
	DispatchBurst     int               `yaml:"dispatch_burst"`
	TelemetryEndpoint string            `yaml:"telemetry_endpoint,omitempty"`
	Extra             map[string]string `yaml:",inline"`
}

// Load reads and parses a subsystem YAML config file from path.
func Load(path string) (SubsystemConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SubsystemConfig{}, rerrors.New(rerrors.IOFailure, "config.Load", path, err)
	}
	var cfg SubsystemConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return SubsystemConfig{}, rerrors.New(rerrors.InputRejected, "config.Load", path, err)
	}
	if cfg.LedgerPath == "" {
		return SubsystemConfig{}, rerrors.New(rerrors.InputRejected, "config.Load", fmt.Sprintf("%s: missing ledger_path", path), nil)
	}
	if cfg.DedupBackend != "inmem" && cfg.DedupBackend != "redis" {
		return SubsystemConfig{}, rerrors.New(rerrors.InputRejected, "config.Load", fmt.Sprintf("%s: dedup_backend must be inmem or redis", path), nil)
	}
	return cfg, nil
}
