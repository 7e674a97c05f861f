// Package config loads Kite configuration from YAML files and the
// environment. Environment variables win over file values; file values win
// over the tier defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/opensource-marketing/kite/internal/domain"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvConfigPath  = "KITE_CONFIG"
	EnvTier        = "KITE_TIER"
	EnvPort        = "KITE_PORT"
	EnvSQLitePath  = "KITE_SQLITE_PATH"
	EnvPostgresDSN = "KITE_POSTGRES_HOST"
	EnvRedisAddr   = "KITE_REDIS_ADDR"
	EnvNATSURL     = "KITE_NATS_URL"
	EnvLogLevel    = "KITE_LOG_LEVEL"
)

// Load resolves the configuration. Path may be empty, in which case only
// KITE_CONFIG and the environment are consulted.
func Load(path string) (*domain.Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	cfg := baseForTier(os.Getenv(EnvTier))

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// baseForTier picks the tier defaults. The file may still override the tier;
// mergeFile re-bases in that case.
func baseForTier(tier string) *domain.Config {
	if domain.Tier(tier) == domain.TierPro {
		return domain.ProConfig()
	}
	return domain.DefaultConfig()
}

func mergeFile(cfg *domain.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Peek at the tier first so file-selected Pro gets Pro defaults
	// underneath its overrides.
	var probe struct {
		Tier domain.Tier `yaml:"tier"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	if probe.Tier == domain.TierPro && cfg.Tier != domain.TierPro {
		*cfg = *domain.ProConfig()
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *domain.Config) {
	if v := os.Getenv(EnvTier); v != "" {
		cfg.Tier = domain.Tier(v)
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate rejects configurations the components would fail on later.
func Validate(cfg *domain.Config) error {
	switch cfg.Tier {
	case domain.TierCommunity, domain.TierPro, domain.TierEnterprise:
	default:
		return fmt.Errorf("unknown tier: %s", cfg.Tier)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown repository driver: %s", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache type: %s", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("unknown event bus type: %s", cfg.EventBus.Type)
	}

	if cfg.Engine.KQuantile < 0 || cfg.Engine.KQuantile > 1 {
		return fmt.Errorf("k_quantile must be in [0,1], got %v", cfg.Engine.KQuantile)
	}
	if cfg.Engine.BootstrapResamples < 0 {
		return fmt.Errorf("bootstrap_resamples must be non-negative, got %d", cfg.Engine.BootstrapResamples)
	}

	return nil
}
