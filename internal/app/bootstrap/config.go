package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID   string
	Environment string
	Version     string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	MaxDBConns     int32
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration

	JWTSigningSecret string
	AllowInsecureJWT bool

	ShutdownTimeout time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID          string `yaml:"id"`
		Environment string `yaml:"environment"`
		Version     string `yaml:"version"`
		HTTPPort    int    `yaml:"http_port"`
		GRPCPort    int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Health struct {
		ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds"`
	} `yaml:"health"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// Missing or malformed required values fail startup here, never as a runtime
// health failure.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:        "market-data-service",
		Environment:      "development",
		Version:          "0.1.0",
		HTTPPort:         8080,
		GRPCPort:         9090,
		MaxDBConns:       20,
		ConnectTimeout:   5 * time.Second,
		ProbeTimeout:     3 * time.Second,
		AllowInsecureJWT: true,
		ShutdownTimeout:  10 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.Environment != "" {
			cfg.Environment = f.Service.Environment
		}
		if f.Service.Version != "" {
			cfg.Version = f.Service.Version
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Health.ProbeTimeoutSeconds > 0 {
			cfg.ProbeTimeout = time.Duration(f.Health.ProbeTimeoutSeconds) * time.Second
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.Environment = envOrDefault("ENVIRONMENT", cfg.Environment)
	cfg.Version = envOrDefault("SERVICE_VERSION", cfg.Version)
	cfg.JWTSigningSecret = envOrDefault("JWT_SIGNING_SECRET", cfg.JWTSigningSecret)
	cfg.AllowInsecureJWT = envBool("JWT_ALLOW_INSECURE", cfg.AllowInsecureJWT)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.ConnectTimeout = time.Duration(envInt("DB_CONNECT_TIMEOUT_SECONDS", int(cfg.ConnectTimeout.Seconds()))) * time.Second
	cfg.ProbeTimeout = time.Duration(envInt("PROBE_TIMEOUT_SECONDS", int(cfg.ProbeTimeout.Seconds()))) * time.Second
	cfg.ShutdownTimeout = time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", int(cfg.ShutdownTimeout.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.JWTSigningSecret == "" && !cfg.AllowInsecureJWT {
		return Config{}, fmt.Errorf("missing JWT_SIGNING_SECRET")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
