package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Isolation IsolationConfig `koanf:"isolation"`
	Security  SecurityConfig  `koanf:"security"`
	Audit     AuditConfig     `koanf:"audit"`
	Auth      AuthConfig      `koanf:"auth"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// IsolationConfig controls the context manager and hierarchy registration.
// Resources maps resource type names to the sharing level they live at.
type IsolationConfig struct {
	HistoryLimit int               `koanf:"history_limit"`
	Resources    map[string]string `koanf:"resources"`
}

// SecurityConfig controls the security monitor and alerting
type SecurityConfig struct {
	MaxAccessAttempts int64         `koanf:"max_access_attempts"`
	TimeWindow        time.Duration `koanf:"time_window"`
	AllowedHourStart  int           `koanf:"allowed_hour_start"`
	AllowedHourEnd    int           `koanf:"allowed_hour_end"`
	EventHistorySize  int           `koanf:"event_history_size"`
	FlaggedKeyLimit   int           `koanf:"flagged_key_limit"`
	CounterKeyLimit   int           `koanf:"counter_key_limit"`
	AlertsPerSecond   float64       `koanf:"alerts_per_second"`
	AlertBurst        int           `koanf:"alert_burst"`
}

// AuditConfig controls the audit log
type AuditConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Level         string        `koanf:"level"`
	RetentionDays int           `koanf:"retention_days"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	MemoryLimit   int           `koanf:"memory_limit"`
	QueueSize     int           `koanf:"queue_size"`
}

// AuthConfig controls JWT verification for deriving isolation contexts
type AuthConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenExpiry time.Duration `koanf:"token_expiry"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRate   float64 `koanf:"sample_rate"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Isolation: IsolationConfig{
			HistoryLimit: 100,
		},
		Security: SecurityConfig{
			MaxAccessAttempts: 100,
			TimeWindow:        time.Minute,
			AllowedHourStart:  0,
			AllowedHourEnd:    0,
			EventHistorySize:  10000,
			FlaggedKeyLimit:   4096,
			CounterKeyLimit:   4096,
			AlertsPerSecond:   1,
			AlertBurst:        5,
		},
		Audit: AuditConfig{
			Enabled:       true,
			Level:         "all",
			RetentionDays: 365,
			WriteTimeout:  2 * time.Second,
			MemoryLimit:   10000,
			QueueSize:     1000,
		},
		Auth: AuthConfig{
			TokenExpiry: 24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			SampleRate: 0.1,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	_ = k.Load(file.Provider("configs/config.yaml"), yaml.Parser())

	if err := k.Load(env.Provider("TIC_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "TIC_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
