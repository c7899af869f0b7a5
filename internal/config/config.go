package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Auth         AuthConfig         `yaml:"auth"`
	Identity     IdentityConfig     `yaml:"identity"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Instructions InstructionsConfig `yaml:"instructions"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Filter       FilterConfig       `yaml:"filter"`
	Policy       PolicyConfig       `yaml:"policy"`
	Routing      RoutingConfig      `yaml:"routing"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// AuthConfig selects the credential entry path and the ordered strategy list.
// Mode "bearer" reads the Authorization header; mode "headers" reads
// x-user-id / x-user-email and always uses the header_pair strategy.
type AuthConfig struct {
	Mode       string   `yaml:"mode"`
	Strategies []string `yaml:"strategies"`
}

type IdentityConfig struct {
	Provider string                `yaml:"provider"`
	Instant  InstantProviderConfig `yaml:"instant"`
	Timeout  time.Duration         `yaml:"timeout"`
}

type InstantProviderConfig struct {
	BaseURL    string `yaml:"base_url"`
	AppID      string `yaml:"app_id"`
	AdminToken string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns URL when set, otherwise a postgres URL built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Name)
}

// DatabaseFromEnv reads DATABASE_URL or the DB_* variables over the
// defaults. The command line tools use it instead of gateway.yaml.
func DatabaseFromEnv() DatabaseConfig {
	d := DefaultConfig().Database
	d.URL = os.Getenv("DATABASE_URL")
	if v := os.Getenv("DB_HOST"); v != "" {
		d.Host = v
	}
	if p, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		d.Port = p
	}
	if v := os.Getenv("DB_USER"); v != "" {
		d.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		d.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		d.Name = v
	}
	return d
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

// InstructionsConfig describes where the supplementary instructions come from.
type InstructionsConfig struct {
	Source   string `yaml:"source"` // file | redis
	Path     string `yaml:"path"`
	RedisKey string `yaml:"redis_key"`
	Fallback string `yaml:"fallback"`
	Watch    bool   `yaml:"watch"`
}

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	MetricsPort    int    `yaml:"metrics_port"`
	TracingEnabled bool   `yaml:"tracing_enabled"`
}

type FilterConfig struct {
	Injection InjectionFilterConfig `yaml:"injection"`
	Secrets   SecretsFilterConfig   `yaml:"secrets"`
}

type InjectionFilterConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BlockThreshold float64 `yaml:"block_threshold"`
	FlagThreshold  float64 `yaml:"flag_threshold"`
}

type SecretsFilterConfig struct {
	Enabled bool `yaml:"enabled"`
}

type PolicyConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BundlePath        string        `yaml:"bundle_path"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type RoutingConfig struct {
	DefaultTimeout time.Duration        `yaml:"default_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             3000,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Auth: AuthConfig{
			Mode:       "bearer",
			Strategies: []string{"bearer_email"},
		},
		Identity: IdentityConfig{
			Provider: "instant",
			Instant: InstantProviderConfig{
				BaseURL: "https://api.instantdb.com",
			},
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "appgen",
			User:            "appgen",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Instructions: InstructionsConfig{
			Source: "file",
			Path:   "configs/instructions.txt",
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Filter: FilterConfig{
			Injection: InjectionFilterConfig{
				BlockThreshold: 0.95,
				FlagThreshold:  0.7,
			},
			Secrets: SecretsFilterConfig{Enabled: true},
		},
		Policy: PolicyConfig{
			BundlePath:        "configs/policies",
			EvaluationTimeout: 100 * time.Millisecond,
		},
		Routing: RoutingConfig{
			DefaultTimeout: 120 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				RecoveryProbeInterval: 15 * time.Second,
			},
		},
	}
}
