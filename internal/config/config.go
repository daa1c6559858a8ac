package config

import (
	"fmt"
	"time"
)

// Config holds the gateway's process configuration. The graph policy document
// is deliberately not part of this: it lives in its own hot-reloadable file
// (see internal/infrastructure/policy).
type Config struct {
	Server    ServerConfig  `mapstructure:"server"`
	Policy    PolicyConfig  `mapstructure:"policy"`
	Redis     RedisConfig   `mapstructure:"redis"`
	JWT       JWTConfig     `mapstructure:"jwt"`
	Audit     AuditConfig   `mapstructure:"audit"`
	Log       LogConfig     `mapstructure:"log"`
	Tracing   TracingConfig `mapstructure:"tracing"`
	Env       string        `mapstructure:"env"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

type PolicyConfig struct {
	// Path is the location of the YAML policy document.
	Path string `mapstructure:"path"`
	// Watch enables the file watcher that hot-swaps the document on change.
	// Forced off in production.
	Watch bool `mapstructure:"watch"`
}

type RedisConfig struct {
	// Addresses of the shared counter store. Empty disables the distributed
	// backend entirely; the limiter then runs on the in-process store only.
	Addresses    []string `mapstructure:"addresses"`
	Password     string   `mapstructure:"password"`
	DB           int      `mapstructure:"db"`
	PoolSize     int      `mapstructure:"pool_size"`
	CheckTimeout int      `mapstructure:"check_timeout_ms"`
}

// Supported JWT verification algorithms.
const (
	JWTAlgorithmHS256 = "HS256"
	JWTAlgorithmRS256 = "RS256"
)

type JWTConfig struct {
	// Algorithm selects the verification scheme: HS256 or RS256.
	Algorithm string `mapstructure:"algorithm"`
	// Secret is the shared secret for HS256.
	Secret string `mapstructure:"secret"`
	// PublicKeyPEM is the PEM-encoded public key for RS256.
	PublicKeyPEM string `mapstructure:"public_key_pem"`
	Issuer       string `mapstructure:"issuer"`
	Audience     string `mapstructure:"audience"`
}

type AuditConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// IsProduction reports whether the gateway runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RedisCheckTimeout returns the distributed counter round-trip bound.
func (c *RedisConfig) RedisCheckTimeout() time.Duration {
	if c.CheckTimeout <= 0 {
		return 0
	}
	return time.Duration(c.CheckTimeout) * time.Millisecond
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Policy.Path == "" {
		return fmt.Errorf("policy.path is required")
	}
	switch c.JWT.Algorithm {
	case JWTAlgorithmHS256:
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required for HS256")
		}
	case JWTAlgorithmRS256:
		if c.JWT.PublicKeyPEM == "" {
			return fmt.Errorf("jwt.public_key_pem is required for RS256")
		}
	default:
		return fmt.Errorf("unsupported jwt.algorithm: %q", c.JWT.Algorithm)
	}
	if c.Audit.Enabled && len(c.Audit.Brokers) == 0 {
		return fmt.Errorf("audit.brokers is required when audit is enabled")
	}
	return nil
}
