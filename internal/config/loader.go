package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads the gateway configuration from file and environment
// variables. Environment variables use the MCS_GATEWAY prefix with dots
// replaced by underscores, e.g. MCS_GATEWAY_SERVER_PORT.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("policy.path", "configs/policy.yaml")
	v.SetDefault("policy.watch", true)
	v.SetDefault("redis.check_timeout_ms", 250)
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("audit.topic", "mcs.gateway.audit")
	v.SetDefault("log.level", "info")
	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("env", "development")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/mcs-gateway/")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("MCS_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Production never hot-reloads policy.
	if cfg.IsProduction() {
		cfg.Policy.Watch = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
