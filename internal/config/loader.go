package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces environment overrides, e.g. CHECKOUT_POSTGRES_HOST.
const EnvPrefix = "CHECKOUT"

// defaults are kept as a flat key map so every key is known to viper and can be
// overridden from the environment. Durations stay strings so they print readably.
func defaults() map[string]any {
	return map[string]any{
		"server.port":             8080,
		"server.request_timeout":  "10s",
		"server.shutdown_timeout": "10s",
		"server.rate_limit":       20.0,
		"server.rate_burst":       40,

		"log.level":  "info",
		"log.format": "json",

		// Hyderabad store
		"delivery.origin_latitude":         17.385044,
		"delivery.origin_longitude":        78.486671,
		"delivery.radius_km":               500.0,
		"delivery.base_fee":                50.0,
		"delivery.free_delivery_threshold": 500.0,

		"pricing.precedence": "best_for_customer",

		"location.timeout": "10s",

		"verification.window_seconds": 60,
		"verification.recovery_tick":  "1s",

		"storage.backend":              BackendMemory,
		"storage.flush_interval":       "5s",
		"storage.session_idle_timeout": "30m",

		"postgres.host":           "localhost",
		"postgres.port":           5432,
		"postgres.user":           "postgres",
		"postgres.password":       "postgres",
		"postgres.dbname":         "checkout",
		"postgres.migrations_dir": "internal/repository/migrations",

		"mongo.uri":                      "",
		"mongo.database":                 "checkout",
		"mongo.connect_timeout":          "10s",
		"mongo.server_selection_timeout": "5s",
		"mongo.max_pool_size":            100,
		"mongo.min_pool_size":            10,

		"redis.addr":     "",
		"redis.password": "",
		"redis.db":       0,
		"redis.ttl":      "15m",

		"kafka.brokers": []string{},

		"coupons.base_url":          "",
		"coupons.call_timeout":      "3s",
		"coupons.failure_threshold": 5,
		"coupons.open_timeout":      "30s",
		"coupons.first_order_code":  "WELCOME10",
		"coupons.static": []map[string]any{
			{"code": "WELCOME10", "kind": "PERCENTAGE", "value": 10, "maximum_discount": 100, "first_order_only": true},
			{"code": "SAVE50", "kind": "FIXED", "value": 50, "minimum_amount": 300},
			{"code": "FREESHIP", "kind": "FREE_DELIVERY", "value": 0, "minimum_amount": 200},
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	return v
}

// DefaultConfig returns the built-in configuration without reading files or the environment.
func DefaultConfig() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: built-in defaults do not decode: %v", err))
	}
	return cfg
}

// Load merges defaults, the optional YAML file at path and CHECKOUT_* environment
// variables, in increasing precedence, and validates the result.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// a comma separated env value arrives as one element
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	cfg.settings = v.AllSettings()
	return &cfg, nil
}

// YAML renders the effective settings with secrets masked.
func (c *Config) YAML() ([]byte, error) {
	settings := c.settings
	if settings == nil {
		settings = newViper().AllSettings()
	}
	masked := make(map[string]any, len(settings))
	for k, v := range settings {
		masked[k] = v
	}
	for _, section := range []string{"postgres", "redis"} {
		if m, ok := masked[section].(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for k, v := range m {
				cp[k] = v
			}
			if s, _ := cp["password"].(string); s != "" {
				cp["password"] = "******"
			}
			masked[section] = cp
		}
	}
	return yaml.Marshal(masked)
}
