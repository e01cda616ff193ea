package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "voltflow/libs/config"
)

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"HTTP_PORT"`
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	Addr       string `yaml:"addr" env:"REDIS_ADDR"`
	Password   string `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int    `yaml:"db" env:"REDIS_DB"`
	TTLSeconds int    `yaml:"ttlSeconds" env:"REDIS_TTL"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"AUTH_SECRET"`
	TokenTTL time.Duration `yaml:"tokenTtl" env:"AUTH_TOKEN_TTL"`
}

// RecognitionConfig points at the language-model endpoint used for
// vehicle recognition.
type RecognitionConfig struct {
	BaseURL string        `yaml:"baseUrl" env:"RECOGNITION_BASE_URL"`
	APIKey  string        `yaml:"apiKey" env:"RECOGNITION_API_KEY"`
	Model   string        `yaml:"model" env:"RECOGNITION_MODEL"`
	Timeout time.Duration `yaml:"timeout" env:"RECOGNITION_TIMEOUT"`
}

// ChargingConfig overrides the derivation defaults.
type ChargingConfig struct {
	Efficiency         float64 `yaml:"efficiency" env:"CHARGING_EFFICIENCY"`
	AssumedCapacityKWh float64 `yaml:"assumedCapacityKwh" env:"CHARGING_ASSUMED_CAPACITY_KWH"`
	DefaultPricePerKWh float64 `yaml:"defaultPricePerKwh" env:"CHARGING_DEFAULT_PRICE_PER_KWH"`
}

// StreamConfig tunes the websocket progress stream.
type StreamConfig struct {
	Interval time.Duration `yaml:"interval" env:"STREAM_INTERVAL"`
}

// Config defines the voltflow service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Charging    ChargingConfig    `yaml:"charging"`
	Stream      StreamConfig      `yaml:"stream"`
}

// Load reads configuration via the shared helper and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:  HTTPConfig{Port: "8080"},
		Redis: RedisConfig{Addr: "localhost:6379", TTLSeconds: 86400},
		Auth:  AuthConfig{TokenTTL: 24 * time.Hour},
		Recognition: RecognitionConfig{
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{Interval: 5 * time.Second},
	}

	if err := libconfig.Load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database dsn required")
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return nil, errors.New("config: auth secret required")
	}
	return cfg, nil
}

// HTTPAddress returns the :port listen address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ActiveSessionTTL returns the cache TTL as a duration.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
