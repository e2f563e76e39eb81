package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the CareView backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Session       SessionConfig       `mapstructure:"session"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	GraphQLCache  GraphQLCacheConfig  `mapstructure:"graphql_cache"`
	Realtime      RealtimeConfig      `mapstructure:"realtime"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds Redis connection options. When disabled the backend runs
// on the in-process store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig tunes the generic cache layer.
type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// SessionConfig configures the session registry and its tokens.
type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// NotificationsConfig tunes notification retention.
type NotificationsConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig tunes the request throttle.
type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// GraphQLCacheConfig tunes the GraphQL response cache.
type GraphQLCacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// RealtimeConfig tunes the websocket hub timers.
type RealtimeConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible
// defaults. Every key can be overridden through CAREVIEW_-prefixed environment
// variables.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CAREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if config.Session.Secret == "" {
		return nil, errors.New("config: session.secret is required")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "127.0.0.1:6379")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.default_ttl", "1h")

	// Registered empty so the environment override is visible to Unmarshal.
	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", "24h")

	v.SetDefault("notifications.ttl", "168h") // 7 days

	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("graphql_cache.enabled", true)
	v.SetDefault("graphql_cache.default_ttl", "5m")

	v.SetDefault("realtime.ping_interval", "30s")
	v.SetDefault("realtime.idle_timeout", "5m")
}
