package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Redis   RedisConfig   `mapstructure:"redis"`
	JWT     JWTConfig     `mapstructure:"jwt"`
	Game    GameConfig    `mapstructure:"game"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MatchesColl string `mapstructure:"matches_collection"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URI      string `mapstructure:"uri"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	StateTTL int    `mapstructure:"state_ttl"` // in hours
}

// StateExpiry returns how long a match blob lives in redis without activity
func (c RedisConfig) StateExpiry() time.Duration {
	return time.Duration(c.StateTTL) * time.Hour
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	Expiration int    `mapstructure:"expiration"` // in hours
}

// GameConfig holds game-specific configuration
type GameConfig struct {
	Seed                int64 `mapstructure:"seed"`                  // 0 seeds from the clock
	AuctionPollInterval int   `mapstructure:"auction_poll_interval"` // in milliseconds
	OutboxPollInterval  int   `mapstructure:"outbox_poll_interval"`  // in milliseconds
	MaxDeliveryAttempts int   `mapstructure:"max_delivery_attempts"`
}

// AuctionPoll returns the auction observer period
func (c GameConfig) AuctionPoll() time.Duration {
	return time.Duration(c.AuctionPollInterval) * time.Millisecond
}

// OutboxPoll returns the outbox drain period
func (c GameConfig) OutboxPoll() time.Duration {
	return time.Duration(c.OutboxPollInterval) * time.Millisecond
}

// Load reads configuration from a file or environment variables.
// Nested keys map to upper-case env vars with underscores, e.g. REDIS_URI.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/monopoly")

	// Environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// Config file not found; we'll just use environment and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	// MongoDB defaults
	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.database", "monopoly")
	v.SetDefault("mongodb.matches_collection", "matches")

	// Redis defaults
	v.SetDefault("redis.uri", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.state_ttl", 72)

	// JWT defaults
	v.SetDefault("jwt.secret", "replace-with-secure-secret")
	v.SetDefault("jwt.expiration", 24)

	// Game defaults
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.auction_poll_interval", 1000)
	v.SetDefault("game.outbox_poll_interval", 200)
	v.SetDefault("game.max_delivery_attempts", 3)
}
