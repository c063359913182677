// Package config loads the bot configuration from the environment,
// optionally read from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Discord DiscordConfig
	Torn    TornConfig
	Storage StorageConfig
	Redis   RedisConfig
	Monitor MonitorConfig
	Logging LoggingConfig
	Mirrors map[string]string // provider name -> url template override
}

type DiscordConfig struct {
	Token   string
	GuildID string // register commands on one guild only, for development
}

type TornConfig struct {
	APIKey            string
	TornStatsKey      string
	BaseURL           string
	RequestsPerMinute int
}

type StorageConfig struct {
	DataDir      string
	DatabasePath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MonitorConfig struct {
	ChainInterval  time.Duration
	AttackInterval time.Duration
	StatsInterval  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

var mirrorVariables = map[string]string{
	"tornstats":      "TORNSTATS_URL",
	"yata":           "YATA_URL",
	"torntools":      "TORNTOOLS_URL",
	"tornpda":        "TORNPDA_URL",
	"tornplayground": "TORNPLAYGROUND_URL",
}

// Load reads the configuration. A missing .env file is not an error
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Discord = DiscordConfig{
		Token:   getEnv("DISCORD_TOKEN", ""),
		GuildID: getEnv("DISCORD_GUILD_ID", ""),
	}

	requestsPerMinute, err := getInt("TORN_REQUESTS_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	cfg.Torn = TornConfig{
		APIKey:            getEnv("TORN_API_KEY", ""),
		TornStatsKey:      getEnv("TORNSTATS_API_KEY", ""),
		BaseURL:           getEnv("TORN_API_URL", "https://api.torn.com"),
		RequestsPerMinute: requestsPerMinute,
	}

	dataDir := getEnv("DATA_DIR", "./data")
	cfg.Storage = StorageConfig{
		DataDir:      dataDir,
		DatabasePath: getEnv("DATABASE_PATH", filepath.Join(dataDir, "brother_owl.db")),
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	chainSeconds, err := getInt("CHAIN_CHECK_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	attackSeconds, err := getInt("ATTACK_CHECK_INTERVAL_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	statsMinutes, err := getInt("FACTION_STATS_INTERVAL_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	cfg.Monitor = MonitorConfig{
		ChainInterval:  time.Duration(chainSeconds) * time.Second,
		AttackInterval: time.Duration(attackSeconds) * time.Second,
		StatsInterval:  time.Duration(statsMinutes) * time.Minute,
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	cfg.Mirrors = map[string]string{}
	for provider, variable := range mirrorVariables {
		if template := getEnv(variable, ""); template != "" {
			cfg.Mirrors[provider] = template
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}
	if c.Torn.RequestsPerMinute <= 0 {
		return fmt.Errorf("TORN_REQUESTS_PER_MINUTE must be positive")
	}
	if c.Monitor.ChainInterval <= 0 || c.Monitor.AttackInterval <= 0 || c.Monitor.StatsInterval <= 0 {
		return fmt.Errorf("monitoring intervals must be positive")
	}
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// Path of a JSON store inside the data directory
func (c *StorageConfig) File(name string) string {
	return filepath.Join(c.DataDir, name)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
