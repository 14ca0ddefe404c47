package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Refresh  RefreshConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type GatewayConfig struct {
	BaseURL  string
	Username string
	Password string
	SenderID string
	// DefaultDLRURL is attached to sends that do not carry their own
	// delivery-receipt callback.
	DefaultDLRURL string
}

type RefreshConfig struct {
	// Interval between scheduled token refreshes. The scheduler force-
	// refreshes so a token never reaches its expiry margin in practice.
	Interval  time.Duration
	AutoStart bool
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Gateway: GatewayConfig{
			BaseURL:       mustEnv("GATEWAY_BASE_URL"),
			Username:      mustEnv("GATEWAY_USERNAME"),
			Password:      mustEnv("GATEWAY_PASSWORD"),
			SenderID:      mustEnv("GATEWAY_SENDER_ID"),
			DefaultDLRURL: getEnv("GATEWAY_DLR_URL", ""),
		},
		Refresh: RefreshConfig{
			Interval:  time.Duration(getEnvInt("TOKEN_REFRESH_INTERVAL_SECONDS", 1800)) * time.Second,
			AutoStart: getEnv("TOKEN_REFRESH_AUTOSTART", "true") == "true",
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func validate(cfg *Config) {
	if cfg.Refresh.Interval <= 0 {
		panic("TOKEN_REFRESH_INTERVAL_SECONDS must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
