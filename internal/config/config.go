package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Broker     BrokerConfig
	Provider   ProviderConfig
	Evaluator  LoopConfig
	Dispatcher DispatcherConfig
	LogLevel   string
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
	TTL      time.Duration
}

type BrokerConfig struct {
	Enabled bool
	URL     string
	Queue   string
}

type ProviderConfig struct {
	URL string
}

type LoopConfig struct {
	Interval time.Duration
}

type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	Workers   int
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Provider: ProviderConfig{
			URL: mustEnv("PROVIDER_URL"),
		},
		Evaluator: LoopConfig{
			Interval: time.Duration(getEnvInt("EVAL_INTERVAL_SECONDS", 60)) * time.Second,
		},
		Dispatcher: DispatcherConfig{
			Interval:  time.Duration(getEnvInt("DISPATCH_INTERVAL_SECONDS", 15)) * time.Second,
			BatchSize: getEnvInt("DISPATCH_BATCH_SIZE", 100),
			Workers:   getEnvInt("SEND_WORKERS", 8),
		},
		Redis:    loadRedisConfig(),
		Broker:   loadBrokerConfig(),
		LogLevel: getEnv("LOG_LEVEL", "info"),
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
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func loadBrokerConfig() BrokerConfig {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		return BrokerConfig{Enabled: false}
	}

	return BrokerConfig{
		Enabled: true,
		URL:     url,
		Queue:   getEnv("RESERVATION_EVENTS_QUEUE", "reservation.events"),
	}
}

func validate(cfg *Config) {
	if cfg.Evaluator.Interval <= 0 {
		panic("EVAL_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Dispatcher.Interval <= 0 {
		panic("DISPATCH_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Dispatcher.BatchSize <= 0 {
		panic("DISPATCH_BATCH_SIZE must be > 0")
	}
	if cfg.Dispatcher.Workers <= 0 {
		panic("SEND_WORKERS must be > 0")
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
