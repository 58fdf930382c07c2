package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendMySQL  Backend = "mysql"
	BackendRedis  Backend = "redis"
)

type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	Backend            Backend
	MySQLDSN           string
	RedisAddr          string
	MaxConflictRetries int
	LogLevel           slog.Level
	ShutdownTimeout    time.Duration
}

// Load reads the environment. Unset or malformed values fall back to
// defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:           getEnv("GRPC_ADDR", ":50051"),
		Backend:            parseBackend(os.Getenv("STORE_BACKEND")),
		MySQLDSN:           getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/flashsale?parseTime=true"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		MaxConflictRetries: getNonNegativeInt("MAX_CONFLICT_RETRIES", 3),
		LogLevel:           parseLevel(os.Getenv("LOG_LEVEL")),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getNonNegativeInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func parseBackend(v string) Backend {
	switch Backend(strings.ToLower(v)) {
	case BackendMySQL:
		return BackendMySQL
	case BackendRedis:
		return BackendRedis
	default:
		return BackendMemory
	}
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}
