package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string
	Domain      string
	JWTSecret   string

	LogLevel  string
	LogFormat string

	// StoreMode selects where cache, filters and locks live.
	// "memory" keeps them in-process and only suits a single instance.
	StoreMode     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	CacheDefaultTTL time.Duration
	CacheNullTTL    time.Duration
	LocalCacheMaxMB int

	FilterCapacity  uint
	FilterErrorRate float64
	FilterGuard     bool

	GroupMaxNum int
	LockLease   time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	// RateLimitTrustProxy keys the limiter on X-Forwarded-For. Only enable it
	// behind a proxy that overwrites the header.
	RateLimitTrustProxy bool
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:      getEnv("APP_ENV", "local"),
		Domain:      getEnv("SHORT_LINK_DOMAIN", "localhost:8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		StoreMode:     getEnv("STORE_MODE", StoreRedis),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPoolSize: getEnvInt("REDIS_POOL_SIZE", 20),

		CacheDefaultTTL: getEnvDuration("CACHE_LINK_DEFAULT_TTL", 30*24*time.Hour),
		CacheNullTTL:    getEnvDuration("CACHE_NULL_TTL", 30*time.Minute),
		LocalCacheMaxMB: getEnvInt("LOCAL_CACHE_MAX_MB", 64),

		FilterCapacity:  uint(getEnvInt("FILTER_CAPACITY", 10_000_000)),
		FilterErrorRate: getEnvFloat("FILTER_ERROR_RATE", 0.001),
		FilterGuard:     getEnvBool("FILTER_GUARD_ENABLED", true),

		GroupMaxNum: getEnvInt("GROUP_MAX_NUM", 20),
		LockLease:   getEnvDuration("LOCK_LEASE", 30*time.Second),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),

		RateLimitTrustProxy: getEnvBool("RATE_LIMIT_TRUST_PROXY", false),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}
