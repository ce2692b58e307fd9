package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every environment-driven setting the server needs. Load it
// once in main and pass the pieces down.
type Config struct {
	Port              string
	AllowedOrigins    string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	JWTSecret         string
	BusinessTimezone  string
	SummaryTTLSeconds int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("SUMMARY_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}

	return Config{
		Port:              getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:    os.Getenv("ALLOWED_ORIGINS"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,
		JWTSecret:         strings.TrimSpace(os.Getenv("JWT_SECRET")),
		BusinessTimezone:  getEnv("BUSINESS_TIMEZONE", "America/La_Paz"),
		SummaryTTLSeconds: ttl,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves the business timezone used for sale edit windows and
// report bucketing.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}

func (c Config) SummaryTTL() time.Duration {
	return time.Duration(c.SummaryTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
