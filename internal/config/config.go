package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// API
	BaseURL           string
	RequestTimeout    time.Duration
	MaxRetries        int
	RetryInitialDelay time.Duration

	// Wallet
	PrivateKey string // never logged, never persisted

	// Credentials
	CredentialsBackend string // file, redis or memory
	CredentialsFile    string
	RedisURL           string
	RedisKey           string

	// Scheduling
	ActionPause time.Duration

	// Status server
	StatusPort string // empty disables the endpoint
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		BaseURL:           getEnv("PARASAIL_BASE_URL", "https://www.parasail.network/api"),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxRetries:        getEnvInt("MAX_RETRIES", 5),
		RetryInitialDelay: time.Duration(getEnvInt("RETRY_INITIAL_DELAY_SECONDS", 5)) * time.Second,

		PrivateKey: os.Getenv("PRIVATE_KEY"),

		CredentialsBackend: getEnv("CREDENTIALS_BACKEND", "file"),
		CredentialsFile:    getEnv("CONFIG_FILE", "config.json"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisKey:           getEnv("REDIS_CREDENTIALS_KEY", "parasail:credentials"),

		ActionPause: time.Duration(getEnvInt("ACTION_PAUSE_SECONDS", 2)) * time.Second,

		StatusPort: getEnv("STATUS_PORT", ""),
	}
}

func (c *Config) Validate(log *zap.Logger) {
	switch c.CredentialsBackend {
	case "file", "redis", "memory":
	default:
		log.Warn("unknown CREDENTIALS_BACKEND, falling back to file",
			zap.String("backend", c.CredentialsBackend))
		c.CredentialsBackend = "file"
	}
	if c.CredentialsBackend == "memory" {
		log.Warn("memory credentials backend selected, token will not survive restarts")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
