package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the advisor.
type Config struct {
	Port     string
	Language string // "en" or "zh"
	LogLevel string

	// Database
	DBPath string

	// News provider
	NewsBaseURL string
	NewsTimeout time.Duration
	NewsEnabled bool

	// Market provider
	MarketBaseURL string
	MarketTimeout time.Duration
	MarketEnabled bool

	RSIPeriod int
	Lookback  time.Duration

	// Mock mode
	UseMock      bool
	MockFixtures string

	// LLM (OpenAI-compatible)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Auth; empty leaves /ai/* open
	JWTSecret string

	// Per-IP limiter
	RateLimitRPS   float64
	RateLimitBurst int

	// gRPC health; empty disables it
	GRPCHealthAddr string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Language:       strings.ToLower(getEnv("LANGUAGE", "en")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBPath:         getEnv("DB_PATH", "./data/advisor.db"),
		NewsBaseURL:    getEnv("NEWS_BASE_URL", "http://127.0.0.1:9106/irls/news"),
		NewsTimeout:    getEnvDuration("NEWS_TIMEOUT", 5*time.Second),
		NewsEnabled:    getEnvBool("NEWS_ENABLED", true),
		MarketBaseURL:  getEnv("MARKET_BASE_URL", "http://127.0.0.1:9105/irls/market"),
		MarketTimeout:  getEnvDuration("MARKET_TIMEOUT", 5*time.Second),
		MarketEnabled:  getEnvBool("MARKET_ENABLED", true),
		RSIPeriod:      getEnvInt("RSI_PERIOD", 14),
		Lookback:       time.Duration(getEnvInt("LOOKBACK_HOURS", 24)) * time.Hour,
		UseMock:        getEnvBool("USE_MOCK", false),
		MockFixtures:   getEnv("MOCK_FIXTURES", ""),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:      os.Getenv("LLM_API_KEY"),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 50),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("5s") or bare milliseconds ("5000").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
