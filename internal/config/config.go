package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is what the command-line tools need to build an SDK client.
type Config struct {
	APIKey  string
	Env     Environment
	BaseURL string // optional override for Env
	Timeout time.Duration
}

// Load reads the client configuration from the environment, after merging an
// optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := strings.TrimSpace(os.Getenv("KWIKPIK_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("KWIKPIK_API_KEY environment variable is required")
	}

	env, err := ParseEnvironment(os.Getenv("KWIKPIK_ENV"))
	if err != nil {
		return nil, fmt.Errorf("KWIKPIK_ENV: %w", err)
	}

	timeout, err := getEnvAsDuration("KWIKPIK_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		APIKey:  apiKey,
		Env:     env,
		BaseURL: strings.TrimSpace(os.Getenv("KWIKPIK_BASE_URL")),
		Timeout: timeout,
	}, nil
}

// SandboxConfig configures the local stand-in API server.
type SandboxConfig struct {
	DBSource     string // empty selects the in-memory store
	Port         string
	Env          string
	JWTSecret    string
	AMQPURL      string
	DeliveryTick string // cron spec

	// DemoAPIKey is provisioned with DemoBalance on startup when no business
	// owns it yet.
	DemoAPIKey  string
	DemoBalance float64
}

func LoadSandbox() (*SandboxConfig, error) {
	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = base64.StdEncoding.EncodeToString(key)
	}

	balance, err := getEnvAsFloat("SANDBOX_BALANCE", 50000)
	if err != nil {
		return nil, err
	}

	return &SandboxConfig{
		DBSource:     os.Getenv("DB_SOURCE"),
		Port:         getEnv("SERVER_PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		JWTSecret:    secret,
		AMQPURL:      os.Getenv("AMQP_URL"),
		DeliveryTick: getEnv("DELIVERY_TICK", "@every 30s"),
		DemoAPIKey:   getEnv("SANDBOX_API_KEY", "sk_sandbox_demo"),
		DemoBalance:  balance,
	}, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvAsFloat(key string, fallback float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
