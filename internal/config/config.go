package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBSource        string
	RedisAddr       string
	VerifierURL     string
	Port            string
	Env             string
	DrainTimeout    time.Duration
	ProcessInterval time.Duration
}

func Load() (*Config, error) {
	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	verifierURL := os.Getenv("VERIFIER_URL")
	if verifierURL == "" {
		return nil, fmt.Errorf("VERIFIER_URL environment variable is required")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	drainSecs, err := intEnv("DRAIN_TIMEOUT_SECS", 30)
	if err != nil {
		return nil, err
	}

	intervalSecs, err := intEnv("PROCESS_INTERVAL_SECS", 5)
	if err != nil {
		return nil, err
	}

	return &Config{
		DBSource:        dbSource,
		RedisAddr:       redisAddr,
		VerifierURL:     verifierURL,
		Port:            port,
		Env:             env,
		DrainTimeout:    time.Duration(drainSecs) * time.Second,
		ProcessInterval: time.Duration(intervalSecs) * time.Second,
	}, nil
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return v, nil
}
