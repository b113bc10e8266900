package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	AppEnv            string
	AppName           string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	RedisHost         string
	RedisPort         string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisMinIdleConns int
	RedisMaxRetries   int
	AppPort           string
	MetricsPort       string
	LogLevel          string
	JWTSecret         string

	// Safety engine
	OpenRouterEndpoint string
	OpenRouterAPIKey   string
	SafetyModelID      string
	SafetyTimeoutMs    int
	SafetyRulesPath    string

	// Embeddings
	EmbeddingEndpoint string
	EmbeddingAPIKey   string
	EmbeddingModel    string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:             os.Getenv("APP_ENV"),
		AppName:            os.Getenv("APP_NAME"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             os.Getenv("DB_PORT"),
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             os.Getenv("DB_NAME"),
		DBSSLMode:          os.Getenv("DB_SSL_MODE"),
		RedisHost:          os.Getenv("REDIS_HOST"),
		RedisPort:          os.Getenv("REDIS_PORT"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		AppPort:            os.Getenv("APP_PORT"),
		MetricsPort:        os.Getenv("METRICS_PORT"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		OpenRouterEndpoint: os.Getenv("OPENROUTER_ENDPOINT"),
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		SafetyModelID:      os.Getenv("SAFETY_MODEL_ID"),
		SafetyRulesPath:    os.Getenv("SAFETY_RULES_PATH"),
		EmbeddingEndpoint:  os.Getenv("EMBEDDING_ENDPOINT"),
		EmbeddingAPIKey:    os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:     os.Getenv("EMBEDDING_MODEL"),
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = "disable"
	}
	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.OpenRouterEndpoint == "" {
		cfg.OpenRouterEndpoint = "https://openrouter.ai/api/v1"
	}
	if cfg.SafetyModelID == "" {
		cfg.SafetyModelID = "openai/gpt-4o-mini"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	var err error
	if v := os.Getenv("SAFETY_TIMEOUT_MS"); v != "" {
		cfg.SafetyTimeoutMs, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SAFETY_TIMEOUT_MS: %w", err)
		}
	} else {
		cfg.SafetyTimeoutMs = 1500
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		cfg.RedisDB, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
	}
	if v := os.Getenv("REDIS_POOL_SIZE"); v != "" {
		cfg.RedisPoolSize, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_POOL_SIZE: %w", err)
		}
	}
	if v := os.Getenv("REDIS_MIN_IDLE_CONNS"); v != "" {
		cfg.RedisMinIdleConns, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_MIN_IDLE_CONNS: %w", err)
		}
	}
	if v := os.Getenv("REDIS_MAX_RETRIES"); v != "" {
		cfg.RedisMaxRetries, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_MAX_RETRIES: %w", err)
		}
	}
	if cfg.DBHost == "" || cfg.DBPort == "" || cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("missing required database environment variables")
	}
	return cfg, nil
}

// DSN returns the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
