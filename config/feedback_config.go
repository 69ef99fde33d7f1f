package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique consumer name using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "feedback"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// LLM
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Bedrock
	AWSRegion    string
	BedrockModel string

	// Ingestion
	IngestConcurrency   int
	SimilarityThreshold int
	ClassifyCacheTTL    time.Duration
	ClassifyL1Size      int

	// Snowflake node id, 0..1023
	NodeID int64

	// Worker
	WorkerID        string
	WorkerMax       int
	WorkerQueueSize int

	// Consumer (Redis Stream)
	ImportStream            string
	ConsumerGroup           string
	ConsumerBatchSize       int
	ConsumerBlockMS         int
	ConsumerMaxRetries      int
	ConsumerPendingCheckSec int

	// HTTP
	AllowedOrigins   []string
	ImportRatePerMin int
	MaxUploadSizeMB  int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "feedback"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// LLM
		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),

		// Bedrock
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		BedrockModel: getEnv("BEDROCK_MODEL", "anthropic.claude-3-haiku-20240307-v1:0"),

		// Ingestion
		IngestConcurrency:   getEnvInt("INGEST_CONCURRENCY", 1),
		SimilarityThreshold: getEnvInt("SIMILARITY_THRESHOLD", 4),
		ClassifyCacheTTL:    time.Duration(getEnvInt("CLASSIFY_CACHE_TTL_MIN", 60)) * time.Minute,
		ClassifyL1Size:      getEnvInt("CLASSIFY_L1_SIZE", 5000),

		NodeID: int64(getEnvInt("NODE_ID", 1)),

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerMax:       getEnvInt("WORKER_MAX", 4),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 100),

		// Consumer
		ImportStream:            getEnv("IMPORT_STREAM", "feedback:import"),
		ConsumerGroup:           getEnv("CONSUMER_GROUP", "feedback-workers"),
		ConsumerBatchSize:       getEnvInt("CONSUMER_BATCH_SIZE", 10),
		ConsumerBlockMS:         getEnvInt("CONSUMER_BLOCK_MS", 5000),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 60),

		// HTTP
		AllowedOrigins:   getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		ImportRatePerMin: getEnvInt("IMPORT_RATE_PER_MIN", 30),
		MaxUploadSizeMB:  getEnvInt("MAX_UPLOAD_SIZE_MB", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "openai", "bedrock":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.IngestConcurrency < 1 {
		return fmt.Errorf("INGEST_CONCURRENCY must be >= 1, got %d", c.IngestConcurrency)
	}
	if c.SimilarityThreshold < 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be >= 1, got %d", c.SimilarityThreshold)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("NODE_ID must be within 0..1023, got %d", c.NodeID)
	}
	return nil
}

// LLMTimeout returns the per-call bound for text generation requests.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
