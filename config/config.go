// Package config loads process settings from the environment, the way
// the teacher's own config package does: a flat struct, getEnv* helpers
// with defaults, no config library. The teacher never reaches for viper
// despite plenty of the pack using it, and neither do we.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DatabaseURL string

	// Remote model services
	VLLMURL            string
	EmbeddingURL       string
	SpacyAPIURL        string
	FasttextLangdetectURL string

	// Capability registry
	CapabilitiesPath string

	// Prompts
	PromptsDir string

	// Classifier
	ClassifierTimeoutSec int
	ClassifierMaxRetries int
	ClassifierSeed       int

	// Embedder
	EmbedderTimeoutSec int
	EmbedBatchSize     int

	// Pipeline
	PrepareConcurrency int
	DefaultBatchSize   int

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),

		VLLMURL:               getEnv("VLLM_URL", "http://127.0.0.1:6001/v1"),
		EmbeddingURL:          getEnv("EMBEDDING_URL", "http://127.0.0.1:6003"),
		SpacyAPIURL:           getEnv("SPACY_API_URL", "http://127.0.0.1:6004"),
		FasttextLangdetectURL: getEnv("FASTTEXT_LANGDETECT_URL", "http://127.0.0.1:6005"),

		CapabilitiesPath: getEnv("CAPABILITIES_PATH", "./capabilities.json"),

		PromptsDir: getEnv("PROMPTS_DIR", "./prompts"),

		ClassifierTimeoutSec: getEnvInt("CLASSIFIER_TIMEOUT_SEC", 60),
		ClassifierMaxRetries: getEnvInt("CLASSIFIER_MAX_RETRIES", 3),
		ClassifierSeed:       getEnvInt("CLASSIFIER_SEED", 42),

		EmbedderTimeoutSec: getEnvInt("EMBEDDER_TIMEOUT_SEC", 30),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 1),

		PrepareConcurrency: getEnvInt("PREPARE_CONCURRENCY", 4),
		DefaultBatchSize:   getEnvInt("TRANSFORM_BATCH_SIZE", 50),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutSec) * time.Second
}

func (c *Config) EmbedderTimeout() time.Duration {
	return time.Duration(c.EmbedderTimeoutSec) * time.Second
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
