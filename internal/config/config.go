package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Embedding EmbeddingConfig
	Run       RunConfig
}

type EmbeddingConfig struct {
	URL   string // defaults to http://localhost:8000
	Model string // model name passed to the face endpoint, for reference only
}

type RunConfig struct {
	BatchSize     int           // photos per batch (default 20)
	DetectTimeout time.Duration // per-photo timeout for the detection call (default 60s)
	MaxImageSize  int           // longest image edge sent to the detector, px (default 1600)
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: os.Getenv("EMBEDDING_MODEL"),
		},
		Run: RunConfig{
			BatchSize:     envInt("MATCH_BATCH_SIZE", 20),
			DetectTimeout: time.Duration(envInt("MATCH_DETECT_TIMEOUT_SECONDS", 60)) * time.Second,
			MaxImageSize:  envInt("MATCH_MAX_IMAGE_SIZE", 1600),
		},
	}
}
