package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendCompletion = "completion"
	BackendDocker     = "docker"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	// json or console
	LogFormat string

	ExecutionBackend string
	ExecutionTimeout time.Duration
	BatchConcurrency int
	MaxCodeBytes     int
	RateLimit        float64
	RateBurst        int
	LanguagesFile    string

	Completion CompletionConfig
	Docker     DockerConfig
	Nats       NatsConfig

	// DotEnvLoaded reports whether a .env file was found.
	DotEnvLoaded bool
}

type CompletionConfig struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

type DockerConfig struct {
	PullImages  bool
	MemoryBytes int64
	NanoCPUs    int64
	TimeLimit   time.Duration
	OutputLimit int
}

type NatsConfig struct {
	URL     string
	Subject string
}

// Load reads an optional .env file and then the process environment.
// Unset keys take their defaults; malformed values are reported together.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil

	p := &parser{}
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "release"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		ExecutionBackend: strings.ToLower(getEnv("EXECUTION_BACKEND", BackendCompletion)),
		ExecutionTimeout: p.getDurationEnv("EXECUTION_TIMEOUT", 30*time.Second),
		BatchConcurrency: p.getIntEnv("BATCH_CONCURRENCY", 1),
		MaxCodeBytes:     p.getIntEnv("MAX_CODE_BYTES", 64<<10),
		RateLimit:        p.getFloatEnv("RATE_LIMIT", 0),
		RateBurst:        p.getIntEnv("RATE_BURST", 10),
		LanguagesFile:    getEnv("LANGUAGES_FILE", ""),

		Completion: CompletionConfig{
			URL:         getEnv("COMPLETION_API_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey:      getEnv("COMPLETION_API_KEY", ""),
			Model:       getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
			MaxTokens:   p.getIntEnv("COMPLETION_MAX_TOKENS", 2000),
			Temperature: p.getFloatEnv("COMPLETION_TEMPERATURE", 0),
		},
		Docker: DockerConfig{
			PullImages:  p.getBoolEnv("DOCKER_PULL_IMAGES", false),
			MemoryBytes: int64(p.getIntEnv("DOCKER_MEMORY_BYTES", 256<<20)),
			NanoCPUs:    int64(p.getIntEnv("DOCKER_NANO_CPUS", 1_000_000_000)),
			TimeLimit:   p.getDurationEnv("DOCKER_TIME_LIMIT", 10*time.Second),
			OutputLimit: p.getIntEnv("DOCKER_OUTPUT_LIMIT", 64<<10),
		},
		Nats: NatsConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "executions.finished"),
		},
		DotEnvLoaded: loaded,
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that parse but make no sense.
func (c *Config) Validate() error {
	switch c.ExecutionBackend {
	case BackendCompletion, BackendDocker:
	default:
		return fmt.Errorf("EXECUTION_BACKEND must be %q or %q, got %q", BackendCompletion, BackendDocker, c.ExecutionBackend)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.MaxCodeBytes < 0 {
		return fmt.Errorf("MAX_CODE_BYTES must not be negative, got %d", c.MaxCodeBytes)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}
	return nil
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

type parser struct {
	errs []error
}

func (p *parser) lookup(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, exists && value != ""
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("invalid %s=%q: %w", key, value, err))
}

func (p *parser) getIntEnv(key string, defaultVal int) int {
	value, ok := p.lookup(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultVal
	}
	return n
}

func (p *parser) getFloatEnv(key string, defaultVal float64) float64 {
	value, ok := p.lookup(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultVal
	}
	return f
}

func (p *parser) getBoolEnv(key string, defaultVal bool) bool {
	value, ok := p.lookup(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultVal
	}
	return b
}

func (p *parser) getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	value, ok := p.lookup(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultVal
	}
	return d
}
