package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ingest worker.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	AWS        AWSConfig        `yaml:"aws"`
	Storage    StorageConfig    `yaml:"storage"`
	Queue      QueueConfig      `yaml:"queue"`
	Processing ProcessingConfig `yaml:"processing"`
	Redis      RedisConfig      `yaml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig holds the relational database connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AWSConfig holds settings shared by the S3 and SQS clients.
type AWSConfig struct {
	Region     string `yaml:"region"`
	MaxRetries int    `yaml:"max_retries"`
}

// StorageConfig holds the CSV object storage settings.
type StorageConfig struct {
	Bucket string `yaml:"bucket"`
}

// QueueConfig holds the job dispatch queue settings.
type QueueConfig struct {
	URL                 string `yaml:"url"`
	MaxNumberOfMessages int    `yaml:"max_number_of_messages"`
	WaitTimeSeconds     int    `yaml:"wait_time_seconds"`
	VisibilityTimeout   int    `yaml:"visibility_timeout"`
	RetryDelaySeconds   int    `yaml:"retry_delay_seconds"`
}

// RetryDelay returns the transient-error sleep as a duration.
func (c QueueConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// ProcessingConfig holds row-loop tuning.
type ProcessingConfig struct {
	ProgressUpdateInterval int `yaml:"progress_update_interval"`
}

// RedisConfig holds the optional Redis connection for the job dispatch
// lock. An empty URL selects the database advisory-lock fallback.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// MetricsConfig holds the optional metrics listener. An empty address
// disables the HTTP endpoint entirely.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging controls.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the optional YAML file and applies built-in defaults. An
// empty path skips the file and yields pure defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.MaxRetries == 0 {
		cfg.AWS.MaxRetries = 3
	}
	if cfg.Queue.MaxNumberOfMessages == 0 {
		cfg.Queue.MaxNumberOfMessages = 1
	}
	if cfg.Queue.WaitTimeSeconds == 0 {
		cfg.Queue.WaitTimeSeconds = 20
	}
	if cfg.Queue.VisibilityTimeout == 0 {
		cfg.Queue.VisibilityTimeout = 300
	}
	if cfg.Queue.RetryDelaySeconds == 0 {
		cfg.Queue.RetryDelaySeconds = 5
	}
	if cfg.Processing.ProgressUpdateInterval == 0 {
		cfg.Processing.ProgressUpdateInterval = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// Layering, lowest to highest: built-in defaults, the optional YAML file
// at path, then environment variables. A .env file (if present) is loaded
// first, so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CSV_BUCKET_NAME"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("SQS_QUEUE_URL"); v != "" {
		cfg.Queue.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if err := overrideInt("MAX_RETRIES", &cfg.AWS.MaxRetries); err != nil {
		return nil, err
	}
	if err := overrideInt("SQS_MAX_NUMBER_OF_MESSAGES", &cfg.Queue.MaxNumberOfMessages); err != nil {
		return nil, err
	}
	if err := overrideInt("SQS_WAIT_TIME_SECONDS", &cfg.Queue.WaitTimeSeconds); err != nil {
		return nil, err
	}
	if err := overrideInt("SQS_VISIBILITY_TIMEOUT", &cfg.Queue.VisibilityTimeout); err != nil {
		return nil, err
	}
	if err := overrideInt("RETRY_DELAY_SECONDS", &cfg.Queue.RetryDelaySeconds); err != nil {
		return nil, err
	}
	if err := overrideInt("PROGRESS_UPDATE_INTERVAL", &cfg.Processing.ProgressUpdateInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing required setting. The worker cannot
// start without a database, a CSV bucket, and a queue.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Storage.Bucket == "" {
		return errors.New("CSV_BUCKET_NAME is required")
	}
	if c.Queue.URL == "" {
		return errors.New("SQS_QUEUE_URL is required")
	}
	return nil
}

// overrideInt replaces *dst with the integer held in the named environment
// variable when it is set.
func overrideInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}
