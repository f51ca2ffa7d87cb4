package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Media    MediaConfig    `yaml:"media"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration (API service and the
// worker's operational endpoint)
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// QueueConfig holds PGMQ queue configuration. VisibilityTimeout must exceed
// the worst-case duration of a single transcription job; an expired lease is
// the retry mechanism.
type QueueConfig struct {
	Name              string        `yaml:"name"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	BatchSize         int           `yaml:"batch_size"`
}

// WorkerConfig holds transcription worker configuration
type WorkerConfig struct {
	MaxConcurrentJobs    int           `yaml:"max_concurrent_jobs"`
	MaxRetries           int           `yaml:"max_retries"`
	BasePollInterval     time.Duration `yaml:"base_poll_interval"`
	MaxPollInterval      time.Duration `yaml:"max_poll_interval"`
	StartupDelay         time.Duration `yaml:"startup_delay"`
	ShutdownDrainTimeout time.Duration `yaml:"shutdown_drain_timeout"`
}

// MediaConfig holds the external extraction/transcription tool configuration
type MediaConfig struct {
	YtdlpBinary       string        `yaml:"ytdlp_binary"`
	CookiesFile       string        `yaml:"cookies_file"`
	AudioCacheDir     string        `yaml:"audio_cache_dir"`
	ExtractTimeout    time.Duration `yaml:"extract_timeout"`
	Provider          string        `yaml:"provider"` // local or openai
	WhisperBinary     string        `yaml:"whisper_binary"`
	WhisperModel      string        `yaml:"whisper_model"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`
	OpenAI            OpenAIConfig  `yaml:"openai"`
}

// OpenAIConfig holds settings for the OpenAI-compatible transcription API.
// The API key itself is read from the environment variable named by
// APIKeyEnv so it never lives in the config file.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// ValidateAPIConfig checks the settings the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateDatabase()
}

// ValidateWorkerConfig checks the settings the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if c.Queue.Name == "" {
		return fmt.Errorf("queue name is required")
	}

	if c.Queue.VisibilityTimeout <= 0 {
		return fmt.Errorf("queue visibility_timeout must be greater than 0")
	}

	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue batch_size must be greater than 0")
	}

	if c.Worker.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("worker max_concurrent_jobs must be greater than 0")
	}

	if c.Worker.MaxRetries <= 0 {
		return fmt.Errorf("worker max_retries must be greater than 0")
	}

	if c.Worker.BasePollInterval <= 0 {
		return fmt.Errorf("worker base_poll_interval must be greater than 0")
	}

	if c.Worker.MaxPollInterval < c.Worker.BasePollInterval {
		return fmt.Errorf("worker max_poll_interval must not be less than base_poll_interval")
	}

	if c.Worker.ShutdownDrainTimeout <= 0 {
		return fmt.Errorf("worker shutdown_drain_timeout must be greater than 0")
	}

	if c.Media.YtdlpBinary == "" {
		return fmt.Errorf("media ytdlp_binary is required")
	}

	switch c.Media.Provider {
	case "local":
		if c.Media.WhisperBinary == "" {
			return fmt.Errorf("media whisper_binary is required for the local provider")
		}
	case "openai":
		if c.Media.OpenAI.BaseURL == "" {
			return fmt.Errorf("media openai.base_url is required for the openai provider")
		}
	default:
		return fmt.Errorf("invalid media provider: %q (must be local or openai)", c.Media.Provider)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}
