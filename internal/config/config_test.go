package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "transcription_jobs", cfg.Queue.Name)
	assert.Equal(t, 30*time.Minute, cfg.Queue.VisibilityTimeout)
	assert.Equal(t, 5, cfg.Queue.BatchSize)
	assert.Equal(t, 2, cfg.Worker.MaxConcurrentJobs)
	assert.Equal(t, 3, cfg.Worker.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Worker.BasePollInterval)
	assert.Equal(t, 60*time.Second, cfg.Worker.MaxPollInterval)
	assert.Equal(t, 120*time.Second, cfg.Worker.ShutdownDrainTimeout)
	assert.Equal(t, "yt-dlp", cfg.Media.YtdlpBinary)
	assert.Equal(t, "openai", cfg.Media.Provider)
	assert.Equal(t, "whisper-1", cfg.Media.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Media.OpenAI.APIKeyEnv)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does_not_exist.yaml")
	assert.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load("testdata/malformed.yaml")
	assert.Error(t, err)
}

func validWorkerConfig() *Config {
	cfg, _ := Load("testdata/valid_config.yaml")
	return cfg
}

func TestValidateWorkerConfig(t *testing.T) {
	assert.NoError(t, validWorkerConfig().ValidateWorkerConfig())
}

func TestValidateWorkerConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing queue name",
			mutate:  func(c *Config) { c.Queue.Name = "" },
			wantErr: "queue name",
		},
		{
			name:    "zero visibility timeout",
			mutate:  func(c *Config) { c.Queue.VisibilityTimeout = 0 },
			wantErr: "visibility_timeout",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Queue.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Worker.MaxConcurrentJobs = 0 },
			wantErr: "max_concurrent_jobs",
		},
		{
			name:    "zero max retries",
			mutate:  func(c *Config) { c.Worker.MaxRetries = 0 },
			wantErr: "max_retries",
		},
		{
			name:    "max poll below base poll",
			mutate:  func(c *Config) { c.Worker.MaxPollInterval = time.Second },
			wantErr: "max_poll_interval",
		},
		{
			name:    "zero drain timeout",
			mutate:  func(c *Config) { c.Worker.ShutdownDrainTimeout = 0 },
			wantErr: "shutdown_drain_timeout",
		},
		{
			name:    "missing ytdlp binary",
			mutate:  func(c *Config) { c.Media.YtdlpBinary = "" },
			wantErr: "ytdlp_binary",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Media.Provider = "cloud" },
			wantErr: "provider",
		},
		{
			name: "local provider without whisper binary",
			mutate: func(c *Config) {
				c.Media.Provider = "local"
				c.Media.WhisperBinary = ""
			},
			wantErr: "whisper_binary",
		},
		{
			name: "openai provider without base url",
			mutate: func(c *Config) {
				c.Media.Provider = "openai"
				c.Media.OpenAI.BaseURL = ""
			},
			wantErr: "base_url",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validWorkerConfig()
			tt.mutate(cfg)
			err := cfg.ValidateWorkerConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAPIConfig(t *testing.T) {
	cfg := validWorkerConfig()
	assert.NoError(t, cfg.ValidateAPIConfig())

	cfg.Server.Port = 0
	assert.Error(t, cfg.ValidateAPIConfig())

	cfg = validWorkerConfig()
	cfg.Database.Port = 70000
	assert.Error(t, cfg.ValidateAPIConfig())
}
