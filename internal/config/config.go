package config

import (
	"fmt"
	"net/url"
	"time"

	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
)

// Config holds all application configuration settings.
type Config struct {
	ServerURL    string        `envconfig:"SERVER_URL" yaml:"serverURL"`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" yaml:"httpTimeout"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" yaml:"pollInterval"`

	DocumentsDir string `envconfig:"DOCUMENTS_DIR" yaml:"documentsDir"`
	GalleryDir   string `envconfig:"GALLERY_DIR" yaml:"galleryDir"`
	TempDir      string `envconfig:"TEMP_DIR" yaml:"tempDir"`

	// HistoryFile is where finished jobs are recorded. Empty disables it.
	HistoryFile string `envconfig:"HISTORY_FILE" yaml:"historyFile"`

	MaxParallel int `envconfig:"MAX_PARALLEL" yaml:"maxParallel"`

	LogLevel  string `envconfig:"LOG_LEVEL" yaml:"logLevel"`
	LogFormat string `envconfig:"LOG_FORMAT" yaml:"logFormat"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ServerURL:    "http://127.0.0.1:5000",
		HTTPTimeout:  30 * time.Second,
		PollInterval: time.Second,
		DocumentsDir: "./downloads",
		GalleryDir:   "./gallery",
		TempDir:      "./tmp",
		HistoryFile:  "./history.json",
		MaxParallel:  2,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrServerAddress, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", apperrors.ErrServerAddress, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", apperrors.ErrServerAddress, c.ServerURL)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout cannot be negative: %s", c.HTTPTimeout)
	}
	if c.MaxParallel <= 0 {
		return fmt.Errorf("max parallel downloads must be positive: %d", c.MaxParallel)
	}

	if c.DocumentsDir == "" {
		return fmt.Errorf("documents directory cannot be empty")
	}
	if c.GalleryDir == "" {
		return fmt.Errorf("gallery directory cannot be empty")
	}
	if c.TempDir == "" {
		return fmt.Errorf("temp directory cannot be empty")
	}

	return nil
}
