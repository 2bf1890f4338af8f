package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	WorkerPoolSize  int           `envconfig:"WORKER_POOL_SIZE" default:"5"`
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"5m"`
	MaxFileSize     int64         `envconfig:"MAX_FILE_SIZE" default:"104857600"`

	DownloadDir string `envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	// SaveDir is the initial directory offered in confirmation prompts.
	// Empty means the download directory.
	SaveDir     string `envconfig:"SAVE_DIR" default:""`
	StateFile   string `envconfig:"STATE_FILE" default:"./state/downloads.json"`
	HistoryFile string `envconfig:"HISTORY_FILE" default:"./state/history.json"`

	// Target resolution policy.
	PromptForDownload      bool     `envconfig:"PROMPT_FOR_DOWNLOAD" default:"false"`
	DownloadPathManaged    bool     `envconfig:"DOWNLOAD_PATH_MANAGED" default:"false"`
	AllowInsecureDownloads bool     `envconfig:"ALLOW_INSECURE_DOWNLOADS" default:"false"`
	AutoConfirmPrompts     bool     `envconfig:"AUTO_CONFIRM_PROMPTS" default:"false"`
	DefaultFilename        string   `envconfig:"DEFAULT_FILENAME" default:"download"`
	AutoOpenExtensions     []string `envconfig:"AUTO_OPEN_EXTENSIONS"`
	DLPBlockedDirs         []string `envconfig:"DLP_BLOCKED_DIRS"`
	BlockedHosts           []string `envconfig:"BLOCKED_HOSTS"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive: %d", c.WorkerPoolSize)
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSize)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file cannot be empty")
	}
	if c.HistoryFile == "" {
		return fmt.Errorf("history file cannot be empty")
	}

	if c.DefaultFilename == "" {
		return fmt.Errorf("default filename cannot be empty")
	}

	return nil
}

// EffectiveSaveDir returns the directory initially offered in prompts.
func (c *Config) EffectiveSaveDir() string {
	if c.SaveDir != "" {
		return c.SaveDir
	}
	return c.DownloadDir
}
