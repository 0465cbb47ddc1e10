package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production" - controls remote URL safety checks
	Server      ServerConfig  `toml:"server"`
	Browser     BrowserConfig `toml:"browser"`
	PDF         PDFConfig     `toml:"pdf"`
	Queue       QueueConfig   `toml:"queue"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// BrowserConfig controls the shared headless browser per render kind.
type BrowserConfig struct {
	MaxConcurrent    int            `toml:"max_concurrent"`     // Concurrent render slots per kind (1..10)
	DefaultTimeoutMs int            `toml:"default_timeout_ms"` // Navigation timeout (1000..120000 ms)
	DefaultViewport  ViewportConfig `toml:"default_viewport"`
	LaunchOptions    LaunchConfig   `toml:"launch_options"`
}

type ViewportConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type LaunchConfig struct {
	Headless bool     `toml:"headless"`
	Args     []string `toml:"args"`
}

// PDFConfig supplies defaults applied when a job omits the matching option.
type PDFConfig struct {
	DefaultFormat   string       `toml:"default_format"`
	DefaultMargin   MarginConfig `toml:"default_margin"`
	PrintBackground bool         `toml:"print_background"`
}

type MarginConfig struct {
	Top    string `toml:"top"`
	Right  string `toml:"right"`
	Bottom string `toml:"bottom"`
	Left   string `toml:"left"`
}

type QueueConfig struct {
	MaxSize             int `toml:"max_size"`              // Store capacity including terminal jobs (1..1000)
	ProcessingTimeoutMs int `toml:"processing_timeout_ms"` // Per-attempt budget (5000..300000 ms)
	RetryAttempts       int `toml:"retry_attempts"`        // Extra attempts after the first failure (0..5)
	RetryDelayMs        int `toml:"retry_delay_ms"`        // Sleep between attempts (100..30000 ms)
}

type StorageConfig struct {
	OutputDir         string `toml:"output_dir"`          // Root for date-partitioned artifacts
	SnapshotDir       string `toml:"snapshot_dir"`        // Directory for per-kind job snapshot files
	CleanupAfterHours int    `toml:"cleanup_after_hours"` // Terminal job retention (1..720)
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "production",
		Server: ServerConfig{
			Port: 8090,
			Host: "localhost",
		},
		Browser: BrowserConfig{
			MaxConcurrent:    3,
			DefaultTimeoutMs: 30000,
			DefaultViewport:  ViewportConfig{Width: 1280, Height: 800},
			LaunchOptions: LaunchConfig{
				Headless: true,
				Args:     []string{"--no-sandbox", "--disable-dev-shm-usage"},
			},
		},
		PDF: PDFConfig{
			DefaultFormat: "A4",
			DefaultMargin: MarginConfig{
				Top: "10mm", Right: "10mm", Bottom: "10mm", Left: "10mm",
			},
			PrintBackground: true,
		},
		Queue: QueueConfig{
			MaxSize:             100,
			ProcessingTimeoutMs: 60000,
			RetryAttempts:       1,
			RetryDelayMs:        1000,
		},
		Storage: StorageConfig{
			OutputDir:         "./output",
			SnapshotDir:       "./data",
			CleanupAfterHours: 72,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier ones. Missing files are an error; an empty path
// list returns defaults merged with env overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	clampConfig(config)

	return config, nil
}

// applyEnvOverrides applies FOLIO_* environment variables over the file values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FOLIO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("FOLIO_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("FOLIO_OUTPUT_DIR"); v != "" {
		config.Storage.OutputDir = v
	}
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	clampConfig(config)
}

var validFormats = map[string]bool{"A3": true, "A4": true, "A5": true, "Letter": true, "Legal": true}

// clampConfig forces every tunable into its documented range.
func clampConfig(c *Config) {
	c.Browser.MaxConcurrent = clampInt(c.Browser.MaxConcurrent, 1, 10)
	c.Browser.DefaultTimeoutMs = clampInt(c.Browser.DefaultTimeoutMs, 1000, 120000)
	if c.Browser.DefaultViewport.Width <= 0 {
		c.Browser.DefaultViewport.Width = 1280
	}
	if c.Browser.DefaultViewport.Height <= 0 {
		c.Browser.DefaultViewport.Height = 800
	}
	c.Queue.MaxSize = clampInt(c.Queue.MaxSize, 1, 1000)
	c.Queue.ProcessingTimeoutMs = clampInt(c.Queue.ProcessingTimeoutMs, 5000, 300000)
	c.Queue.RetryAttempts = clampInt(c.Queue.RetryAttempts, 0, 5)
	c.Queue.RetryDelayMs = clampInt(c.Queue.RetryDelayMs, 100, 30000)
	c.Storage.CleanupAfterHours = clampInt(c.Storage.CleanupAfterHours, 1, 720)
	if !validFormats[c.PDF.DefaultFormat] {
		c.PDF.DefaultFormat = "A4"
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DefaultTimeout returns the navigation timeout as a duration.
func (b *BrowserConfig) DefaultTimeout() time.Duration {
	return time.Duration(b.DefaultTimeoutMs) * time.Millisecond
}

// ProcessingTimeout returns the per-attempt budget as a duration.
func (q *QueueConfig) ProcessingTimeout() time.Duration {
	return time.Duration(q.ProcessingTimeoutMs) * time.Millisecond
}

// RetryDelay returns the inter-attempt sleep as a duration.
func (q *QueueConfig) RetryDelay() time.Duration {
	return time.Duration(q.RetryDelayMs) * time.Millisecond
}

// IsDevelopment reports whether the relaxed development rules apply.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
