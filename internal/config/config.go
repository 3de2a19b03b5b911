package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dcmview/internal/errors"

	"github.com/caarlos0/env/v9"
	"github.com/gobwas/glob"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultCacheMaxBytes is the image cache budget (200 MiB)
	DefaultCacheMaxBytes int64 = 200 * 1024 * 1024
	// DefaultMinEntryBytes is charged for images reporting a zero size
	DefaultMinEntryBytes int64 = 4 * 1024
	// DefaultViewportSize is the edge of the square viewport in pixels
	DefaultViewportSize = 512
)

// Config represents the application configuration structure.
type Config struct {
	Cache struct {
		MaxBytes      int64 `yaml:"max_bytes"`       // Budget for decoded images
		MinEntryBytes int64 `yaml:"min_entry_bytes"` // Accounting floor per entry
		PurgeOnDelete bool  `yaml:"purge_on_delete"` // Purge unpinned entries after a delete
		PurgeOnSelect bool  `yaml:"purge_on_select"` // Purge unpinned entries after each navigation
	} `yaml:"cache"`
	Decode struct {
		TimeoutSeconds int `yaml:"timeout_seconds"` // 0 = no timeout
	} `yaml:"decode"`
	Viewer struct {
		Width  int `yaml:"width"`  // Viewport width in pixels
		Height int `yaml:"height"` // Viewport height in pixels
	} `yaml:"viewer"`
	Watch struct {
		Directories  []string `yaml:"directories"`   // Directories watched for new files
		Patterns     []string `yaml:"patterns"`      // Filename globs treated as DICOM
		SniffContent bool     `yaml:"sniff_content"` // Also accept directory entries with a DICOM header
	} `yaml:"watch"`
	Logging struct {
		Debug bool   `yaml:"debug"`
		JSON  bool   `yaml:"json"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Theme struct {
		Name string `yaml:"name"` // Terminal theme name
	} `yaml:"theme"`
}

// envOverrides are read after the yaml file; zero values leave the file's value alone
type envOverrides struct {
	CacheMaxBytes  int64  `env:"DCMVIEW_CACHE_MAX_BYTES"`
	MinEntryBytes  int64  `env:"DCMVIEW_CACHE_MIN_ENTRY_BYTES"`
	DecodeTimeout  int    `env:"DCMVIEW_DECODE_TIMEOUT_SECONDS"`
	Debug          bool   `env:"DCMVIEW_DEBUG"`
	LogFile        string `env:"DCMVIEW_LOG_FILE"`
	Theme          string `env:"DCMVIEW_THEME"`
	WatchDirectory string `env:"DCMVIEW_WATCH_DIR"`
}

// LoadConfig loads configuration from the default location
// (~/.config/dcmview/config.yaml).
func LoadConfig() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(configPath)
}

// DefaultPath returns ~/.config/dcmview/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dcmview", "config.yaml"), nil
}

// LoadConfigFile loads configuration from a specific file path.
// If the file doesn't exist, returns default configuration.
// Environment variables (and a .env file in the working directory) override
// the file.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.NewConfigError("error reading config file", path, errors.ConfigNotFound, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError("error parsing config file", path, errors.InvalidConfig, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	_ = godotenv.Load()

	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return errors.NewConfigError("error parsing environment", "DCMVIEW_*", errors.InvalidConfig, err)
	}
	if o.CacheMaxBytes != 0 {
		cfg.Cache.MaxBytes = o.CacheMaxBytes
	}
	if o.MinEntryBytes != 0 {
		cfg.Cache.MinEntryBytes = o.MinEntryBytes
	}
	if o.DecodeTimeout != 0 {
		cfg.Decode.TimeoutSeconds = o.DecodeTimeout
	}
	if o.Debug {
		cfg.Logging.Debug = true
	}
	if o.LogFile != "" {
		cfg.Logging.File = o.LogFile
	}
	if o.Theme != "" {
		cfg.Theme.Name = o.Theme
	}
	if o.WatchDirectory != "" {
		cfg.Watch.Directories = append(cfg.Watch.Directories, o.WatchDirectory)
	}
	return nil
}

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Cache.MaxBytes = DefaultCacheMaxBytes
	cfg.Cache.MinEntryBytes = DefaultMinEntryBytes
	cfg.Cache.PurgeOnDelete = true
	cfg.Cache.PurgeOnSelect = false

	cfg.Decode.TimeoutSeconds = 0

	cfg.Viewer.Width = DefaultViewportSize
	cfg.Viewer.Height = DefaultViewportSize

	cfg.Watch.Directories = []string{}
	cfg.Watch.Patterns = []string{"*.dcm", "*.DCM", "*.dicom", "IM_*"}
	cfg.Watch.SniffContent = true

	cfg.Theme.Name = "default"

	return cfg
}

// SaveConfig saves the configuration to the specified file.
// It creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.NewConfigError("nil config", "", errors.InvalidConfig, nil)
	}

	if c.Cache.MaxBytes <= 0 {
		return errors.NewConfigError("cache budget must be positive", "cache.max_bytes", errors.InvalidConfig, nil)
	}
	if c.Cache.MinEntryBytes <= 0 {
		return errors.NewConfigError("minimum entry size must be positive", "cache.min_entry_bytes", errors.InvalidConfig, nil)
	}
	if c.Cache.MinEntryBytes > c.Cache.MaxBytes {
		return errors.NewConfigError("minimum entry size exceeds cache budget", "cache.min_entry_bytes", errors.InvalidConfig, nil)
	}
	if c.Decode.TimeoutSeconds < 0 {
		return errors.NewConfigError("decode timeout must be >= 0 seconds", "decode.timeout_seconds", errors.InvalidConfig, nil)
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return errors.NewConfigError("viewport must have a positive size", "viewer", errors.InvalidConfig, nil)
	}

	for i, pattern := range c.Watch.Patterns {
		if pattern == "" {
			return errors.NewConfigError(fmt.Sprintf("pattern %d is empty", i), "watch.patterns", errors.InvalidConfig, nil)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return errors.NewConfigError(fmt.Sprintf("pattern %d does not compile", i), "watch.patterns", errors.InvalidConfig, err)
		}
	}
	for _, dir := range c.Watch.Directories {
		if dir == "" {
			return errors.NewConfigError("watch directory path cannot be empty", "watch.directories", errors.InvalidConfig, nil)
		}
	}

	if !validTheme(c.Theme.Name) {
		return errors.NewConfigError("unknown theme: "+c.Theme.Name, "theme.name", errors.InvalidConfig, nil)
	}

	return nil
}

// DecodeTimeout returns the decode timeout, 0 meaning unbounded
func (c *Config) DecodeTimeout() time.Duration {
	return time.Duration(c.Decode.TimeoutSeconds) * time.Second
}

// New creates a new configuration instance with default values.
func New() *Config {
	return defaultConfig()
}

// NewTestConfig creates a configuration instance for testing purposes.
func NewTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Cache.MaxBytes = 1024 * 1024
	cfg.Cache.MinEntryBytes = 1024
	cfg.Cache.PurgeOnDelete = false
	return cfg
}

// GetTheme returns a predefined terminal theme by name.
// If the theme doesn't exist, returns the default theme.
func GetTheme(name string) map[string]string {
	themes := map[string]map[string]string{
		"default": {
			"primary":  "213", // Purple
			"success":  "114", // Green
			"warning":  "220", // Yellow
			"error":    "196", // Red
			"info":     "39",  // Blue
			"emphasis": "212", // Light Pink
			"border":   "213", // Purple
		},
		"dark": {
			"primary":  "105",
			"success":  "78",
			"warning":  "214",
			"error":    "160",
			"info":     "33",
			"emphasis": "147",
			"border":   "105",
		},
		"light": {
			"primary":  "135",
			"success":  "150",
			"warning":  "222",
			"error":    "210",
			"info":     "117",
			"emphasis": "219",
			"border":   "135",
		},
		"monochrome": {
			"primary":  "245",
			"success":  "252",
			"warning":  "241",
			"error":    "232",
			"info":     "248",
			"emphasis": "255",
			"border":   "245",
		},
	}

	if theme, exists := themes[name]; exists {
		return theme
	}

	return themes["default"]
}

// ListThemes returns a list of available theme names.
func ListThemes() []string {
	return []string{"default", "dark", "light", "monochrome"}
}

func validTheme(name string) bool {
	for _, t := range ListThemes() {
		if t == name {
			return true
		}
	}
	return false
}
