package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the compiler configuration
type Config struct {
	// Parser limits
	Limits struct {
		MaxLiterals     int `toml:"max_literals"`
		MaxRegisters    int `toml:"max_registers"`
		MaxStackDepth   int `toml:"max_stack_depth"`
		MaxCodeSize     int `toml:"max_code_size"`
		MaxIdentLength  int `toml:"max_ident_length"`
		MaxStringLength int `toml:"max_string_length"`
	} `toml:"limits"`

	// Display settings
	Display struct {
		ShowLiterals  bool `toml:"show_literals"`
		ShowHeader    bool `toml:"show_header"`
		BytesPerLine  int  `toml:"bytes_per_line"`
		AnnotatePools bool `toml:"annotate_pools"`
	} `toml:"display"`

	// Snapshot settings
	Snapshot struct {
		CompressionLevel int  `toml:"compression_level"` // 1 fastest, 4 best
		Verify           bool `toml:"verify_on_load"`
	} `toml:"snapshot"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Limit defaults match a small embedded target
	cfg.Limits.MaxLiterals = 511
	cfg.Limits.MaxRegisters = 128
	cfg.Limits.MaxStackDepth = 1024
	cfg.Limits.MaxCodeSize = 65535
	cfg.Limits.MaxIdentLength = 255
	cfg.Limits.MaxStringLength = 65535

	// Display defaults
	cfg.Display.ShowLiterals = true
	cfg.Display.ShowHeader = true
	cfg.Display.BytesPerLine = 16
	cfg.Display.AnnotatePools = true

	// Snapshot defaults
	cfg.Snapshot.CompressionLevel = 2
	cfg.Snapshot.Verify = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\picojs\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "picojs")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/picojs/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "picojs")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- path comes from config resolution
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Validate checks the configuration ranges the byte-code format can
// represent
func (c *Config) Validate() error {
	if c.Limits.MaxLiterals < 1 || c.Limits.MaxLiterals > 32767 {
		return fmt.Errorf("max_literals must be between 1 and 32767, got %d", c.Limits.MaxLiterals)
	}
	if c.Limits.MaxRegisters < 1 || c.Limits.MaxRegisters > c.Limits.MaxLiterals {
		return fmt.Errorf("max_registers must be between 1 and max_literals, got %d", c.Limits.MaxRegisters)
	}
	if c.Limits.MaxStackDepth < 16 || c.Limits.MaxStackDepth > 65500 {
		return fmt.Errorf("max_stack_depth must be between 16 and 65500, got %d", c.Limits.MaxStackDepth)
	}
	if c.Limits.MaxCodeSize < 4096 || c.Limits.MaxCodeSize > 16777215 {
		return fmt.Errorf("max_code_size must be between 4096 and 16777215, got %d", c.Limits.MaxCodeSize)
	}
	if c.Limits.MaxStringLength < 1 || c.Limits.MaxStringLength > 65535 {
		return fmt.Errorf("max_string_length must be between 1 and 65535, got %d", c.Limits.MaxStringLength)
	}
	if c.Limits.MaxIdentLength < 1 || c.Limits.MaxIdentLength > c.Limits.MaxStringLength {
		return fmt.Errorf("max_ident_length must be between 1 and max_string_length, got %d", c.Limits.MaxIdentLength)
	}
	if c.Snapshot.CompressionLevel < 1 || c.Snapshot.CompressionLevel > 4 {
		return fmt.Errorf("compression_level must be between 1 and 4, got %d", c.Snapshot.CompressionLevel)
	}
	return nil
}
