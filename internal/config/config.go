// Package config provides configuration management for atlaspack.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmgilman/atlaspack/internal/options"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/atlaspack"
	DefaultConfigFile = "config.yaml"
	DefaultDataDir    = ".local/share/atlaspack"
)

// DefaultImage is the OCI image the builder binary is installed from.
const DefaultImage = "ghcr.io/jmgilman/atlasbuilder:latest"

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey       = errors.New("invalid configuration key")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidValue     = errors.New("invalid configuration value")
	ErrNoEditor         = errors.New("$EDITOR environment variable not set")
)

// validLogFormats contains the allowed log format names (unexported).
var validLogFormats = map[string]bool{
	"text":   true,
	"json":   true,
	"logfmt": true,
}

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full atlaspack configuration.
type Config struct {
	Binary  BinaryConfig   `mapstructure:"binary" validate:"required" yaml:"binary"`
	Runner  RunnerConfig   `mapstructure:"runner" yaml:"runner"`
	Storage StorageConfig  `mapstructure:"storage" validate:"required" yaml:"storage"`
	Log     LogConfig      `mapstructure:"log" yaml:"log"`
	Options map[string]any `mapstructure:"options" yaml:"options"`
}

// BinaryConfig holds the atlas builder location and install source.
type BinaryConfig struct {
	Root     string `mapstructure:"root" validate:"required" yaml:"root"`
	Image    string `mapstructure:"image" validate:"required" yaml:"image"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// RunnerConfig holds process execution settings.
type RunnerConfig struct {
	TempDir   string        `mapstructure:"temp_dir" validate:"omitempty,dir" yaml:"temp_dir"`
	WaitDelay time.Duration `mapstructure:"wait_delay" validate:"gte=0" yaml:"wait_delay"`
}

// StorageConfig holds storage location configuration.
type StorageConfig struct {
	Logs     string `mapstructure:"logs" validate:"required" yaml:"logs"`
	Catalog  string `mapstructure:"catalog" validate:"required" yaml:"catalog"`
	KeepRuns int    `mapstructure:"keep_runs" validate:"gte=0" yaml:"keep_runs"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json logfmt" yaml:"format"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// OptionOverrides returns the configured builder option overrides.
func (c *Config) OptionOverrides() (options.Options, error) {
	o, err := options.FromMap(c.Options)
	if err != nil {
		return options.Options{}, fmt.Errorf("config options: %w", err)
	}
	return o, nil
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configPath := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("ATLASPACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// BindEnv only fails when called with zero arguments.
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("binary.root", "ATLASPACK_BINARY_ROOT")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("binary.image", "ATLASPACK_IMAGE")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("runner.temp_dir", "ATLASPACK_TEMP_DIR")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("storage.logs", "ATLASPACK_LOG_DIR")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("log.format", "ATLASPACK_LOG_FORMAT")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}

	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("binary.root", "~/.local/share/atlaspack/bin")
	l.v.SetDefault("binary.image", DefaultImage)
	l.v.SetDefault("binary.insecure", false)
	l.v.SetDefault("runner.temp_dir", "")
	l.v.SetDefault("runner.wait_delay", "5s")
	l.v.SetDefault("storage.logs", "~/.local/share/atlaspack/logs")
	l.v.SetDefault("storage.catalog", "~/.local/share/atlaspack/runs.json")
	l.v.SetDefault("storage.keep_runs", 50)
	l.v.SetDefault("log.format", "text")
	l.v.SetDefault("options", map[string]any{})
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Binary.Root = l.expandPath(cfg.Binary.Root)
	cfg.Runner.TempDir = l.expandPath(cfg.Runner.TempDir)
	cfg.Storage.Logs = l.expandPath(cfg.Storage.Logs)
	cfg.Storage.Catalog = l.expandPath(cfg.Storage.Catalog)

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// Set sets a configuration value by dot-notation key.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	switch key {
	case "log.format":
		if value != "" && !validLogFormats[value] {
			return fmt.Errorf("%w: %s (valid: text, json, logfmt)", ErrInvalidLogFormat, value)
		}
	case "runner.wait_delay":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
	}

	l.v.Set(key, value)
	return l.v.WriteConfig()
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	if validKeys[key] {
		return nil
	}

	// options.<name> entries are free-form; the builder decides what it accepts.
	if name, ok := strings.CutPrefix(key, "options."); ok && name != "" && !strings.Contains(name, ".") {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}

// IsValidLogFormat reports whether name is an accepted log format.
func IsValidLogFormat(name string) bool {
	return validLogFormats[name]
}
