// Package config loads uavcheck settings from defaults, a YAML file and
// UAVCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, as in UAVCHECK_BACKEND.
const EnvPrefix = "UAVCHECK"

// Config represents the application configuration.
type Config struct {
	Backend string        `mapstructure:"backend"`
	GPU     GPUConfig     `mapstructure:"gpu"`
	Shader  ShaderConfig  `mapstructure:"shader"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Report  ReportConfig  `mapstructure:"report"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type GPUConfig struct {
	MemoryBudgetMB int           `mapstructure:"memory_budget_mb"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout"`
	Workers        int           `mapstructure:"workers"`
}

type ShaderConfig struct {
	// Path is the kernel source. Empty selects the embedded kernel.
	Path       string `mapstructure:"path"`
	EntryPoint string `mapstructure:"entry_point"`
	Strict     bool   `mapstructure:"strict"`
}

type CacheConfig struct {
	// Dir enables the on-disk tier when non-empty.
	Dir     string `mapstructure:"dir"`
	Codec   string `mapstructure:"codec"`
	Entries int    `mapstructure:"entries"`
}

type ReportConfig struct {
	Dump        bool   `mapstructure:"dump"`
	FailOnError bool   `mapstructure:"fail_on_error"`
	Only        string `mapstructure:"only"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Valid values for enumerated settings.
var (
	Backends = []string{"cpu", "vulkan", "noop"}
	Codecs   = []string{"zstd", "lz4", "none"}
	Levels   = []string{"debug", "info", "warn", "error"}
)

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Backend: "vulkan",
		GPU: GPUConfig{
			WaitTimeout: 5 * time.Second,
		},
		Shader: ShaderConfig{
			EntryPoint: "CSMain",
			Strict:     true,
		},
		Cache: CacheConfig{
			Codec:   "zstd",
			Entries: 64,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Load loads configuration from file, environment, and defaults.
//
// An empty cfgFile searches $HOME/.uavcheck and the working directory for
// config.yaml; a missing file there is not an error. flags maps config keys
// to command-line flags; a flag that was set overrides every other source.
func Load(cfgFile string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	for key, f := range flags {
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("binding flag for %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".uavcheck"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(Backends, c.Backend) {
		return fmt.Errorf("backend must be one of: %v", Backends)
	}
	if c.GPU.MemoryBudgetMB < 0 {
		return errors.New("gpu.memory_budget_mb must not be negative")
	}
	if c.GPU.WaitTimeout < 0 {
		return errors.New("gpu.wait_timeout must not be negative")
	}
	if c.GPU.Workers < 0 {
		return errors.New("gpu.workers must not be negative")
	}
	if c.Shader.EntryPoint == "" {
		return errors.New("shader.entry_point must not be empty")
	}
	if !slices.Contains(Codecs, c.Cache.Codec) {
		return fmt.Errorf("cache.codec must be one of: %v", Codecs)
	}
	if c.Cache.Entries < 0 {
		return errors.New("cache.entries must not be negative")
	}
	if !slices.Contains(Levels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", Levels)
	}
	return nil
}

// ExpandPaths expands ~ and environment variables in paths.
func (c *Config) ExpandPaths() {
	c.Shader.Path = expandPath(c.Shader.Path)
	c.Cache.Dir = expandPath(c.Cache.Dir)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend", cfg.Backend)

	v.SetDefault("gpu.memory_budget_mb", cfg.GPU.MemoryBudgetMB)
	v.SetDefault("gpu.wait_timeout", cfg.GPU.WaitTimeout)
	v.SetDefault("gpu.workers", cfg.GPU.Workers)

	v.SetDefault("shader.path", cfg.Shader.Path)
	v.SetDefault("shader.entry_point", cfg.Shader.EntryPoint)
	v.SetDefault("shader.strict", cfg.Shader.Strict)

	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.codec", cfg.Cache.Codec)
	v.SetDefault("cache.entries", cfg.Cache.Entries)

	v.SetDefault("report.dump", cfg.Report.Dump)
	v.SetDefault("report.fail_on_error", cfg.Report.FailOnError)
	v.SetDefault("report.only", cfg.Report.Only)

	v.SetDefault("logging.level", cfg.Logging.Level)
}
