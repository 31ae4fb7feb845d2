// Package config provides Viper-based configuration loading for the converter.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
)

// ConvertConfig holds the conversion settings.
type ConvertConfig struct {
	// Src is the source save root.
	Src string `mapstructure:"src"`
	// Dst is the destination save root. It must differ from Src.
	Dst string `mapstructure:"dst"`
	// FallbackSrc is the fallback save of the dual-source converters.
	FallbackSrc string `mapstructure:"fallback_src"`
	// Converter names the conversion: "anvil2cc", "cc2cc", "relocating" or
	// "merging".
	Converter string `mapstructure:"converter"`
	// Parallelism is the size of each worker pool; 0 uses every CPU.
	Parallelism        int `mapstructure:"parallelism"`
	ConvertQueueFactor int `mapstructure:"convert_queue_factor"`
	WriteQueueFactor   int `mapstructure:"write_queue_factor"`
	SectorSize         int `mapstructure:"sector_size"`
	RegionCacheSize    int `mapstructure:"region_cache_size"`
	// OnError is "ask" or one of the error decisions.
	OnError string `mapstructure:"on_error"`
	// FixMissingTileEntities makes anvil2cc add the tile entities vanilla
	// expects for blocks that lack one.
	FixMissingTileEntities bool `mapstructure:"fix_missing_tile_entities"`
}

// TasksConfig selects the edit-task list.
type TasksConfig struct {
	// File is a .txt line script, a .yaml/.yml task list, or a .lua script.
	// Empty means no tasks.
	File             string `mapstructure:"file"`
	InstructionLimit int    `mapstructure:"instruction_limit"`
	// Undo replaces the tasks by their inverses, which copy every box the
	// tasks wrote from the source save, typically a pre-edit backup.
	Undo bool `mapstructure:"undo"`
}

// Format returns the task file format selected by File's extension.
func (t TasksConfig) Format() string {
	switch strings.ToLower(filepath.Ext(t.File)) {
	case ".txt":
		return "script"
	case ".yaml", ".yml":
		return "yaml"
	case ".lua":
		return "lua"
	}
	return ""
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address of /metrics; empty disables the endpoint.
	Addr string `mapstructure:"addr"`
	// PollInterval is how often progress is sampled for metrics and logs.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Config is the top-level application configuration.
type Config struct {
	Convert    ConvertConfig     `mapstructure:"convert"`
	Tasks      TasksConfig       `mapstructure:"tasks"`
	Dimensions []codec.Dimension `mapstructure:"dimensions"`
	Logging    LoggingConfig     `mapstructure:"logging"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
}

// DimensionSet builds the configured dimensions.
func (c Config) DimensionSet() (*codec.Dimensions, error) {
	return codec.NewDimensions(c.Dimensions...)
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateConvert(c.Convert); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTasks(c.Tasks); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := c.DimensionSet(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Metrics.PollInterval <= 0 {
		errs = append(errs, fmt.Sprintf("metrics.poll_interval must be positive, got %s", c.Metrics.PollInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

var validConverters = map[string]bool{"anvil2cc": true, "cc2cc": true, "relocating": true, "merging": true}

func validateConvert(c ConvertConfig) error {
	var errs []string
	if c.Src == "" {
		errs = append(errs, "convert.src must not be empty")
	}
	if c.Dst == "" {
		errs = append(errs, "convert.dst must not be empty")
	}
	if c.Src != "" && filepath.Clean(c.Src) == filepath.Clean(c.Dst) {
		errs = append(errs, "convert.dst must differ from convert.src")
	}
	if !validConverters[c.Converter] {
		errs = append(errs, fmt.Sprintf("convert.converter must be one of [anvil2cc, cc2cc, relocating, merging], got %q", c.Converter))
	}
	if c.Converter == "merging" && c.FallbackSrc == "" {
		errs = append(errs, "convert.fallback_src must be set for the merging converter")
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Sprintf("convert.parallelism must be >= 0, got %d", c.Parallelism))
	}
	if c.ConvertQueueFactor < 1 {
		errs = append(errs, fmt.Sprintf("convert.convert_queue_factor must be >= 1, got %d", c.ConvertQueueFactor))
	}
	if c.WriteQueueFactor < 1 {
		errs = append(errs, fmt.Sprintf("convert.write_queue_factor must be >= 1, got %d", c.WriteQueueFactor))
	}
	if c.SectorSize < 64 {
		errs = append(errs, fmt.Sprintf("convert.sector_size must be >= 64, got %d", c.SectorSize))
	}
	if c.RegionCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("convert.region_cache_size must be >= 1, got %d", c.RegionCacheSize))
	}
	if c.OnError != "ask" {
		if _, err := codec.ParseDecision(c.OnError); err != nil {
			errs = append(errs, fmt.Sprintf("convert.on_error must be one of [ask, ignore, ignore_all, stop_discard, stop_keep], got %q", c.OnError))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTasks(t TasksConfig) error {
	var errs []string
	if t.File != "" && t.Format() == "" {
		errs = append(errs, fmt.Sprintf("tasks.file must end in .txt, .yaml, .yml or .lua, got %q", t.File))
	}
	if t.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("tasks.instruction_limit must be >= 0, got %d", t.InstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path is empty or names a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string, overrides ...func(*viper.Viper)) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	for _, o := range overrides {
		o(v)
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults, CONVERTER_ environment
// overrides, and the file at path (if any) read in.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()

	// Environment variable overrides with CONVERTER_ prefix
	v.SetEnvPrefix("CONVERTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("convert.src", "")
	v.SetDefault("convert.dst", "")
	v.SetDefault("convert.fallback_src", "")
	v.SetDefault("convert.converter", "cc2cc")
	v.SetDefault("convert.parallelism", 0)
	v.SetDefault("convert.convert_queue_factor", 32)
	v.SetDefault("convert.write_queue_factor", 8)
	v.SetDefault("convert.sector_size", 512)
	v.SetDefault("convert.region_cache_size", 256)
	v.SetDefault("convert.on_error", "ask")
	v.SetDefault("convert.fix_missing_tile_entities", true)

	v.SetDefault("tasks.file", "")
	v.SetDefault("tasks.instruction_limit", 1_000_000)
	v.SetDefault("tasks.undo", false)

	v.SetDefault("dimensions", []map[string]any{
		{"name": codec.Overworld.Name, "directory": codec.Overworld.Directory},
		{"name": codec.Nether.Name, "directory": codec.Nether.Directory},
		{"name": codec.End.Name, "directory": codec.End.Directory},
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.poll_interval", "1s")
}
