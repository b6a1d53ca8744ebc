// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Parser   ParserConfig   `mapstructure:"parser" yaml:"parser"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`

	// Analyze gets its marching orders from CLI flags, not the config file.
	Analyze AnalyzeConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// ParserConfig tunes layer segmentation and move classification.
// No single heuristic is correct across all slicers, so every threshold
// is exposed here rather than hardcoded.
type ParserConfig struct {
	// MinLayerDeltaZ is the minimum Z increase treated as an implicit
	// layer boundary when no explicit layer markers are present. Guards
	// against spurious splits from Z-hops during retraction/travel.
	MinLayerDeltaZ float64 `mapstructure:"min_layer_delta_z" yaml:"min_layer_delta_z"`
	// TrivialXYDistance is the XY displacement below which an extruding
	// move is not considered real material flow (wipe vs. travel cutoff).
	TrivialXYDistance float64 `mapstructure:"trivial_xy_distance" yaml:"trivial_xy_distance"`
	// WipeWindowE is the net extruder delta (absolute) under which a
	// short E reversal is classified as a wipe.
	WipeWindowE float64 `mapstructure:"wipe_window_e" yaml:"wipe_window_e"`
}

// AnalysisConfig configures the remote analysis service client.
type AnalysisConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey       string        `mapstructure:"api_key" yaml:"-"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
}

// DatabaseConfig holds the report persistence connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// StorageConfig configures the raw-file blob store.
type StorageConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AnalyzeConfig holds settings populated from CLI flags for a single
// analyze run.
type AnalyzeConfig struct {
	File   string
	Output string
	Format string
	Save   bool
	UserID string
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "printdoctor")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Parser --
	// Conservative defaults: half a typical 0.08mm Z-hop, and half a
	// nozzle-width of XY travel.
	v.SetDefault("parser.min_layer_delta_z", 0.04)
	v.SetDefault("parser.trivial_xy_distance", 0.5)
	v.SetDefault("parser.wipe_window_e", 0.2)

	// -- Analysis --
	v.SetDefault("analysis.endpoint", "https://api.printdoctor.dev/v1")
	v.SetDefault("analysis.poll_interval", 2*time.Second)
	v.SetDefault("analysis.poll_timeout", 600*time.Second)
	v.SetDefault("analysis.http_timeout", 30*time.Second)

	// -- Storage --
	v.SetDefault("storage.dir", "printdoctor-uploads")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("analysis.api_key", "PRINTDOCTOR_API_KEY")
	v.BindEnv("database.url", "PRINTDOCTOR_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Parser.MinLayerDeltaZ <= 0 {
		return fmt.Errorf("parser.min_layer_delta_z must be positive")
	}
	if c.Parser.TrivialXYDistance < 0 {
		return fmt.Errorf("parser.trivial_xy_distance must not be negative")
	}
	if c.Parser.WipeWindowE < 0 {
		return fmt.Errorf("parser.wipe_window_e must not be negative")
	}
	if c.Analysis.PollInterval <= 0 {
		return fmt.Errorf("analysis.poll_interval must be a positive duration")
	}
	if c.Analysis.PollTimeout < c.Analysis.PollInterval {
		return fmt.Errorf("analysis.poll_timeout must be at least the poll interval")
	}
	return nil
}
