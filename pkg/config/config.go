package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Codec    CodecConfig    `mapstructure:"codec"`
	Learner  LearnerConfig  `mapstructure:"learner"`
	Web      WebConfig      `mapstructure:"web"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// CodecConfig holds the defaults used when pre-processing and converting
// captures that arrive without explicit parameters
type CodecConfig struct {
	PauseThreshold int    `mapstructure:"pause_threshold"` // Ticks; an OFF time at or above this ends the capture
	MaxFrames      int    `mapstructure:"max_frames"`      // Frames compared when detecting repetitions
	Normalize      bool   `mapstructure:"normalize"`       // Average frames and snap bit pulses
	CodeType       string `mapstructure:"code_type"`       // "Iluflex Short" or "Iluflex Long"
	Repeat         int    `mapstructure:"repeat"`
	Channel        int    `mapstructure:"channel"`
}

// LearnerConfig holds the serial IR learner configuration
type LearnerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PortPath      string `mapstructure:"port_path"`
	BaudRate      int    `mapstructure:"baud_rate"`
	ReadTimeoutMS int    `mapstructure:"read_timeout_ms"`
	AutoConvert   bool   `mapstructure:"auto_convert"` // Convert and store every capture
	TagPrefix     string `mapstructure:"tag_prefix"`   // Tag for auto-stored captures, suffixed with a sequence number
}

// WebConfig holds HTTP API configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// DatabaseConfig holds command library storage configuration
type DatabaseConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Path             string        `mapstructure:"path"`
	CaptureRetention time.Duration `mapstructure:"capture_retention"` // 0 keeps the capture log forever
	Sync             SyncConfig    `mapstructure:"sync"`
}

// SyncConfig pulls a shared YAML command library into the local one
type SyncConfig struct {
	URL      string        `mapstructure:"url"` // Empty disables syncing
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Set defaults
	setDefaults()

	// Set config file
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/sir-codec")
	}

	// Environment variables, e.g. SIR_LEARNER_PORT_PATH
	viper.SetEnvPrefix("SIR")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - that's also OK
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal to struct
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Codec defaults
	viper.SetDefault("codec.pause_threshold", 40000)
	viper.SetDefault("codec.max_frames", 3)
	viper.SetDefault("codec.normalize", true)
	viper.SetDefault("codec.code_type", CodeTypeShort)
	viper.SetDefault("codec.repeat", 1)
	viper.SetDefault("codec.channel", 1)

	// Learner defaults
	viper.SetDefault("learner.enabled", false)
	viper.SetDefault("learner.port_path", "/dev/ttyUSB0")
	viper.SetDefault("learner.baud_rate", 115200)
	viper.SetDefault("learner.read_timeout_ms", 500)
	viper.SetDefault("learner.auto_convert", true)
	viper.SetDefault("learner.tag_prefix", "capture")

	// Web defaults
	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)

	// Database defaults
	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.path", "sir-codec.db")
	viper.SetDefault("database.capture_retention", "720h")
	viper.SetDefault("database.sync.url", "")
	viper.SetDefault("database.sync.interval", "24h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
