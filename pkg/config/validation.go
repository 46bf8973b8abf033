package config

import (
	"fmt"
	"strings"
	"time"
)

// Code types accepted in codec.code_type
const (
	CodeTypeShort = "Iluflex Short"
	CodeTypeLong  = "Iluflex Long"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// validate validates the configuration
func validate(cfg *Config) error {
	// Validate codec config
	if cfg.Codec.PauseThreshold <= 1000 || cfg.Codec.PauseThreshold >= 80000 {
		return fmt.Errorf("codec.pause_threshold must be between 1001 and 79999")
	}
	if cfg.Codec.MaxFrames < 1 || cfg.Codec.MaxFrames > 4 {
		return fmt.Errorf("codec.max_frames must be between 1 and 4")
	}
	if cfg.Codec.CodeType != CodeTypeShort && cfg.Codec.CodeType != CodeTypeLong {
		return fmt.Errorf("codec.code_type must be %q or %q", CodeTypeShort, CodeTypeLong)
	}
	if cfg.Codec.Repeat < 1 || cfg.Codec.Repeat > 3 {
		return fmt.Errorf("codec.repeat must be between 1 and 3")
	}
	if cfg.Codec.Channel < 1 || cfg.Codec.Channel > 126 {
		return fmt.Errorf("codec.channel must be between 1 and 126")
	}

	// Validate learner config
	if cfg.Learner.Enabled {
		if cfg.Learner.PortPath == "" {
			return fmt.Errorf("learner.port_path is required when the learner is enabled")
		}
		if cfg.Learner.BaudRate <= 0 {
			return fmt.Errorf("learner.baud_rate must be positive")
		}
		if cfg.Learner.ReadTimeoutMS < 0 {
			return fmt.Errorf("learner.read_timeout_ms must not be negative")
		}
		if cfg.Learner.AutoConvert && !cfg.Database.Enabled {
			return fmt.Errorf("learner.auto_convert requires database.enabled")
		}
	}

	// Validate web config
	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
	}

	// Validate database config
	if cfg.Database.Enabled && cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required when the database is enabled")
	}
	if cfg.Database.CaptureRetention < 0 {
		return fmt.Errorf("database.capture_retention must not be negative")
	}
	if cfg.Database.Sync.URL != "" {
		if !cfg.Database.Enabled {
			return fmt.Errorf("database.sync.url requires database.enabled")
		}
		if !strings.HasPrefix(cfg.Database.Sync.URL, "http://") && !strings.HasPrefix(cfg.Database.Sync.URL, "https://") {
			return fmt.Errorf("database.sync.url must be an http or https URL")
		}
		if cfg.Database.Sync.Interval < time.Minute {
			return fmt.Errorf("database.sync.interval must be at least 1m")
		}
	}

	// Validate logging config
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	// Validate metrics config
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port < 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 0 and 65535")
		}
		if !strings.HasPrefix(cfg.Metrics.Prometheus.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
	}

	return nil
}
