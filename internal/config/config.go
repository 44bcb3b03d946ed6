// Package config provides configuration loading for scadad.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables. Nested sections delegate their defaults and validation to the
// packages that own them (logging, channel, browse).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/scadad/internal/browse"
	"github.com/fyrsmithlabs/scadad/internal/channel"
	"github.com/fyrsmithlabs/scadad/internal/logging"
)

// Channel transport modes.
const (
	ChannelModeNATS   = "nats"
	ChannelModeMemory = "memory"
)

// Config holds the complete scadad configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       logging.Config      `koanf:"logging"`
	Channel       ChannelConfig       `koanf:"channel"`
	Browse        browse.Limits       `koanf:"browse"`
}

// ServerConfig holds the ops HTTP server configuration. The MCP surface
// itself runs on stdio; this server only exposes health and metrics.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
}

// ChannelConfig selects and configures the peripheral channel transport.
type ChannelConfig struct {
	// Mode is "nats" (production) or "memory" (development, demos).
	Mode string `koanf:"mode"`

	NATS channel.NATSConfig `koanf:"nats"`
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Channel mode is unknown, or the NATS section is invalid in nats mode
//   - Any nested logging or browse setting is out of range
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	switch c.Channel.Mode {
	case ChannelModeNATS:
		if err := c.Channel.NATS.Validate(); err != nil {
			return fmt.Errorf("channel.nats: %w", err)
		}
	case ChannelModeMemory:
	default:
		return fmt.Errorf("invalid channel mode: %q (must be nats or memory)", c.Channel.Mode)
	}

	if err := c.Browse.Validate(); err != nil {
		return fmt.Errorf("browse: %w", err)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "scadad"
	}

	defLog := logging.NewDefaultConfig()
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defLog.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defLog.Output
	}
	if cfg.Logging.Stacktrace.Level == 0 {
		cfg.Logging.Stacktrace.Level = defLog.Stacktrace.Level
	}

	if cfg.Channel.Mode == "" {
		cfg.Channel.Mode = ChannelModeNATS
	}
	defNATS := channel.DefaultNATSConfig()
	if cfg.Channel.NATS.URL == "" {
		cfg.Channel.NATS.URL = defNATS.URL
	}
	if cfg.Channel.NATS.SubjectPrefix == "" {
		cfg.Channel.NATS.SubjectPrefix = defNATS.SubjectPrefix
	}

	applyBrowseDefaults(&cfg.Browse)
}

// applyBrowseDefaults fills zero-valued browse limits from the package
// defaults so a sparse YAML section only overrides what it names.
func applyBrowseDefaults(l *browse.Limits) {
	def := browse.DefaultLimits()
	if l.SoftLimit == 0 {
		l.SoftLimit = def.SoftLimit
	}
	if l.HardLimit == 0 {
		l.HardLimit = def.HardLimit
	}
	if l.MaxBranchDepth == 0 {
		l.MaxBranchDepth = def.MaxBranchDepth
	}
	if l.MaxRequestedDepth == 0 {
		l.MaxRequestedDepth = def.MaxRequestedDepth
	}
	if l.WideBranchChildren == 0 {
		l.WideBranchChildren = def.WideBranchChildren
	}
	if l.DeepBranchChildren == 0 {
		l.DeepBranchChildren = def.DeepBranchChildren
	}
	if l.PageLimit == 0 {
		l.PageLimit = def.PageLimit
	}
	if l.BatchDeepRemaining == 0 {
		l.BatchDeepRemaining = def.BatchDeepRemaining
	}
	if l.BatchMidRemaining == 0 {
		l.BatchMidRemaining = def.BatchMidRemaining
	}
	if l.ReplyTimeoutSeconds == 0 {
		l.ReplyTimeoutSeconds = def.ReplyTimeoutSeconds
	}
	if l.CacheTTLSeconds == 0 {
		l.CacheTTLSeconds = def.CacheTTLSeconds
	}
	if l.CacheMaxBytes == 0 {
		l.CacheMaxBytes = def.CacheMaxBytes
	}
}
