package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level      zapcore.Level     `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     string            `koanf:"output"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
}

// CallerConfig controls caller information in logs.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig controls stacktrace inclusion.
type StacktraceConfig struct {
	Level zapcore.Level `koanf:"level"`
}

// NewDefaultConfig returns config with production-ready defaults. Output is
// stderr so the MCP stdio transport keeps stdout to itself.
func NewDefaultConfig() *Config {
	return &Config{
		Level:      zapcore.InfoLevel,
		Format:     "json",
		Output:     "stderr",
		Stacktrace: StacktraceConfig{Level: zapcore.ErrorLevel},
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format %q: must be json or console", c.Format)
	}
	switch c.Output {
	case "stderr", "stdout":
	default:
		return fmt.Errorf("invalid output %q: must be stderr or stdout", c.Output)
	}
	if c.Caller.Skip < 0 {
		return fmt.Errorf("caller skip cannot be negative: %d", c.Caller.Skip)
	}
	return nil
}
