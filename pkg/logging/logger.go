// Package logging configures zerolog for the storage, the page cache
// annotator and the cache-edge server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/memcache-storage/pkg/settings"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromSettings builds a Config from the logging section of the
// settings file. An empty level keeps the default.
func ConfigFromSettings(s settings.Logging) Config {
	cfg := DefaultConfig()
	if s.Level != "" {
		cfg.Level = LogLevel(s.Level)
	}
	cfg.Pretty = s.Pretty
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Persistent handle reuse (server registration skipped)
//   - Delete of an absent key
//   - Cache-Control rewrites by the page cache annotator
//
// Info: Normal operation events
//   - No memcache settings (local environments without a cluster)
//   - Memcache driver not compiled in
//   - Servers registered
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Failed get/set/delete (the caller sees a miss or false)
//   - Server ejected from the ring after repeated failures
//   - Values that cannot be JSON encoded or decoded
//
// Error: Error conditions requiring attention
//   - Memcache settings without servers
//   - Invalid server addresses
//   - Server registration failure (storage stays disconnected)
//
// Context Fields:
//   - component: memcache, pagecache, cache-edge
//   - driver: registered driver name
//   - key: cache key of a failed operation
//   - result: driver diagnostic message
//   - server: host:port of an ejected server
//   - persistent_id: shared handle id
//   - path, cache_control: annotated response
