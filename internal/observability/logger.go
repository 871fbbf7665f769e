package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	return NewLoggerWithWriter(cfg, output)
}

// NewLoggerWithWriter creates a logger that writes to w, ignoring cfg.Output.
// The CLI uses it to keep logs on stderr while results go to stdout.
func NewLoggerWithWriter(cfg LoggingConfig, w io.Writer) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	format := strings.ToLower(cfg.Format)
	if format == "console" || format == "pretty" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	logger := zerolog.New(w).With().Timestamp()
	if cfg.AddSource {
		logger = logger.Caller()
	}

	log := logger.Logger()

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return log.Level(level)
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithSearchContext adds pipeline search fields to a logger.
func WithSearchContext(logger zerolog.Logger, searchID, query string) zerolog.Logger {
	return logger.With().
		Str("search_id", searchID).
		Str("query", query).
		Logger()
}

// WithProviderContext adds LLM provider fields to a logger.
func WithProviderContext(logger zerolog.Logger, provider, model string) zerolog.Logger {
	return logger.With().
		Str("provider", provider).
		Str("model", model).
		Logger()
}

// WithArticleContext adds the PubMed identifier of an article to a logger.
func WithArticleContext(logger zerolog.Logger, pmid string) zerolog.Logger {
	return logger.With().
		Str("pmid", pmid).
		Logger()
}

// FromContext returns logger enriched with the identifiers stored in ctx.
func FromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	lc := logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lc = lc.Str("request_id", id)
	}
	if id := SearchIDFromContext(ctx); id != "" {
		lc = lc.Str("search_id", id)
	}
	return lc.Logger()
}
