// Package logging provides the leveled logger injected into the scan pipeline.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging capability handed to every component.
// Implementations must be safe to call from the spinner and upload goroutines.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	// With returns a logger that attaches key=value to every entry.
	With(key, value string) Logger
}

// Levels lists the accepted --log-level values, lowest first.
var Levels = []string{"debug", "info", "warn", "error"}

// Options configures a zerolog-backed Logger.
type Options struct {
	Level   string
	NoColor bool
	// Timestamps adds a kitchen-format time column to console output.
	Timestamps bool
}

type zlogger struct {
	l zerolog.Logger
}

// ParseLevel converts a --log-level value into a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		return zerolog.InfoLevel, nil
	}
	if normalized == "warning" {
		normalized = "warn"
	}
	for _, l := range Levels {
		if normalized == l {
			return zerolog.ParseLevel(normalized)
		}
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level %q: must be one of %v", level, Levels)
}

// New creates a console logger writing to w. The minimum level is fixed for
// the lifetime of the returned logger.
func New(w io.Writer, opts Options) (Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    opts.NoColor,
		TimeFormat: time.Kitchen,
	}
	if !opts.Timestamps {
		console.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(console).Level(level).With()
	if opts.Timestamps {
		ctx = ctx.Timestamp()
	}
	return &zlogger{l: ctx.Logger()}, nil
}

// NewJSON creates a logger that emits one JSON object per entry. Used when
// output is consumed by machines (--format json).
func NewJSON(w io.Writer, level string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return &zlogger{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zlogger{l: zerolog.Nop()}
}

func (z *zlogger) Debugf(format string, args ...interface{}) {
	z.l.Debug().Msgf(format, args...)
}

func (z *zlogger) Infof(format string, args ...interface{}) {
	z.l.Info().Msgf(format, args...)
}

func (z *zlogger) Warnf(format string, args ...interface{}) {
	z.l.Warn().Msgf(format, args...)
}

func (z *zlogger) Errorf(format string, args ...interface{}) {
	z.l.Error().Msgf(format, args...)
}

func (z *zlogger) With(key, value string) Logger {
	return &zlogger{l: z.l.With().Str(key, value).Logger()}
}

// LogOperation logs the start of an operation at debug level and returns a
// function that logs its completion with the elapsed time.
func LogOperation(logger Logger, operation string) func() {
	start := time.Now()
	logger.Debugf("%s started", operation)
	return func() {
		logger.Debugf("%s completed in %s", operation, time.Since(start).Round(time.Millisecond))
	}
}
