package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	zl zerolog.Logger

	// fields bound by With, applied before per-call fields
	fields []Field
}

type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time format for log messages

	// Rotation settings, applied when Output is a file path.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    defaultInt(cfg.MaxSizeMB, 100),
			MaxBackups: defaultInt(cfg.MaxBackups, 3),
			MaxAge:     defaultInt(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	// Console format is for local runs, everything else stays JSON.
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	// skip count covers the Debug/Info wrapper plus emit
	logger := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: logger}, nil
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{zl: l.zl, fields: merged}
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, field := range l.fields {
		field(event)
	}
	for _, field := range fields {
		field(event)
	}
	event.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.emit(l.zl.Fatal(), msg, fields)
}

// Field appends one typed key to a pending log event. Fields are built by
// the constructors below, so call sites never touch zerolog directly.
type Field func(event *zerolog.Event)

func String(key, value string) Field {
	return func(event *zerolog.Event) { event.Str(key, value) }
}

func Strings(key string, value []string) Field {
	joined := strings.Join(value, ", ")
	return func(event *zerolog.Event) { event.Str(key, joined) }
}

func Int(key string, value int) Field {
	return func(event *zerolog.Event) { event.Int(key, value) }
}

func Int64(key string, value int64) Field {
	return func(event *zerolog.Event) { event.Int64(key, value) }
}

func Float64(key string, value float64) Field {
	return func(event *zerolog.Event) { event.Float64(key, value) }
}

func Bool(key string, value bool) Field {
	return func(event *zerolog.Event) { event.Bool(key, value) }
}

// Duration logs milliseconds; keys follow the *_ms convention.
func Duration(key string, value time.Duration) Field {
	return func(event *zerolog.Event) { event.Int64(key, value.Milliseconds()) }
}

func Error(err error) Field {
	return func(event *zerolog.Event) { event.Err(err) }
}

func Any(key string, value interface{}) Field {
	return func(event *zerolog.Event) { event.Interface(key, value) }
}
