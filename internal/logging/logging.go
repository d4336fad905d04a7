// Package logging provides structured logging using Go's slog package.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Human-readable text on stderr keeps stdout free for command output.
	InitLogger(LevelInfo, FormatText)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel converts a level name (debug, info, warn, error).
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat converts a format name (text, json).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

// InitLogger initializes the global logger with the specified level and
// format, writing to stderr.
func InitLogger(level Level, format Format) {
	InitLoggerWithWriter(os.Stderr, level, format)
}

// InitLoggerWithWriter initializes the global logger writing to w.
func InitLoggerWithWriter(w io.Writer, level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return defaultLogger
}

// Helper functions for common logging patterns

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// FoldStep logs one document folded into the accumulator.
func FoldStep(document string, index int, offsetMs int64, args ...any) {
	allArgs := []any{
		"document", document,
		"index", index,
		"offset_ms", offsetMs,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("fold_step", allArgs...)
}

// AudioProbed logs a resolved audio duration.
func AudioProbed(audioPath string, durationMs int64, args ...any) {
	allArgs := []any{
		"audio", audioPath,
		"duration_ms", durationMs,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("audio_probed", allArgs...)
}

// TierSkipped logs an incoming tier dropped under the skip policy.
func TierSkipped(document, tierID string, args ...any) {
	allArgs := []any{
		"document", document,
		"tier_id", tierID,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Warn("tier_skipped", allArgs...)
}

// TierCreated logs an incoming tier added to the accumulator.
func TierCreated(document, tierID string, args ...any) {
	allArgs := []any{
		"document", document,
		"tier_id", tierID,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("tier_created", allArgs...)
}

// MergeComplete logs the end of a merge run.
func MergeComplete(documents int, totalMs int64, output string, args ...any) {
	allArgs := []any{
		"documents", documents,
		"total_ms", totalMs,
		"output", output,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("merge_complete", allArgs...)
}
