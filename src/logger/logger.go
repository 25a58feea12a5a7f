package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// logLevels maps log level names to slog.Level values.
var logLevels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel resolves a level name, case-insensitively.
func ParseLevel(name string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("invalid log level: %s", name)
	}
	return level, nil
}

// Init installs the default logger. Format is "text" (tinted, colored when
// w is a terminal) or "json".
func Init(w io.Writer, level slog.Level, format string, color bool) error {
	switch strings.ToLower(format) {
	case "text":
		SetColoredLogger(w, level, !color)
	case "json":
		SetJSONLogger(w, level)
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}
	return nil
}

// ColorEnabled reports whether output to f should be colored.
func ColorEnabled(f *os.File, forceNoColor bool) bool {
	return !forceNoColor && os.Getenv("NO_COLOR") == "" && isatty.IsTerminal(f.Fd())
}

// Colorable adapts f for ANSI color output.
func Colorable(f *os.File) io.Writer {
	return colorable.NewColorable(f)
}

func SetColoredLogger(w io.Writer, level slog.Level, noColor bool) {
	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    noColor,
		}),
	))
}

func SetJSONLogger(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource: level == slog.LevelDebug,
			Level:     level,
		}),
	))
}

// Error returns the attribute used for errors in log records.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
