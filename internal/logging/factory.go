package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// Supported output formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds a Logger writing to w. Text and JSON use log/slog handlers,
// console uses zerolog's human-friendly writer.
func New(format, level string, w io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case "", FormatText, FormatJSON:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(orDefault(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		opts := &slog.HandlerOptions{Level: lvl}
		var h slog.Handler = slog.NewTextHandler(w, opts)
		if strings.EqualFold(format, FormatJSON) {
			h = slog.NewJSONHandler(w, opts)
		}
		return NewSlogLogger(slog.New(h)), nil
	case FormatConsole:
		lvl, err := zerolog.ParseLevel(strings.ToLower(orDefault(level)))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(lvl).With().Timestamp().Logger()
		return NewZerologLogger(zl), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewZerologLogger(zerolog.Nop())
}

func orDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
