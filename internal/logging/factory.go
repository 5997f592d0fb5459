package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
)

// New builds a Logger for the given backend ("slog" or "zap").
// format selects json or text/console output.
func New(backend, level, format, service string) (Logger, error) {
	switch strings.ToLower(backend) {
	case "", "slog":
		return newSlog(os.Stderr, level, format, service)
	case "zap":
		l, err := BuildZap(level, format, service)
		if err != nil {
			return nil, err
		}
		return NewZapLogger(l), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// NewNop returns a Logger that discards everything.
func NewNop() Logger {
	return NewZapLogger(zap.NewNop())
}

func newSlog(w io.Writer, level, format, service string) (Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "text" || format == "console" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(h)
	if service != "" {
		l = l.With("service", service)
	}
	return NewSlogLogger(l), nil
}
