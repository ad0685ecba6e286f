package logging

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Logger is the structured logger shared by the CLI host and the pipeline wrapper.
type Logger interface {
	Debug(component, msg string, fields ...any)
	Info(component, msg string, fields ...any)
	Warn(component, msg string, fields ...any)
	Error(component, msg string, fields ...any)
	Event(ctx context.Context, event string, fields map[string]any)
	Close() error
}

type loggerKey struct{}

func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// From returns the context logger, or a no-op logger
func From(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return &noopLogger{}
}

func NewLogger(cfg Config) (Logger, error) {
	if cfg.Format == "" || cfg.Format == FormatOff {
		return &noopLogger{}, nil
	}

	var w io.Writer
	var closer io.Closer

	if cfg.Output == "" || cfg.Output == "stderr" {
		w = os.Stderr
	} else {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output: %w", err)
		}
		w = f
		closer = f
	}

	switch cfg.Format {
	case FormatJSONL:
		return &jsonlLogger{
			writer:   w,
			closer:   closer,
			minLevel: levelPriority(cfg.Level),
		}, nil
	case FormatText:
		return &textLogger{
			writer:   w,
			closer:   closer,
			minLevel: levelPriority(cfg.Level),
		}, nil
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("unknown log format %q (use jsonl, text or off)", cfg.Format)
	}
}

type noopLogger struct{}

func (n *noopLogger) Debug(component, msg string, fields ...any)                     {}
func (n *noopLogger) Info(component, msg string, fields ...any)                      {}
func (n *noopLogger) Warn(component, msg string, fields ...any)                      {}
func (n *noopLogger) Error(component, msg string, fields ...any)                     {}
func (n *noopLogger) Event(ctx context.Context, event string, fields map[string]any) {}
func (n *noopLogger) Close() error                                                   { return nil }
