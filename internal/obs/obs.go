package obs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type correlationContextKey struct{}

// Correlation carries per-invocation correlation identifiers.
type Correlation struct {
	InvocationID string
	Command      string
	NoteID       string
}

var (
	loggerMu sync.RWMutex
	logger   *slog.Logger
	level    = new(slog.LevelVar)
)

// Init configures the global structured logger.
func Init() {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger != nil {
		return
	}
	logger = newLogger(os.Stderr)
	slog.SetDefault(logger)
}

// SetLevel parses a level name ("debug", "info", "warn", "error") and applies it.
// Unknown names leave the level unchanged and return false.
func SetLevel(name string) bool {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return false
	}
	level.Set(l)
	return true
}

// SetOutputForTests overrides the global logger output for tests.
func SetOutputForTests(w io.Writer) func() {
	loggerMu.Lock()
	prev := logger
	logger = newLogger(w)
	slog.SetDefault(logger)
	loggerMu.Unlock()

	return func() {
		loggerMu.Lock()
		defer loggerMu.Unlock()
		if prev != nil {
			logger = prev
		} else {
			logger = newLogger(os.Stderr)
		}
		slog.SetDefault(logger)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				t, ok := attr.Value.Any().(time.Time)
				if ok {
					return slog.String(slog.TimeKey, t.UTC().Format(time.RFC3339Nano))
				}
			}
			return attr
		},
	})
	return slog.New(handler)
}

func globalLogger() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// Pkg returns a logger tagged with package name.
func Pkg(pkg string) *slog.Logger {
	return globalLogger().With("pkg", pkg)
}

// From returns a logger with correlation fields from context.
func From(ctx context.Context) *slog.Logger {
	l := globalLogger()
	attrs := correlationAttrs(CorrelationFromContext(ctx))
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

// WithCommand starts a CLI invocation: it assigns a fresh invocation id and
// records the command name.
func WithCommand(ctx context.Context, command string) context.Context {
	corr := CorrelationFromContext(ctx)
	corr.Command = strings.TrimSpace(command)
	if corr.InvocationID == "" {
		corr.InvocationID = newInvocationID()
	}
	return context.WithValue(ctx, correlationContextKey{}, corr)
}

// WithNoteID stores note_id in context.
func WithNoteID(ctx context.Context, noteID string) context.Context {
	corr := CorrelationFromContext(ctx)
	corr.NoteID = strings.TrimSpace(noteID)
	return context.WithValue(ctx, correlationContextKey{}, corr)
}

// CorrelationFromContext returns correlation fields from context.
func CorrelationFromContext(ctx context.Context) Correlation {
	if ctx == nil {
		return Correlation{}
	}
	corr, ok := ctx.Value(correlationContextKey{}).(Correlation)
	if !ok {
		return Correlation{}
	}
	return corr
}

func correlationAttrs(corr Correlation) []any {
	attrs := make([]any, 0, 6)
	if corr.InvocationID != "" {
		attrs = append(attrs, "invocation_id", corr.InvocationID)
	}
	if corr.Command != "" {
		attrs = append(attrs, "command", corr.Command)
	}
	if corr.NoteID != "" {
		attrs = append(attrs, "note_id", corr.NoteID)
	}
	return attrs
}

func newInvocationID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "inv-fallback"
	}
	return "inv-" + hex.EncodeToString(buf)
}
