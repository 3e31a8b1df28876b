package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/smartpark-backend/pkg/env"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	// Instance tags every entry with the process id when set.
	Instance  string
	Level     zerolog.Level
	WarnStack bool
	Output    io.Writer
}

// Logger writes JSON entries enriched with the fields carried by ctx.
type Logger struct {
	base      *zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

// The timestamp format is a zerolog package global, read on every write.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	builder := zerolog.New(newOutput(opts.Output)).
		With().
		Timestamp().
		Str("service", opts.ServiceName)
	if opts.Instance != "" {
		builder = builder.Str("instance", opts.Instance)
	}
	base := builder.Logger().Level(opts.Level)

	return &Logger{base: &base, warnStack: opts.WarnStack}
}

// newOutput picks stdout by default and switches to the human readable
// console writer when SMARTPARK_LOG_FORMAT (or LOG_FORMAT) is "console".
func newOutput(w io.Writer) io.Writer {
	if w == nil {
		w = os.Stdout
	}
	if strings.EqualFold(env.First("SMARTPARK_LOG_FORMAT", "LOG_FORMAT"), "console") {
		return zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return w
}

// ParseLevel maps a level name onto zerolog, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) fromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return l.base
}

func (l *Logger) attach(ctx context.Context, entry zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.attach(ctx, l.fromContext(ctx).With().Interface(key, value).Logger())
}

// WithFields adds every field to the ctx logger. Keys are applied in sorted
// order so entries render the same way on every run.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	builder := l.fromContext(ctx).With()
	for _, k := range keys {
		builder = builder.Interface(k, fields[k])
	}
	return l.attach(ctx, builder.Logger())
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.WithField(ctx, "user_id", userID)
}

func (l *Logger) WithParkID(ctx context.Context, parkID string) context.Context {
	return l.WithField(ctx, "park_id", parkID)
}

func (l *Logger) WithActorRole(ctx context.Context, role string) context.Context {
	return l.WithField(ctx, "actor_role", role)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.fromContext(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.fromContext(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	event := l.fromContext(ctx).Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error always carries a stack trace; err may be nil.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	event := l.fromContext(ctx).Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("stack", stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
