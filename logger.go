package embeddb

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is a slog.Logger with helpers that emit one record per
// collection operation using consistent attribute names.
type Logger struct {
	*slog.Logger
}

// NewLogger wraps handler. A nil handler logs text to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &Logger{Logger: slog.New(handler)}
}

func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger discards everything.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", name),
	}
}

// LogAdd logs an add or upsert of count records.
func (l *Logger) LogAdd(ctx context.Context, op string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, op+" failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, op+" completed",
			"count", count,
		)
	}
}

// LogQuery logs a query.
func (l *Logger) LogQuery(ctx context.Context, k, resultsFound, pool int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"k", k,
			"results", resultsFound,
			"pool", pool,
		)
	}
}

// LogDelete logs a delete.
func (l *Logger) LogDelete(ctx context.Context, requested, deleted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"requested", requested,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"requested", requested,
			"deleted", deleted,
		)
	}
}

// LogUpdate logs an update.
func (l *Logger) LogUpdate(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update completed",
			"count", count,
		)
	}
}

// LogCompaction logs a compaction. A cancelled compaction is logged as a warning.
func (l *Logger) LogCompaction(ctx context.Context, reclaimed int, duration time.Duration, err error) {
	switch {
	case err == nil:
		l.InfoContext(ctx, "compaction completed",
			"reclaimed", reclaimed,
			"duration", duration,
		)
	case ctx.Err() != nil:
		l.WarnContext(ctx, "compaction cancelled",
			"error", err,
		)
	default:
		l.ErrorContext(ctx, "compaction failed",
			"error", err,
		)
	}
}

// LogFlush logs a snapshot save.
func (l *Logger) LogFlush(ctx context.Context, version uint64, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"version", version,
			"records", records,
		)
	}
}

// LogLoad logs a snapshot load at open.
func (l *Logger) LogLoad(ctx context.Context, version uint64, collections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"version", version,
			"collections", collections,
		)
	}
}
