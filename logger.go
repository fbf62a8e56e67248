package cursorwindow

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with window-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithWindow adds the window name to every record.
func (l *Logger) WithWindow(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("window", name),
	}
}

// LogFill logs the outcome of a fill.
func (l *Logger) LogFill(ctx context.Context, res FillResult, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fill failed",
			"start_pos", res.StartPos,
			"total_rows", res.TotalRows,
			"added_rows", res.AddedRows,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "fill completed",
		"start_pos", res.StartPos,
		"total_rows", res.TotalRows,
		"added_rows", res.AddedRows,
		"restarts", res.Restarts,
		"exhausted", res.Exhausted,
		"duration", duration,
	)
}

// LogRestart logs a page discarded because the required row was not reached.
func (l *Logger) LogRestart(ctx context.Context, oldStart, newStart, requiredPos int) {
	l.DebugContext(ctx, "window filled before required row, restarting",
		"old_start_pos", oldStart,
		"start_pos", newStart,
		"required_pos", requiredPos,
	)
}

// LogPageFull logs that the page was accepted as full.
func (l *Logger) LogPageFull(ctx context.Context, startPos, addedRows int, usedBytes int) {
	l.DebugContext(ctx, "window full",
		"start_pos", startPos,
		"added_rows", addedRows,
		"used_bytes", usedBytes,
	)
}

// LogBusy logs a busy signal from the cursor.
func (l *Logger) LogBusy(ctx context.Context, attempt, limit int) {
	if attempt > limit {
		l.WarnContext(ctx, "bailing on database busy retry",
			"attempts", attempt,
			"limit", limit,
		)
		return
	}
	l.DebugContext(ctx, "database locked, retrying",
		"attempt", attempt,
	)
}

// LogInflate logs a window growth attempt.
func (l *Logger) LogInflate(ctx context.Context, oldSize, newSize int, err error) {
	if err != nil {
		l.DebugContext(ctx, "window cannot grow",
			"size", oldSize,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "window grown",
		"old_size", oldSize,
		"new_size", newSize,
	)
}
