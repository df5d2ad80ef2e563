// Package logger owns the process-wide slog logger plus an optional
// dedicated audit sink.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var Log *slog.Logger

// Audit is the dedicated audit logger when a sink is attached; callers fall
// back to the main logger when it is nil.
var Audit *slog.Logger

// Init configures the global logger at info level with a text handler.
func Init() {
	InitWithOptions("", "")
}

// InitWithOptions configures level and handler format ("text" or "json").
// Level falls back to LABVERSE_LOG_LEVEL when empty.
// LABVERSE_LOG_SINK=file:<path> redirects output to a file.
func InitWithOptions(level, format string) {
	lvl := parseLevel(level)

	var w io.Writer = os.Stdout
	if sink := os.Getenv("LABVERSE_LOG_SINK"); strings.HasPrefix(sink, "file:") {
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
		} else {
			w = f
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		Log = slog.New(slog.NewJSONHandler(w, opts))
		return
	}
	Log = slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	l := strings.ToLower(strings.TrimSpace(level))
	if l == "" {
		l = strings.ToLower(strings.TrimSpace(os.Getenv("LABVERSE_LOG_LEVEL")))
	}
	switch l {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AttachAuditFileSink points the audit logger at <auditDir>/audit.log as a
// JSON stream. Oversized files rotate with a timestamp suffix. Audit stays
// nil on error.
func AttachAuditFileSink(auditDir string) error {
	if auditDir == "" {
		return fmt.Errorf("empty audit dir")
	}
	if fi, err := os.Lstat(auditDir); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("audit path is a symlink: %s", auditDir)
		}
		if !fi.IsDir() {
			return fmt.Errorf("audit path is not a directory: %s", auditDir)
		}
	}
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}

	fname := filepath.Join(auditDir, "audit.log")
	const maxSize = 10 << 20
	if fi, err := os.Stat(fname); err == nil && fi.Size() > maxSize {
		bak := fname + "." + fi.ModTime().UTC().Format("20060102T150405Z")
		_ = os.Rename(fname, bak)
	}

	f, err := os.OpenFile(fname, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	Audit = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Audit.Info("audit_sink_attached", "path", fname)
	return nil
}

// Sync exists for symmetry with buffered logger implementations; the slog
// handlers used here write through.
func Sync() {}

func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}
