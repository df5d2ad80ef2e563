// Package shutdown owns process exit: signal handling for graceful stops
// and crash diagnostics for fatal startup or runtime errors.
package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/logger"
)

// Abort logs the fatal error, writes a crash dump under the DB path, waits
// delaySeconds so log sinks flush, and exits with status 2.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 10
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("fatal", "msg", contextMsg, "error", err)

	if path, derr := writeCrashDump(dbPath, contextMsg, err); derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "failed to write crash dump: %v\n", derr)
	} else {
		logger.Error("crash_dump_written", "path", path)
		fmt.Fprintf(os.Stderr, "crash dump written: %s\n", path)
	}

	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(time.Second)
	}
	os.Exit(2)
}

// writeCrashDump writes a human-readable dump (reason, error, goroutine
// stacks) plus a small JSON marker next to it. The process environment is
// deliberately not dumped; it carries provider API keys.
func writeCrashDump(dbPath, reason string, cause error) (string, error) {
	dir := "./crash"
	if dbPath != "" {
		dir = filepath.Join(dbPath, "state", "crash")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}

	ts := time.Now().UTC()
	path := filepath.Join(dir, fmt.Sprintf("crash-%d.log", ts.UnixNano()))

	tmp, err := os.CreateTemp(dir, ".crash-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp crash file: %w", err)
	}
	defer os.Remove(tmp.Name())

	fmt.Fprintf(tmp, "time: %s\n", ts.Format(time.RFC3339))
	fmt.Fprintf(tmp, "pid: %d\n", os.Getpid())
	fmt.Fprintf(tmp, "reason: %s\n", reason)
	fmt.Fprintf(tmp, "error: %v\n", cause)
	fmt.Fprintf(tmp, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	tmp.Write(buf[:n])
	tmp.Sync()
	tmp.Close()

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move crash dump into place: %w", err)
	}
	_ = os.Chmod(path, 0o600)

	marker := map[string]string{
		"time":       ts.Format(time.RFC3339),
		"reason":     reason,
		"crash_path": path,
	}
	if mb, err := json.MarshalIndent(marker, "", "  "); err == nil {
		_ = os.WriteFile(path+".json", mb, 0o600)
	}
	return path, nil
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// SIGPIPE additionally dumps goroutine stacks before cancelling, since a
// broken pipe on a long-running server usually means a wedged client.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-stop
		logger.Info("signal_received", "signal", s.String())
		cancel()
	}()

	pipe := make(chan os.Signal, 1)
	signal.Notify(pipe, syscall.SIGPIPE)
	go func() {
		<-pipe
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("sigpipe_stack_dump", "dump", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}
