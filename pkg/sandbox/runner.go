// Package sandbox runs generated analysis code in a subprocess. Execution is
// opt-in: without explicit configuration the runner reports disabled and the
// pipeline returns code without running it.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sidharthgd/LabVerse/pkg/logger"
	"github.com/sidharthgd/LabVerse/pkg/state"
)

const maxOutputBytes = 64 * 1024

// Runner executes Python snippets with a wall-clock timeout.
type Runner struct {
	enabled     bool
	interpreter string
	timeout     time.Duration
	workDir     string
}

// New builds a runner. interpreter defaults to python3, timeout to 30s.
func New(enabled bool, interpreter string, timeout time.Duration) *Runner {
	if interpreter == "" {
		interpreter = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	workDir := state.PathsVar.Tmp
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Runner{enabled: enabled, interpreter: interpreter, timeout: timeout, workDir: workDir}
}

func (r *Runner) Enabled() bool { return r.enabled }

// Run writes the code to a scratch file and executes it, returning combined
// output truncated to a sane size.
func (r *Runner) Run(ctx context.Context, code string) (string, error) {
	if !r.enabled {
		return "", fmt.Errorf("code execution is disabled")
	}
	f, err := os.CreateTemp(r.workDir, "snippet-*.py")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	f.Close()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.interpreter, name)
	cmd.Dir = r.workDir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err = cmd.Run()
	out := buf.String()
	if len(out) > maxOutputBytes {
		out = out[:maxOutputBytes] + "\n[output truncated]"
	}
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("execution timed out after %s", r.timeout)
	}
	if err != nil {
		logger.Warn("sandbox_exit_error", "file", filepath.Base(name), "error", err)
		return out, fmt.Errorf("execution failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}
