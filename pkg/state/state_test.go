package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureStateDirsLayout(t *testing.T) {
	root := t.TempDir()
	if err := EnsureStateDirs(root); err != nil {
		t.Fatalf("EnsureStateDirs: %v", err)
	}

	want := []string{
		filepath.Join(root, "store"),
		filepath.Join(root, "state", "audit"),
		filepath.Join(root, "state", "retention"),
		filepath.Join(root, "state", "ingest"),
		filepath.Join(root, "state", "tmp"),
		filepath.Join(root, "plots"),
	}
	for _, p := range want {
		fi, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing dir %s: %v", p, err)
		}
		if !fi.IsDir() {
			t.Fatalf("not a directory: %s", p)
		}
	}

	if PathsVar.Retention != filepath.Join(root, "state", "retention") {
		t.Fatalf("PathsVar not populated: %+v", PathsVar)
	}

	// idempotent
	if err := EnsureStateDirs(root); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestEnsureStateDirsRejectsSymlink(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "state"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(root, "store")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := EnsureStateDirs(root); err == nil {
		t.Fatalf("expected symlink rejection")
	}
}

func TestEnsureStateDirsRejectsFileCollision(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "store"), []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := EnsureStateDirs(root); err == nil {
		t.Fatalf("expected non-directory rejection")
	}
}
