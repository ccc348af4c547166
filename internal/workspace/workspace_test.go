package workspace

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestDirIsLazyAndStable(t *testing.T) {
	root := t.TempDir()
	l := New(root, nil)

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatal("workspace must not exist before first use")
	}

	first, err := l.Dir()
	if err != nil {
		t.Fatalf("Dir returned error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(first), Prefix) {
		t.Fatalf("workspace name %q missing prefix", first)
	}
	second, err := l.Dir()
	if err != nil {
		t.Fatalf("Dir returned error: %v", err)
	}
	if first != second {
		t.Fatalf("Dir must be stable within a run: %q vs %q", first, second)
	}
}

func TestCleanupDeletesWorkspaceAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	l := New(root, nil)
	dir, err := l.Dir()
	if err != nil {
		t.Fatalf("Dir returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "master.mkv"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := l.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("workspace should be gone, stat err=%v", err)
	}
	if err := l.Cleanup(); err != nil {
		t.Fatalf("second Cleanup must be a no-op, got %v", err)
	}
}

func TestCleanupKillsTrackedProcess(t *testing.T) {
	cmd := exec.Command("sleep", "60")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}

	l := New(t.TempDir(), nil)
	l.Track(cmd.Process)
	if !l.ActiveProcess() {
		t.Fatal("expected active process after Track")
	}

	if err := l.Cleanup(); err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}
	if l.ActiveProcess() {
		t.Fatal("active process reference must be cleared after cleanup")
	}

	cmd.Wait()
	if err := cmd.Process.Signal(syscall.Signal(0)); err == nil {
		t.Fatal("expected process to be dead after cleanup")
	}
}

func TestSweepDeletesOnlyStaleWorkspaces(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, Prefix+"stale")
	fresh := filepath.Join(root, Prefix+"fresh")
	other := filepath.Join(root, "unrelated")
	for _, dir := range []string{stale, fresh, other} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	l := New(root, nil)
	active, err := l.Dir()
	if err != nil {
		t.Fatalf("Dir returned error: %v", err)
	}
	if err := os.Chtimes(active, old, old); err != nil {
		t.Fatalf("chtimes active: %v", err)
	}

	l.Sweep(24 * time.Hour)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale workspace should be swept")
	}
	for name, dir := range map[string]string{"fresh": fresh, "unrelated": other, "active": active} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("%s directory must survive sweep: %v", name, err)
		}
	}
}
