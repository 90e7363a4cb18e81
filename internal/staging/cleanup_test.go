package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func makeDir(t *testing.T, root, name string, age time.Duration, payload int) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if payload > 0 {
		if err := os.WriteFile(filepath.Join(dir, "video.mp4"), make([]byte, payload), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	return dir
}

func TestListOnlySessionDirectories(t *testing.T) {
	root := t.TempDir()
	makeDir(t, root, "render-new", time.Minute, 10)
	makeDir(t, root, "render-old", time.Hour, 0)
	makeDir(t, root, "keep-me", 2*time.Hour, 0)
	if err := os.WriteFile(filepath.Join(root, "fluxrender.lock"), nil, 0o644); err != nil {
		t.Fatalf("write lock: %v", err)
	}

	dirs, err := List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("expected 2 session dirs, got %+v", dirs)
	}
	if dirs[0].Name != "render-old" || dirs[1].Name != "render-new" {
		t.Fatalf("expected oldest first, got %s, %s", dirs[0].Name, dirs[1].Name)
	}
	if dirs[1].Size != 10 {
		t.Fatalf("expected size 10, got %d", dirs[1].Size)
	}
}

func TestListMissingDirectory(t *testing.T) {
	dirs, err := List(filepath.Join(t.TempDir(), "absent"))
	if err != nil || dirs != nil {
		t.Fatalf("expected empty result, got %v, %v", dirs, err)
	}
}

func TestCleanOlderThan(t *testing.T) {
	root := t.TempDir()
	fresh := makeDir(t, root, "render-fresh", time.Minute, 0)
	stale := makeDir(t, root, "render-stale", 3*time.Hour, 0)
	other := makeDir(t, root, "other", 3*time.Hour, 0)

	result := CleanOlderThan(root, time.Hour, nil)
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("expected only the stale dir removed, got %v", result.Removed)
	}
	for _, dir := range []string{fresh, other} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("%s should survive: %v", dir, err)
		}
	}

	result = CleanOlderThan(root, 0, nil)
	if len(result.Removed) != 1 || result.Removed[0] != fresh {
		t.Fatalf("expected zero max age to sweep remaining sessions, got %v", result.Removed)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatal("non-session directory must never be removed")
	}
}
