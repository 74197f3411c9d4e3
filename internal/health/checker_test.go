package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexus-quest/pulse/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func standardChecks(db *sqlite.DB, dir string, lastErr func() error) []Check {
	return []Check{
		StorageCheck(db, nil),
		DirCheck(dir),
		SynthesisCheck("gemini", lastErr),
	}
}

func noErr() error { return nil }

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker_DefaultInterval(t *testing.T) {
	c := NewChecker(0)
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(time.Minute, standardChecks(db, t.TempDir(), noErr)...)
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
		if s.CheckedAt.IsZero() {
			t.Errorf("check %q has zero CheckedAt", s.Name)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(time.Minute, DirCheck(filepath.Join(t.TempDir(), "missing")))
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_SynthesisFailure(t *testing.T) {
	db := newTestDB(t)
	failed := errors.New("quota exceeded")
	c := NewChecker(time.Minute, standardChecks(db, t.TempDir(), func() error { return failed })...)
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Fatal("IsHealthy() should be false after a failed synthesis")
	}
	s := c.Statuses()[2]
	if s.Name != "synthesis" || s.Healthy {
		t.Fatalf("status = %+v", s)
	}
	if s.Error != "gemini: quota exceeded" {
		t.Errorf("Error = %q", s.Error)
	}
}

func TestChecker_StorageClosedRecovers(t *testing.T) {
	db := newTestDB(t)
	purged := 0
	c := NewChecker(time.Minute, StorageCheck(db, func() { purged++ }))
	db.Close()
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false for a closed database")
	}
	if purged != 1 {
		t.Errorf("purge calls = %d, want 1", purged)
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	c := NewChecker(time.Minute, DirCheck(t.TempDir()))
	c.runAll(context.Background())

	s := c.Statuses()
	s[0].Healthy = false
	if !c.Statuses()[0].Healthy {
		t.Error("Statuses() should return a copy")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(time.Millisecond, DirCheck(t.TempDir()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(c.Statuses()) != 1 {
		t.Errorf("Statuses() = %d, want 1", len(c.Statuses()))
	}
}

// ─── Check Implementation Tests ─────────────────────────────────────────────

func TestCheckWritableDir(t *testing.T) {
	dir := t.TempDir()
	if err := checkWritableDir(dir); err != nil {
		t.Errorf("checkWritableDir() error: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestCheckWritableDir_Missing(t *testing.T) {
	if err := checkWritableDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("checkWritableDir() should fail for a missing dir")
	}
}

func TestCheckWritableDir_NotADir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	os.WriteFile(f, []byte("x"), 0644)
	if err := checkWritableDir(f); err == nil {
		t.Error("checkWritableDir() should fail when path is a file")
	}
}
