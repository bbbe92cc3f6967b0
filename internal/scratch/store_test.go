package scratch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), log.New(os.Stderr))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAllocate(t *testing.T) {
	s := newTestStore(t)

	id1, p1 := s.Allocate()
	id2, p2 := s.Allocate()
	if id1 == id2 || p1 == p2 {
		t.Fatal("Allocate returned duplicate ids")
	}
	if filepath.Dir(p1) != s.Dir() {
		t.Errorf("path %s not inside %s", p1, s.Dir())
	}
	if !strings.HasSuffix(p1, ".wav") {
		t.Errorf("path %s lacks .wav extension", p1)
	}

	got, ok := s.Path(id1)
	if !ok || got != p1 {
		t.Errorf("Path(%s) = %s, %v; want %s, true", id1, got, ok, p1)
	}
	if _, ok := s.Path("../../etc/passwd"); ok {
		t.Error("Path accepted a non-uuid id")
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	_, path := s.Allocate()
	touch(t, path)

	if err := s.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists after Remove")
	}
	if err := s.Remove(path); err != nil {
		t.Errorf("second Remove returned %v, want nil", err)
	}

	outside := filepath.Join(t.TempDir(), "other.wav")
	touch(t, outside)
	if err := s.Remove(outside); err == nil {
		t.Error("Remove deleted a file outside the scratch directory")
	}
}

func TestSweep(t *testing.T) {
	s := newTestStore(t)

	_, keep := s.Allocate()
	_, orphan1 := s.Allocate()
	_, orphan2 := s.Allocate()
	other := filepath.Join(s.Dir(), "notes.txt")
	for _, p := range []string{keep, orphan1, orphan2, other} {
		touch(t, p)
	}

	removed, freed, err := s.Sweep(keep)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if freed != 8 {
		t.Errorf("freed = %d, want 8", freed)
	}
	for _, p := range []string{keep, other} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should have been kept: %v", p, err)
		}
	}
}

func TestWatchReportsRemoval(t *testing.T) {
	s := newTestStore(t)
	_, path := s.Allocate()
	touch(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	removed := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(p string) { removed <- p })
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-removed:
		if got != path {
			t.Errorf("removed path = %s, want %s", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report removal")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
