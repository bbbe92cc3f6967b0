package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// wordEngine returns 100ms of silence per word, scaled by speed.
type wordEngine struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (e *wordEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	frames := int(float64(len(strings.Fields(text))) * 800 / speed)
	return make([]byte, frames*2), nil
}

func (e *wordEngine) Info() EngineInfo {
	return EngineInfo{Name: "words", Voice: "v", SampleRate: 8000, MaxTextSize: 5000}
}

func (e *wordEngine) Validate() error { return nil }
func (e *wordEngine) Close() error    { return nil }

func (e *wordEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type dirStore struct {
	dir string
	n   int
}

func (s *dirStore) Allocate() (string, string) {
	s.n++
	id := fmt.Sprintf("audio-%d", s.n)
	return id, filepath.Join(s.dir, id+".wav")
}

func (s *dirStore) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *mapCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func newTestRenderer(t *testing.T, engine Engine, opts ...RendererOption) (*Renderer, *dirStore) {
	t.Helper()
	store := &dirStore{dir: t.TempDir()}
	opts = append([]RendererOption{WithGap(0), WithChunkSize(30)}, opts...)
	return NewRenderer(engine, store, log.New(io.Discard), opts...), store
}

func TestRenderDuration(t *testing.T) {
	engine := &wordEngine{}
	r, _ := newTestRenderer(t, engine)

	text := "One two three four. Five six seven eight. Nine ten."
	src, err := r.Render(context.Background(), text, 1.0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	if got, want := src.Duration(), time.Second; got != want {
		t.Errorf("Duration() = %v, want %v", got, want)
	}
	if !src.Exists() {
		t.Error("rendered file does not exist")
	}
	if src.Speed != 1.0 {
		t.Errorf("Speed = %v, want 1.0", src.Speed)
	}
	if engine.callCount() < 2 {
		t.Errorf("expected the text to be chunked, got %d engine calls", engine.callCount())
	}

	fast, err := r.Render(context.Background(), text, 2.0)
	if err != nil {
		t.Fatalf("Render at 2x failed: %v", err)
	}
	if got, want := fast.Duration(), 500*time.Millisecond; got != want {
		t.Errorf("Duration() at 2x = %v, want %v", got, want)
	}
	if fast.Path == src.Path {
		t.Error("each render must get its own file")
	}
}

func TestRenderGap(t *testing.T) {
	r, _ := newTestRenderer(t, &wordEngine{}, WithGap(100*time.Millisecond))

	src, err := r.Render(context.Background(), "One two three four. Five six seven eight. Nine ten.", 1.0)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if src.Duration() <= time.Second {
		t.Errorf("Duration() = %v, want silence between chunks", src.Duration())
	}
}

func TestRenderUsesCache(t *testing.T) {
	engine := &wordEngine{}
	cache := &mapCache{m: make(map[string][]byte)}
	r, _ := newTestRenderer(t, engine, WithCache(cache))

	text := "Cached words are cheap. Say them again."
	if _, err := r.Render(context.Background(), text, 1.25); err != nil {
		t.Fatalf("first Render failed: %v", err)
	}
	calls := engine.callCount()

	if _, err := r.Render(context.Background(), text, 1.25); err != nil {
		t.Fatalf("second Render failed: %v", err)
	}
	if engine.callCount() != calls {
		t.Errorf("engine called %d more times despite cache", engine.callCount()-calls)
	}

	if _, err := r.Render(context.Background(), text, 1.5); err != nil {
		t.Fatalf("third Render failed: %v", err)
	}
	if engine.callCount() == calls {
		t.Error("different speed must not hit the cache")
	}
}

func TestRenderErrors(t *testing.T) {
	t.Run("engine failure", func(t *testing.T) {
		boom := errors.New("boom")
		r, store := newTestRenderer(t, &wordEngine{err: boom})

		_, err := r.Render(context.Background(), "Hello there.", 1.5)
		var synthErr *SynthesisError
		if !errors.As(err, &synthErr) {
			t.Fatalf("error = %v, want *SynthesisError", err)
		}
		if synthErr.Speed != 1.5 || synthErr.Engine != "words" {
			t.Errorf("unexpected error fields: %+v", synthErr)
		}
		if !errors.Is(err, ErrSynthesisFailed) || !errors.Is(err, boom) {
			t.Errorf("error chain = %v", err)
		}

		entries, _ := os.ReadDir(store.dir)
		if len(entries) != 0 {
			t.Errorf("failed render left %d files", len(entries))
		}
	})

	t.Run("empty text", func(t *testing.T) {
		r, _ := newTestRenderer(t, &wordEngine{})
		_, err := r.Render(context.Background(), "   ", 1.0)
		if !errors.Is(err, ErrEmptyText) {
			t.Errorf("error = %v, want ErrEmptyText", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		r, _ := newTestRenderer(t, &wordEngine{delay: time.Second})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := r.Render(ctx, "Slow words.", 1.0)
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("error = %v, want ErrTimeout", err)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrEmptyText, false},
		{fmt.Errorf("wrapped: %w", ErrEngineNotAvailable), false},
		{ErrTimeout, true},
		{errors.New("network"), true},
	}
	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
