package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/scratch"
	"github.com/dgnsrekt/readaloud/internal/server"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	logger := log.New(io.Discard)

	store, err := scratch.New(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := engines.NewMock(engines.MockConfig{SampleRate: 8000, WordsPerMinute: 600})
	config := playback.DefaultConfig()
	config.Tick = 10 * time.Millisecond
	session := playback.New(tts.NewRenderer(engine, store, logger), store, config, logger)

	srv := server.New(session, extract.New(logger), server.Config{}, logger,
		server.WithScratch(store),
		server.WithMP3Encoder(func(context.Context, string) ([]byte, error) { return []byte("mp3"), nil }))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		srv.Close()
		_ = session.Close()
	})

	c, err := New(hs.URL, hs.Client())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNewAddress(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{"localhost:5000", "http://localhost:5000", false},
		{"https://player.example.com", "https://player.example.com", false},
		{"ftp://host", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			c, err := New(tt.addr, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if c.base.String() != tt.want {
				t.Errorf("base = %q, want %q", c.base.String(), tt.want)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	state, err := c.State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Loaded {
		t.Fatal("nothing should be loaded yet")
	}

	reply, err := c.LoadText(ctx, "One two three four five six. Seven eight nine ten.", "Counting", true)
	if err != nil {
		t.Fatalf("LoadText failed: %v", err)
	}
	if reply.Status != "success" || reply.Title != "Counting" {
		t.Errorf("reply = %+v", reply)
	}

	if state, err = c.Play(ctx); err != nil || !state.IsPlaying {
		t.Fatalf("Play = %+v, %v", state, err)
	}
	if state, err = c.SeekPercent(ctx, 25); err != nil || state.ProgressPercent < 20 || state.ProgressPercent > 35 {
		t.Errorf("SeekPercent = %+v, %v", state, err)
	}
	if state, err = c.SetSpeed(ctx, 1.5, true); err != nil || state.Speed != 1.5 {
		t.Errorf("SetSpeed = %+v, %v", state, err)
	}
	if state, err = c.Pause(ctx); err != nil || state.State != "paused" {
		t.Errorf("Pause = %+v, %v", state, err)
	}
	if state, err = c.Toggle(ctx); err != nil || state.State != "playing" {
		t.Errorf("Toggle = %+v, %v", state, err)
	}
	if state, err = c.SeekSeconds(ctx, 0.5); err != nil || state.Position < 0.5 {
		t.Errorf("SeekSeconds = %+v, %v", state, err)
	}
	if state, err = c.Stop(ctx); err != nil || state.State != "stopped" {
		t.Errorf("Stop = %+v, %v", state, err)
	}

	var buf bytes.Buffer
	if _, err := c.ExportMP3(ctx, &buf); err != nil || buf.String() != "mp3" {
		t.Errorf("ExportMP3 = %q, %v", buf.String(), err)
	}
}

func TestErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	var buf bytes.Buffer
	if _, err := c.ExportMP3(ctx, &buf); !errors.Is(err, ErrServer) {
		t.Errorf("ExportMP3 without audio = %v", err)
	}
	if _, err := c.LoadText(ctx, "  ", "", true); !errors.Is(err, ErrServer) {
		t.Errorf("LoadText empty = %v", err)
	}
	if _, err := c.LoadURL(ctx, "not a url", false); !errors.Is(err, ErrServer) {
		t.Errorf("LoadURL invalid = %v", err)
	}

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Upload(ctx, path, false); err == nil {
		t.Error("Upload accepted a .txt file")
	}

	bad := filepath.Join(t.TempDir(), "broken.epub")
	if err := os.WriteFile(bad, []byte("not a zip"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Upload(ctx, bad, false); !errors.Is(err, ErrServer) {
		t.Errorf("Upload broken epub = %v", err)
	}
}

func TestWatch(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	states := make(chan playback.StateResponse, 64)
	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(s playback.StateResponse) {
			select {
			case states <- s:
			default:
			}
		})
	}()

	var first playback.StateResponse
	select {
	case first = <-states:
	case <-ctx.Done():
		t.Fatal("no state received")
	}
	if first.State != "idle" {
		t.Errorf("first state = %q", first.State)
	}

	if _, err := c.LoadText(ctx, "Watching the stream.", "Stream", true); err != nil {
		t.Fatal(err)
	}
	for loaded := false; !loaded; {
		select {
		case s := <-states:
			if s.Loaded {
				loaded = true
				if s.Title != "Stream" {
					t.Errorf("title = %q", s.Title)
				}
			}
		case <-ctx.Done():
			t.Fatal("never saw the loaded state")
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
