package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/internal/playback"
)

type fakeController struct {
	state playback.StateResponse
	err   error
	calls []string
}

func (f *fakeController) reply(call string) (playback.StateResponse, error) {
	f.calls = append(f.calls, call)
	return f.state, f.err
}

func (f *fakeController) State(context.Context) (playback.StateResponse, error) {
	return f.reply("state")
}

func (f *fakeController) Toggle(context.Context) (playback.StateResponse, error) {
	return f.reply("toggle")
}

func (f *fakeController) Stop(context.Context) (playback.StateResponse, error) {
	return f.reply("stop")
}

func (f *fakeController) SeekSeconds(_ context.Context, seconds float64) (playback.StateResponse, error) {
	return f.reply(fmt.Sprintf("seek %g", seconds))
}

func (f *fakeController) SeekPercent(_ context.Context, percent float64) (playback.StateResponse, error) {
	return f.reply(fmt.Sprintf("seek %g%%", percent))
}

func (f *fakeController) SetSpeed(_ context.Context, speed float64, _ bool) (playback.StateResponse, error) {
	return f.reply(fmt.Sprintf("speed %g", speed))
}

func (f *fakeController) Watch(ctx context.Context, fn func(playback.StateResponse)) error {
	fn(f.state)
	<-ctx.Done()
	return ctx.Err()
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeyCommands(t *testing.T) {
	current := playback.StateResponse{State: "playing", Loaded: true, Position: 30, Duration: 100, Speed: 1}

	tests := []struct {
		name string
		key  tea.KeyMsg
		want string
	}{
		{"toggle", runes("p"), "toggle"},
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "toggle"},
		{"stop", runes("s"), "stop"},
		{"refresh", runes("r"), "state"},
		{"back", tea.KeyMsg{Type: tea.KeyLeft}, "seek 20"},
		{"forward", runes("l"), "seek 40"},
		{"slower", runes("-"), "speed 0.75"},
		{"faster", runes("+"), "speed 1.25"},
		{"jump", runes("7"), "seek 70%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{state: current}
			m := newModel(Config{Addr: "localhost:5000"}, ctrl)
			defer m.cancel()
			m.status.Update(current)

			_, cmd := m.Update(tt.key)
			if cmd == nil {
				t.Fatalf("Update(%q) returned no command", tt.key.String())
			}
			msg := cmd()
			if _, ok := msg.(stateMsg); !ok {
				t.Fatalf("command returned %T, want stateMsg", msg)
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", ctrl.calls, tt.want)
			}
		})
	}
}

func TestSeekClamps(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(Config{SeekStep: 10}, ctrl)
	defer m.cancel()

	m.status.Update(playback.StateResponse{Loaded: true, Position: 4, Duration: 12})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	cmd()
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	cmd()

	want := []string{"seek 0", "seek 12"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
}

func TestCommandError(t *testing.T) {
	ctrl := &fakeController{err: errors.New("no source loaded")}
	m := newModel(Config{}, ctrl)
	defer m.cancel()

	_, cmd := m.Update(runes("s"))
	msg := cmd()
	updated, _ := m.Update(msg)

	view := updated.(model).View()
	if !strings.Contains(view, "no source loaded") {
		t.Errorf("View() does not show the error:\n%s", view)
	}
}

func TestStreamedState(t *testing.T) {
	ctrl := &fakeController{state: playback.StateResponse{State: "paused", Loaded: true, Title: "Streamed"}}
	m := newModel(Config{Addr: "localhost:5000"}, ctrl)
	defer m.cancel()

	go m.watch()()
	msg := m.waitForState()()
	sm, ok := msg.(stateMsg)
	if !ok || !sm.streamed {
		t.Fatalf("waitForState returned %#v, want a streamed stateMsg", msg)
	}

	updated, cmd := m.Update(sm)
	if cmd == nil {
		t.Fatal("a streamed state should wait for the next one")
	}
	um := updated.(model)
	if !um.connected {
		t.Error("model should be connected after a streamed state")
	}
	if view := um.View(); !strings.Contains(view, "Streamed") {
		t.Errorf("View() missing title:\n%s", view)
	}
}

func TestStreamEndedReconnects(t *testing.T) {
	m := newModel(Config{}, &fakeController{})
	defer m.cancel()
	m.connected = true

	updated, cmd := m.Update(streamEndedMsg{err: errors.New("connection reset")})
	if cmd == nil {
		t.Fatal("expected a reconnect command")
	}
	um := updated.(model)
	if um.connected {
		t.Error("model still connected after the stream ended")
	}
	if um.err == nil {
		t.Error("stream error was dropped")
	}
}

func TestHelpAndQuit(t *testing.T) {
	m := newModel(Config{}, &fakeController{})

	updated, _ := m.Update(runes("?"))
	if !updated.(model).help.ShowAll {
		t.Error("? should expand the help")
	}

	updated, cmd := updated.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
	if updated.(model).ctx.Err() == nil {
		t.Error("quitting should cancel the model context")
	}
}

func TestWindowSize(t *testing.T) {
	m := newModel(Config{}, &fakeController{})
	defer m.cancel()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if got := updated.(model).width; got != 120 {
		t.Errorf("width = %d, want 120", got)
	}
}
