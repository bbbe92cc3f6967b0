package playback

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{5.9, "00:05"},
		{65, "01:05"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{3725, "01:02:05"},
		{-4, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		pos, dur float64
		want     int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{2.5, 10, 25},
		{3.336, 10, 33},
		{3.6, 10, 36},
		{10, 10, 100},
	}
	for _, tt := range tests {
		if got := progress(tt.pos, tt.dur); got != tt.want {
			t.Errorf("progress(%v, %v) = %d, want %d", tt.pos, tt.dur, got, tt.want)
		}
	}
}

func TestNewStateResponse(t *testing.T) {
	snap := Snapshot{
		State:    Playing,
		Title:    "Chapter One",
		Kind:     "EPUB",
		Position: 75,
		Duration: 3725,
		Speed:    1.5,
		Progress: 2,
		Loaded:   true,
		AudioID:  "abc",
	}

	resp := NewStateResponse(snap, nil)
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"state":              "playing",
		"is_playing":         true,
		"title":              "Chapter One",
		"type":               "EPUB",
		"progress_percent":   float64(2),
		"speed":              1.5,
		"duration_formatted": "01:02:05",
		"position_formatted": "01:15",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if _, ok := got["error"]; ok {
		t.Error("error should be omitted when empty")
	}

	withErr := NewStateResponse(Snapshot{Err: "old"}, errors.New("boom"))
	if withErr.Error != "boom" || withErr.State != "idle" {
		t.Errorf("unexpected response: %+v", withErr)
	}
}

func TestPublisher(t *testing.T) {
	p := NewPublisher()
	a, cancelA := p.Subscribe(1)
	b, cancelB := p.Subscribe(4)
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}

	p.Publish(Snapshot{Generation: 1})
	p.Publish(Snapshot{Generation: 2})

	if got := (<-a).Generation; got != 1 {
		t.Errorf("slow subscriber got generation %d, want the first one", got)
	}
	select {
	case s := <-a:
		t.Errorf("slow subscriber should have missed a snapshot, got %+v", s)
	default:
	}
	if got := len(b); got != 2 {
		t.Errorf("buffered subscriber has %d snapshots, want 2", got)
	}

	cancelA()
	p.Publish(Snapshot{Generation: 3})
	select {
	case <-a:
		t.Error("cancelled subscriber still receives")
	case <-time.After(10 * time.Millisecond):
	}

	p.Close()
	cancelB()
	if p.Len() != 0 {
		t.Errorf("Len() after Close = %d", p.Len())
	}
	c, cancelC := p.Subscribe(1)
	defer cancelC()
	p.Publish(Snapshot{})
	if len(c) != 0 {
		t.Error("subscribe after Close should receive nothing")
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{Idle: "idle", Playing: "playing", Paused: "paused", Stopped: "stopped", State(9): "unknown"} {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", st, got, want)
		}
	}
}
