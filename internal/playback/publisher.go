package playback

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Publisher fans snapshots out to subscribers. A subscriber that is not
// keeping up misses snapshots; the session never waits for it.
type Publisher struct {
	subs   *xsync.MapOf[uint64, chan Snapshot]
	nextID atomic.Uint64
	closed atomic.Bool
}

// NewPublisher returns a publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{subs: xsync.NewMapOf[uint64, chan Snapshot]()}
}

// Subscribe returns a channel of snapshots and a function that ends the
// subscription. The channel is never closed.
func (p *Publisher) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	if p.closed.Load() {
		return ch, func() {}
	}

	id := p.nextID.Add(1)
	p.subs.Store(id, ch)
	return ch, func() { p.subs.Delete(id) }
}

// Publish offers snap to every subscriber without blocking.
func (p *Publisher) Publish(snap Snapshot) {
	p.subs.Range(func(_ uint64, ch chan Snapshot) bool {
		select {
		case ch <- snap:
		default:
		}
		return true
	})
}

// Len returns the number of subscribers.
func (p *Publisher) Len() int { return p.subs.Size() }

// Close drops every subscriber.
func (p *Publisher) Close() {
	p.closed.Store(true)
	p.subs.Clear()
}

// FormatClock renders seconds as MM:SS, or HH:MM:SS from one hour up.
func FormatClock(seconds float64) string {
	if seconds != seconds || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// StateResponse is the JSON form of a snapshot served to the player.
type StateResponse struct {
	State             string  `json:"state"`
	IsPlaying         bool    `json:"is_playing"`
	Title             string  `json:"title"`
	Type              string  `json:"type"`
	ProgressPercent   int     `json:"progress_percent"`
	Speed             float64 `json:"speed"`
	DurationFormatted string  `json:"duration_formatted"`
	PositionFormatted string  `json:"position_formatted"`
	Position          float64 `json:"position"`
	Duration          float64 `json:"duration"`
	Regenerating      bool    `json:"regenerating"`
	Loaded            bool    `json:"loaded"`
	AudioID           string  `json:"audio_id,omitempty"`
	Generation        uint64  `json:"generation"`
	Error             string  `json:"error,omitempty"`
}

// NewStateResponse formats snap. A non-nil err replaces the snapshot's own
// error so a failed command reports why it failed.
func NewStateResponse(snap Snapshot, err error) StateResponse {
	resp := StateResponse{
		State:             snap.State.String(),
		IsPlaying:         snap.State == Playing,
		Title:             snap.Title,
		Type:              snap.Kind,
		ProgressPercent:   snap.Progress,
		Speed:             snap.Speed,
		DurationFormatted: FormatClock(snap.Duration),
		PositionFormatted: FormatClock(snap.Position),
		Position:          snap.Position,
		Duration:          snap.Duration,
		Regenerating:      snap.Regenerating,
		Loaded:            snap.Loaded,
		AudioID:           snap.AudioID,
		Generation:        snap.Generation,
		Error:             snap.Err,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
