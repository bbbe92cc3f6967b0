package playback

import (
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
)

// Sink mirrors the session on an output device. Calls must not block.
type Sink interface {
	Start(src *audio.Source, offset time.Duration) error
	Pause()
	Resume()
	Stop()
	Close() error
}

// NopSink discards every call. It is used when the server only streams audio
// to the browser.
type NopSink struct{}

func (NopSink) Start(*audio.Source, time.Duration) error { return nil }
func (NopSink) Pause()                                   {}
func (NopSink) Resume()                                  {}
func (NopSink) Stop()                                    {}
func (NopSink) Close() error                             { return nil }

// Observer receives session events, typically to record metrics.
type Observer interface {
	Command(name string)
	StateChanged(state State)
	Regeneration(outcome string, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) Command(string)                     {}
func (nopObserver) StateChanged(State)                 {}
func (nopObserver) Regeneration(string, time.Duration) {}
