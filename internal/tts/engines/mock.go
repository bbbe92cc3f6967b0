package engines

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// ErrMockFailure is returned by a Mock told to fail.
var ErrMockFailure = errors.New("mock synthesis failure")

// Mock produces a quiet tone whose length depends only on the word count and
// the speed. It needs no external tools and is used in tests and demos.
type Mock struct {
	mu         sync.Mutex
	sampleRate int
	wpm        int
	tone       bool
	delay      time.Duration
	failures   int
	failAll    bool
	calls      int
}

// MockConfig configures a Mock engine.
type MockConfig struct {
	// SampleRate defaults to 16000.
	SampleRate int

	// WordsPerMinute at speed 1.0, defaults to 180.
	WordsPerMinute int

	// Tone emits a soft sine wave instead of silence.
	Tone bool

	// Delay is spent in every Synthesize call.
	Delay time.Duration
}

// NewMock creates a mock engine.
func NewMock(config MockConfig) *Mock {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.WordsPerMinute <= 0 {
		config.WordsPerMinute = 180
	}
	return &Mock{
		sampleRate: config.SampleRate,
		wpm:        config.WordsPerMinute,
		tone:       config.Tone,
		delay:      config.Delay,
	}
}

// SetDelay changes the per-call delay.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// FailNext makes the next n calls fail.
func (m *Mock) FailNext(n int) {
	m.mu.Lock()
	m.failures = n
	m.mu.Unlock()
}

// SetFailing makes every call fail until reset.
func (m *Mock) SetFailing(fail bool) {
	m.mu.Lock()
	m.failAll = fail
	m.mu.Unlock()
}

// Calls returns how many times Synthesize was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Duration returns the audio length Synthesize produces for text at speed.
func (m *Mock) Duration(text string, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1.0
	}
	words := len(strings.Fields(text))
	seconds := float64(words) * 60 / float64(m.wpm) / speed
	return time.Duration(seconds * float64(time.Second))
}

// Synthesize implements tts.Engine.
func (m *Mock) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}

	m.mu.Lock()
	m.calls++
	delay := m.delay
	fail := m.failAll || m.failures > 0
	if m.failures > 0 {
		m.failures--
	}
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, ErrMockFailure
	}

	frames := int(m.Duration(text, speed).Seconds() * float64(m.sampleRate))
	pcm := make([]byte, frames*2)
	if m.tone {
		for i := 0; i < frames; i++ {
			v := int16(800 * math.Sin(2*math.Pi*440*float64(i)/float64(m.sampleRate)))
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
		}
	}
	return pcm, nil
}

// Info implements tts.Engine.
func (m *Mock) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        "mock",
		Voice:       "tone",
		SampleRate:  m.sampleRate,
		MaxTextSize: 5000,
	}
}

// Validate implements tts.Engine.
func (m *Mock) Validate() error { return nil }

// Close implements tts.Engine.
func (m *Mock) Close() error { return nil }

var _ tts.Engine = (*Mock)(nil)
