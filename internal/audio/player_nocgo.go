//go:build nocgo

package audio

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNoAudioDevice is returned by NewPlayer in builds without cgo.
var ErrNoAudioDevice = errors.New("audio output not available in nocgo build")

// Player is a stub for builds without cgo.
type Player struct{}

// PlayerConfig contains configuration for the speaker output.
type PlayerConfig struct {
	SampleRate int
	BufferSize int
	Volume     float64
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{SampleRate: 44100, BufferSize: 4096, Volume: 1.0}
}

// NewPlayer always fails without cgo.
func NewPlayer(PlayerConfig, *log.Logger) (*Player, error) { return nil, ErrNoAudioDevice }

func (p *Player) Start(*Source, time.Duration) error { return ErrNoAudioDevice }
func (p *Player) Pause()                             {}
func (p *Player) Resume()                            {}
func (p *Player) Stop()                              {}
func (p *Player) Close() error                       { return nil }
