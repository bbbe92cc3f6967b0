//go:build !nocgo

package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"
)

// Player mirrors the playback session on the speaker. Every call returns
// immediately; oto pulls samples on its own goroutine.
type Player struct {
	context *oto.Context
	logger  *log.Logger

	mu     sync.Mutex
	player *oto.Player
	// Keeps the source reachable while oto reads from it.
	source *Source

	sampleRate int
	volume     float64
}

// PlayerConfig contains configuration for the speaker output.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	BufferSize int // Bytes
	Volume     float64
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 44100,
		BufferSize: 4096,
		Volume:     1.0,
	}
}

// NewPlayer opens the audio device. Only one Player may exist per process.
func NewPlayer(config PlayerConfig, logger *log.Logger) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(config.BufferSize) * time.Second / time.Duration(config.SampleRate*2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &Player{
		context:    ctx,
		logger:     logger,
		sampleRate: config.SampleRate,
		volume:     config.Volume,
	}, nil
}

func validateConfig(config PlayerConfig) error {
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}
	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if config.Volume < 0 || config.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %.2f", config.Volume)
	}
	return nil
}

// Start plays src from offset, replacing whatever was playing.
func (p *Player) Start(src *Source, offset time.Duration) error {
	if src == nil {
		return ErrEmptyAudio
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()

	var streamer beep.Streamer = src.Streamer(offset)
	if int(src.Format.SampleRate) != p.sampleRate {
		streamer = beep.Resample(4, src.Format.SampleRate, beep.SampleRate(p.sampleRate), streamer)
	}

	player := p.context.NewPlayer(newSampleReader(streamer))
	player.SetVolume(p.volume)
	player.Play()

	p.player = player
	p.source = src
	p.logger.Debug("speaker started", "audio", src.ID, "offset", offset)
	return nil
}

// Pause halts output, keeping the stream position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Pause()
	}
}

// Resume continues a paused stream.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Play()
	}
}

// Stop discards the current stream.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

// Close stops output. The oto context itself lives until process exit.
func (p *Player) Close() error {
	p.Stop()
	return nil
}

func (p *Player) closeLocked() {
	if p.player == nil {
		return
	}
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		p.logger.Warn("unable to close speaker stream", "err", err)
	}
	p.player = nil
	p.source = nil
}
