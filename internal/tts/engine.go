package tts

import "context"

// Engine turns text into raw PCM.
type Engine interface {
	// Synthesize returns 16-bit little-endian mono PCM at Info().SampleRate.
	// speed is a playback multiplier where 2.0 is twice as fast.
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)

	// Info describes the engine's output format and limits.
	Info() EngineInfo

	// Validate checks that binaries and models the engine needs are present.
	Validate() error

	// Close releases any resources held by the engine.
	Close() error
}

// EngineInfo describes engine capabilities and configuration.
type EngineInfo struct {
	Name        string
	Voice       string
	SampleRate  int
	MaxTextSize int // characters per Synthesize call
	IsOnline    bool
}
