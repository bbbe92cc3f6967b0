// Package config holds the typed readaloud configuration and loads it from
// viper.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// Sink names.
const (
	SinkSpeaker = "speaker"
	SinkNone    = "none"
)

// Config is the complete readaloud configuration.
type Config struct {
	Server   ServerConfig
	Playback PlaybackConfig
	TTS      TTSConfig
	Cache    CacheConfig
	Extract  ExtractConfig
}

// ServerConfig configures the HTTP player.
type ServerConfig struct {
	Addr       string
	ScratchDir string
	Sink       string
	MaxUpload  int64
}

// PlaybackConfig configures the session.
type PlaybackConfig struct {
	DefaultSpeed      float64
	MinSpeed          float64
	MaxSpeed          float64
	Tick              time.Duration
	AtEnd             string
	SynthesisTimeout  time.Duration
	Retries           int
	AutoPlay          bool
	PositionTolerance time.Duration
	Volume            float64
}

// TTSConfig selects and tunes the speech engine.
type TTSConfig struct {
	Engine    string
	Workers   int
	ChunkSize int
	Gap       time.Duration
	Piper     engines.PiperConfig
	GTTS      engines.GTTSConfig
	Mock      engines.MockConfig
}

// CacheConfig configures the synthesized PCM cache.
type CacheConfig struct {
	Enabled  bool
	Dir      string
	MemoryMB int64
	DiskMB   int64
	Level    int
	TTL      time.Duration
}

// ExtractConfig configures document extraction.
type ExtractConfig struct {
	PDFToText string
	UserAgent string
	MaxMB     int64
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:5000",
			ScratchDir: defaultDir("audio"),
			Sink:       SinkSpeaker,
			MaxUpload:  50,
		},
		Playback: PlaybackConfig{
			DefaultSpeed:      1.0,
			MinSpeed:          tts.MinSpeed,
			MaxSpeed:          tts.MaxSpeed,
			Tick:              100 * time.Millisecond,
			AtEnd:             string(playback.AtEndWrap),
			SynthesisTimeout:  2 * time.Minute,
			Retries:           1,
			PositionTolerance: 50 * time.Millisecond,
			Volume:            1.0,
		},
		TTS: TTSConfig{
			Engine:    "gtts",
			Workers:   2,
			ChunkSize: 400,
			Gap:       150 * time.Millisecond,
			Piper:     engines.PiperConfig{Binary: "piper"},
			GTTS:      engines.GTTSConfig{Language: "en", RequestsPerMinute: 50},
			Mock:      engines.MockConfig{WordsPerMinute: 180},
		},
		Cache: CacheConfig{
			Enabled:  true,
			Dir:      defaultDir("pcm"),
			MemoryMB: 64,
			DiskMB:   512,
			Level:    3,
			TTL:      7 * 24 * time.Hour,
		},
		Extract: ExtractConfig{
			PDFToText: "pdftotext",
			MaxMB:     50,
		},
	}
}

func defaultDir(name string) string {
	dir, err := gap.NewScope(gap.User, "readaloud").CacheDir()
	if err != nil || dir == "" {
		return filepath.Join(".readaloud", name)
	}
	return filepath.Join(dir, name)
}

// Validate checks ranges and expands paths in place.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.Sink != SinkSpeaker && c.Server.Sink != SinkNone {
		errs = append(errs, fmt.Errorf("server.sink must be %q or %q, got %q", SinkSpeaker, SinkNone, c.Server.Sink))
	}
	if c.Server.MaxUpload <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUpload))
	}

	p := c.Playback
	if p.MinSpeed <= 0 || p.MinSpeed > p.MaxSpeed {
		errs = append(errs, fmt.Errorf("playback speed range %.2f-%.2f is invalid", p.MinSpeed, p.MaxSpeed))
	} else if p.DefaultSpeed < p.MinSpeed || p.DefaultSpeed > p.MaxSpeed {
		errs = append(errs, fmt.Errorf("playback.default_speed must be between %.2f and %.2f, got %.2f",
			p.MinSpeed, p.MaxSpeed, p.DefaultSpeed))
	}
	if p.Tick <= 0 {
		errs = append(errs, fmt.Errorf("playback.tick must be positive, got %s", p.Tick))
	}
	if p.AtEnd != string(playback.AtEndWrap) && p.AtEnd != string(playback.AtEndStop) {
		errs = append(errs, fmt.Errorf("playback.at_end must be %q or %q, got %q", playback.AtEndWrap, playback.AtEndStop, p.AtEnd))
	}
	if p.SynthesisTimeout <= 0 {
		errs = append(errs, fmt.Errorf("playback.synthesis_timeout must be positive, got %s", p.SynthesisTimeout))
	}
	if p.Retries < 0 || p.Retries > 1 {
		errs = append(errs, fmt.Errorf("playback.retries must be 0 or 1, got %d", p.Retries))
	}
	if p.Volume < 0 || p.Volume > 2 {
		errs = append(errs, fmt.Errorf("playback.volume must be between 0 and 2, got %.2f", p.Volume))
	}

	switch strings.ToLower(c.TTS.Engine) {
	case "piper":
		if c.TTS.Piper.ModelPath == "" {
			errs = append(errs, errors.New("tts.piper.model is required for the piper engine"))
		}
	case "gtts", "google":
		if n := len(c.TTS.GTTS.Language); n < 2 || n > 5 {
			errs = append(errs, fmt.Errorf("tts.gtts.language must be 2-5 characters, got %q", c.TTS.GTTS.Language))
		}
		if c.TTS.GTTS.RequestsPerMinute < 0 {
			errs = append(errs, fmt.Errorf("tts.gtts.requests_per_minute cannot be negative, got %d", c.TTS.GTTS.RequestsPerMinute))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("%w: %q (valid: piper, gtts, mock)", tts.ErrInvalidEngine, c.TTS.Engine))
	}
	if c.TTS.Workers < 1 {
		errs = append(errs, fmt.Errorf("tts.workers must be at least 1, got %d", c.TTS.Workers))
	}
	if c.TTS.ChunkSize < 50 {
		errs = append(errs, fmt.Errorf("tts.chunk_size must be at least 50, got %d", c.TTS.ChunkSize))
	}

	if c.Cache.MemoryMB < 0 || c.Cache.DiskMB < 0 {
		errs = append(errs, errors.New("cache sizes cannot be negative"))
	}
	if c.Cache.Level < 0 || c.Cache.Level > 22 {
		errs = append(errs, fmt.Errorf("cache.compression must be between 0 and 22, got %d", c.Cache.Level))
	}
	if c.Extract.MaxMB <= 0 {
		errs = append(errs, fmt.Errorf("extract.max_mb must be positive, got %d", c.Extract.MaxMB))
	}

	for _, p := range []*string{&c.Server.ScratchDir, &c.Cache.Dir, &c.TTS.Piper.ModelPath, &c.TTS.Piper.ConfigPath} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			errs = append(errs, fmt.Errorf("unable to expand %q: %w", *p, err))
			continue
		}
		*p = expanded
	}
	if c.Server.ScratchDir == "" {
		errs = append(errs, errors.New("server.scratch_dir is required"))
	}

	return errors.Join(errs...)
}

// Session returns the playback session settings.
func (c Config) Session() playback.Config {
	cfg := playback.DefaultConfig()
	cfg.Tick = c.Playback.Tick
	cfg.AtEnd = playback.AtEnd(c.Playback.AtEnd)
	cfg.MinSpeed = c.Playback.MinSpeed
	cfg.MaxSpeed = c.Playback.MaxSpeed
	cfg.DefaultSpeed = c.Playback.DefaultSpeed
	cfg.SynthesisTimeout = c.Playback.SynthesisTimeout
	cfg.Retries = c.Playback.Retries
	cfg.AutoPlay = c.Playback.AutoPlay
	cfg.PositionTolerance = c.Playback.PositionTolerance
	return cfg
}

// Engine returns the engine selection.
func (c Config) Engine() engines.Config {
	return engines.Config{
		Engine: c.TTS.Engine,
		Piper:  c.TTS.Piper,
		GTTS:   c.TTS.GTTS,
		Mock:   c.TTS.Mock,
	}
}

// PCMCache returns the cache settings. Sizes of zero disable a level.
func (c Config) PCMCache() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.MemoryCapacity = c.Cache.MemoryMB << 20
	cfg.DiskCapacity = c.Cache.DiskMB << 20
	cfg.DiskPath = c.Cache.Dir
	cfg.CompressionLevel = c.Cache.Level
	cfg.TTL = c.Cache.TTL
	if c.Cache.Dir == "" {
		cfg.DiskCapacity = 0
	}
	return cfg
}
