package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/spf13/viper"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TTS.Engine != "gtts" {
		t.Errorf("default engine = %q", cfg.TTS.Engine)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad sink", func(c *Config) { c.Server.Sink = "hdmi" }, "server.sink"},
		{"speed outside range", func(c *Config) { c.Playback.DefaultSpeed = 9 }, "default_speed"},
		{"inverted range", func(c *Config) { c.Playback.MinSpeed = 3; c.Playback.MaxSpeed = 2 }, "speed range"},
		{"zero tick", func(c *Config) { c.Playback.Tick = 0 }, "playback.tick"},
		{"bad at_end", func(c *Config) { c.Playback.AtEnd = "loop" }, "playback.at_end"},
		{"negative retries", func(c *Config) { c.Playback.Retries = -1 }, "retries"},
		{"too many retries", func(c *Config) { c.Playback.Retries = 2 }, "retries"},
		{"piper without model", func(c *Config) { c.TTS.Engine = "piper" }, "tts.piper.model"},
		{"long language", func(c *Config) { c.TTS.GTTS.Language = "english" }, "tts.gtts.language"},
		{"workers", func(c *Config) { c.TTS.Workers = 0 }, "tts.workers"},
		{"small chunks", func(c *Config) { c.TTS.ChunkSize = 10 }, "tts.chunk_size"},
		{"compression", func(c *Config) { c.Cache.Level = 30 }, "cache.compression"},
		{"no scratch dir", func(c *Config) { c.Server.ScratchDir = "" }, "scratch_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.TTS.Engine = "espeak"
	if err := cfg.Validate(); !errors.Is(err, tts.ErrInvalidEngine) {
		t.Errorf("error = %v, want ErrInvalidEngine", err)
	}
}

func TestValidateExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := Default()
	cfg.Server.ScratchDir = "~/readaloud-audio"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if want := filepath.Join(home, "readaloud-audio"); cfg.Server.ScratchDir != want {
		t.Errorf("ScratchDir = %q, want %q", cfg.Server.ScratchDir, want)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readaloud.yml")
	yml := `server:
  addr: ":8080"
  sink: none
playback:
  default_speed: 1.5
  tick: 50ms
  at_end: stop
tts:
  engine: mock
  mock:
    words_per_minute: 240
cache:
  memory_mb: 8
  disk_mb: 0
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.Sink != SinkNone {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Playback.DefaultSpeed != 1.5 || cfg.Playback.Tick != 50*time.Millisecond {
		t.Errorf("playback = %+v", cfg.Playback)
	}
	if cfg.TTS.Engine != "mock" || cfg.TTS.Mock.WordsPerMinute != 240 {
		t.Errorf("tts = %+v", cfg.TTS)
	}
	if cfg.TTS.GTTS.Language != "en" {
		t.Errorf("unset key lost its default: %q", cfg.TTS.GTTS.Language)
	}

	session := cfg.Session()
	if session.AtEnd != playback.AtEndStop || session.DefaultSpeed != 1.5 {
		t.Errorf("session config = %+v", session)
	}
	pcm := cfg.PCMCache()
	if pcm.MemoryCapacity != 8<<20 || pcm.DiskCapacity != 0 {
		t.Errorf("cache config = %+v", pcm)
	}
	if cfg.Engine().Engine != "mock" {
		t.Errorf("engine config = %+v", cfg.Engine())
	}
}

func TestLoadInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("playback.at_end", "bounce")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error")
	}
}
