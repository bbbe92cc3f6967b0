package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults registers every key with its default so that environment
// variables and flags can override keys missing from the file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.scratch_dir", d.Server.ScratchDir)
	v.SetDefault("server.sink", d.Server.Sink)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUpload)

	v.SetDefault("playback.default_speed", d.Playback.DefaultSpeed)
	v.SetDefault("playback.min_speed", d.Playback.MinSpeed)
	v.SetDefault("playback.max_speed", d.Playback.MaxSpeed)
	v.SetDefault("playback.tick", d.Playback.Tick)
	v.SetDefault("playback.at_end", d.Playback.AtEnd)
	v.SetDefault("playback.synthesis_timeout", d.Playback.SynthesisTimeout)
	v.SetDefault("playback.retries", d.Playback.Retries)
	v.SetDefault("playback.auto_play", d.Playback.AutoPlay)
	v.SetDefault("playback.position_tolerance", d.Playback.PositionTolerance)
	v.SetDefault("playback.volume", d.Playback.Volume)

	v.SetDefault("tts.engine", d.TTS.Engine)
	v.SetDefault("tts.workers", d.TTS.Workers)
	v.SetDefault("tts.chunk_size", d.TTS.ChunkSize)
	v.SetDefault("tts.gap", d.TTS.Gap)
	v.SetDefault("tts.piper.binary", d.TTS.Piper.Binary)
	v.SetDefault("tts.piper.model", "")
	v.SetDefault("tts.piper.config", "")
	v.SetDefault("tts.piper.speaker", "")
	v.SetDefault("tts.gtts.language", d.TTS.GTTS.Language)
	v.SetDefault("tts.gtts.tld", "")
	v.SetDefault("tts.gtts.slow", false)
	v.SetDefault("tts.gtts.requests_per_minute", d.TTS.GTTS.RequestsPerMinute)
	v.SetDefault("tts.mock.words_per_minute", d.TTS.Mock.WordsPerMinute)
	v.SetDefault("tts.mock.tone", false)
	v.SetDefault("tts.mock.delay", d.TTS.Mock.Delay)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression", d.Cache.Level)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("extract.pdftotext", d.Extract.PDFToText)
	v.SetDefault("extract.user_agent", "")
	v.SetDefault("extract.max_mb", d.Extract.MaxMB)
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	cfg.Server = ServerConfig{
		Addr:       v.GetString("server.addr"),
		ScratchDir: v.GetString("server.scratch_dir"),
		Sink:       v.GetString("server.sink"),
		MaxUpload:  v.GetInt64("server.max_upload_mb"),
	}

	cfg.Playback = PlaybackConfig{
		DefaultSpeed:      v.GetFloat64("playback.default_speed"),
		MinSpeed:          v.GetFloat64("playback.min_speed"),
		MaxSpeed:          v.GetFloat64("playback.max_speed"),
		Tick:              v.GetDuration("playback.tick"),
		AtEnd:             v.GetString("playback.at_end"),
		SynthesisTimeout:  v.GetDuration("playback.synthesis_timeout"),
		Retries:           v.GetInt("playback.retries"),
		AutoPlay:          v.GetBool("playback.auto_play"),
		PositionTolerance: v.GetDuration("playback.position_tolerance"),
		Volume:            v.GetFloat64("playback.volume"),
	}

	cfg.TTS.Engine = v.GetString("tts.engine")
	cfg.TTS.Workers = v.GetInt("tts.workers")
	cfg.TTS.ChunkSize = v.GetInt("tts.chunk_size")
	cfg.TTS.Gap = v.GetDuration("tts.gap")
	cfg.TTS.Piper.Binary = v.GetString("tts.piper.binary")
	cfg.TTS.Piper.ModelPath = v.GetString("tts.piper.model")
	cfg.TTS.Piper.ConfigPath = v.GetString("tts.piper.config")
	cfg.TTS.Piper.Speaker = v.GetString("tts.piper.speaker")
	cfg.TTS.GTTS.Language = v.GetString("tts.gtts.language")
	cfg.TTS.GTTS.TLD = v.GetString("tts.gtts.tld")
	cfg.TTS.GTTS.Slow = v.GetBool("tts.gtts.slow")
	cfg.TTS.GTTS.RequestsPerMinute = v.GetInt("tts.gtts.requests_per_minute")
	cfg.TTS.Mock.WordsPerMinute = v.GetInt("tts.mock.words_per_minute")
	cfg.TTS.Mock.Tone = v.GetBool("tts.mock.tone")
	cfg.TTS.Mock.Delay = v.GetDuration("tts.mock.delay")

	cfg.Cache = CacheConfig{
		Enabled:  v.GetBool("cache.enabled"),
		Dir:      v.GetString("cache.dir"),
		MemoryMB: v.GetInt64("cache.memory_mb"),
		DiskMB:   v.GetInt64("cache.disk_mb"),
		Level:    v.GetInt("cache.compression"),
		TTL:      v.GetDuration("cache.ttl"),
	}

	cfg.Extract = ExtractConfig{
		PDFToText: v.GetString("extract.pdftotext"),
		UserAgent: v.GetString("extract.user_agent"),
		MaxMB:     v.GetInt64("extract.max_mb"),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
