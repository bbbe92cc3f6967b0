package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
)

// speech is an engine plus the renderer and cache built around it.
type speech struct {
	engine   tts.Engine
	cache    *cache.Manager
	renderer *tts.Renderer
}

func newSpeech(cfg config.Config, store tts.FileStore) (*speech, error) {
	engine, err := engines.New(cfg.Engine())
	if err != nil {
		return nil, fmt.Errorf("unable to create %s engine: %w", cfg.TTS.Engine, err)
	}
	if err := engine.Validate(); err != nil {
		return nil, fmt.Errorf("%s engine is not usable: %w", cfg.TTS.Engine, err)
	}

	s := &speech{engine: engine}
	opts := []tts.RendererOption{
		tts.WithWorkers(cfg.TTS.Workers),
		tts.WithGap(cfg.TTS.Gap),
		tts.WithChunkSize(cfg.TTS.ChunkSize),
	}
	if cfg.Cache.Enabled {
		s.cache, err = cache.New(cfg.PCMCache(), log.WithPrefix("cache"))
		if err != nil {
			_ = engine.Close()
			return nil, fmt.Errorf("unable to open cache: %w", err)
		}
		opts = append(opts, tts.WithCache(s.cache))
	}

	s.renderer = tts.NewRenderer(engine, store, log.WithPrefix("tts"), opts...)
	info := engine.Info()
	log.Debug("Speech engine ready", "engine", info.Name, "voice", info.Voice, "rate", info.SampleRate)
	return s, nil
}

func (s *speech) Close() error {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Warn("Unable to close cache", "err", err)
		}
	}
	return s.engine.Close()
}

func newExtractor(cfg config.Config) *extract.Extractor {
	return extract.New(log.WithPrefix("extract"),
		extract.WithPDFToText(cfg.Extract.PDFToText),
		extract.WithUserAgent(cfg.Extract.UserAgent),
		extract.WithMaxBytes(cfg.Extract.MaxMB<<20),
	)
}
