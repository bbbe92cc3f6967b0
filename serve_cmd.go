package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/metrics"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/scratch"
	"github.com/dgnsrekt/readaloud/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve [SOURCE]",
	Short: "Start the web player",
	Long: paragraph(fmt.Sprintf("\n%s the web player and read documents loaded from it. "+
		"An optional file or URL is loaded on start.", keyword("Start"))),
	Example: paragraph("readaloud serve\nreadaloud serve --addr :8080 --engine piper book.epub"),
	Args:    cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, map[string]string{
			"server.addr":            "addr",
			"server.sink":            "sink",
			"tts.engine":             "engine",
			"playback.default_speed": "speed",
			"playback.auto_play":     "play",
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, args)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on")
	serveCmd.Flags().String("sink", "", "audio output: speaker or none")
	serveCmd.Flags().String("engine", "", "speech engine: piper, gtts or mock")
	serveCmd.Flags().Float64("speed", 0, "initial playback speed")
	serveCmd.Flags().Bool("play", false, "start playing as soon as a document is ready")
}

// bindFlags binds config keys to the flags of the command being run. Flags
// are bound late because several commands share a key.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("unable to bind --%s: %w", name, err)
		}
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, args []string) error {
	store, err := scratch.New(cfg.Server.ScratchDir, log.WithPrefix("scratch"))
	if err != nil {
		return err
	}
	if _, _, err := store.Sweep(); err != nil {
		log.Warn("Unable to clean scratch directory", "err", err)
	}

	sp, err := newSpeech(cfg, store)
	if err != nil {
		return err
	}
	defer sp.Close() //nolint:errcheck

	var session *playback.Session
	m := metrics.New(func() int {
		if session == nil {
			return 0
		}
		return session.Publisher().Len()
	})
	if sp.cache != nil {
		m.WatchCache(sp.cache)
	}

	sessionCfg := cfg.Session()
	sessionCfg.Sink = openSink(cfg)
	sessionCfg.Observer = m
	session = playback.New(sp.renderer, store, sessionCfg, log.WithPrefix("session"))

	extractor := newExtractor(cfg)
	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Server.Addr
	srvCfg.MaxUpload = cfg.Server.MaxUpload << 20
	srv := server.New(session, extractor, srvCfg, log.WithPrefix("server"),
		server.WithMetrics(m),
		server.WithScratch(store),
	)

	if len(args) == 1 {
		go preload(ctx, session, extractor, args[0], m)
	}

	err = srv.Run(ctx)
	if cerr := session.Close(); cerr != nil {
		log.Warn("Unable to close session", "err", cerr)
	}
	if _, _, serr := store.Sweep(); serr != nil {
		log.Warn("Unable to clean scratch directory", "err", serr)
	}
	return err
}

// openSink returns the speaker, or a silent sink when the speaker is
// disabled or cannot be opened.
func openSink(cfg config.Config) playback.Sink {
	if cfg.Server.Sink == config.SinkNone {
		return playback.NopSink{}
	}
	pc := audio.DefaultPlayerConfig()
	pc.Volume = cfg.Playback.Volume
	player, err := audio.NewPlayer(pc, log.WithPrefix("speaker"))
	if err != nil {
		log.Warn("Speaker unavailable, serving the player only", "err", err)
		return playback.NopSink{}
	}
	return player
}

func preload(ctx context.Context, session *playback.Session, extractor *extract.Extractor, source string, m *metrics.Metrics) {
	doc, err := extractor.Extract(ctx, source)
	if err != nil {
		m.ExtractionFailed("preload")
		log.Error("Unable to read document", "source", source, "err", err)
		return
	}
	m.DocumentLoaded(doc.Kind)
	pdoc := playback.Document{Text: doc.Text, Title: doc.Title, Kind: doc.Kind}
	if err := session.Load(ctx, pdoc); err != nil {
		log.Error("Unable to load document", "source", source, "err", err)
	}
}
