// Package server exposes a playback session over HTTP: the JSON command
// routes used by the player page, document upload, audio download and a
// WebSocket stream of state changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/metrics"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/scratch"
	"github.com/dgnsrekt/readaloud/internal/tts/engines"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Config configures a Server.
type Config struct {
	Addr            string
	MaxUpload       int64 // Bytes
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:5000",
		MaxUpload:       50 << 20,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records document loads and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithScratch serves rendered files by id and watches the directory for
// files deleted behind the session's back.
func WithScratch(store *scratch.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithMP3Encoder replaces the ffmpeg based MP3 export.
func WithMP3Encoder(fn func(ctx context.Context, path string) ([]byte, error)) Option {
	return func(s *Server) { s.toMP3 = fn }
}

// Server serves one playback session.
type Server struct {
	session   *playback.Session
	extractor *extract.Extractor
	store     *scratch.Store
	metrics   *metrics.Metrics
	toMP3     func(ctx context.Context, path string) ([]byte, error)
	logger    *log.Logger
	config    Config
	upgrader  websocket.Upgrader
	mux       *http.ServeMux

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
}

// New wires the routes for session.
func New(session *playback.Session, extractor *extract.Extractor, config Config, logger *log.Logger, opts ...Option) *Server {
	def := DefaultConfig()
	if config.Addr == "" {
		config.Addr = def.Addr
	}
	if config.MaxUpload <= 0 {
		config.MaxUpload = def.MaxUpload
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		session:   session,
		extractor: extractor,
		toMP3:     engines.ToMP3,
		logger:    logger,
		config:    config,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
		},
		mux:    http.NewServeMux(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /player", s.handlePage)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /player_state", s.handleState)
	s.mux.HandleFunc("POST /toggle_playback", s.command("toggle", s.session.Toggle))
	s.mux.HandleFunc("POST /play", s.command("play", s.session.Play))
	s.mux.HandleFunc("POST /pause", s.command("pause", s.session.Pause))
	s.mux.HandleFunc("POST /stop_playback", s.command("stop", s.session.Stop))
	s.mux.HandleFunc("POST /seek", s.handleSeek)
	s.mux.HandleFunc("POST /set_speed", s.handleSpeed)

	s.mux.HandleFunc("POST /pdf", s.handleUpload(".pdf"))
	s.mux.HandleFunc("POST /epub", s.handleUpload(".epub"))
	s.mux.HandleFunc("POST /url", s.handleURL)
	s.mux.HandleFunc("POST /text", s.handleText)

	s.mux.HandleFunc("GET /audio/{id}", s.handleAudio)
	s.mux.HandleFunc("GET /export_mp3", s.handleExport)
	s.mux.HandleFunc("GET /ws", s.handleStream)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.logger, s.mux)
}

// Run serves on config.Addr until ctx is canceled, then shuts down and
// waits for background loads.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.config.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving player", "url", "http://"+ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Warn("ungraceful shutdown", "err", err)
		}
		s.Close()
		return nil
	})

	if s.store != nil {
		g.Go(func() error {
			if err := s.store.Watch(gctx, s.session.NotifyRemoved); err != nil {
				s.logger.Warn("not watching scratch directory", "err", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close cancels background loads and waits for them to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.loads.Wait()
}
