package playback

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/samber/lo"
)

// Renderer synthesizes text into a new audio file.
type Renderer interface {
	Render(ctx context.Context, text string, speed float64) (*audio.Source, error)
}

// Remover deletes audio files the session no longer references.
type Remover interface {
	Remove(path string) error
}

// AtEnd decides what the loop does when it reaches the end of the audio.
type AtEnd string

const (
	AtEndWrap AtEnd = "wrap"
	AtEndStop AtEnd = "stop"
)

// Config configures a Session.
type Config struct {
	Tick              time.Duration
	AtEnd             AtEnd
	MinSpeed          float64
	MaxSpeed          float64
	DefaultSpeed      float64
	SynthesisTimeout  time.Duration
	Retries           int
	AutoPlay          bool
	PositionTolerance time.Duration

	// Sink and Observer are optional.
	Sink     Sink
	Observer Observer
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Tick:              100 * time.Millisecond,
		AtEnd:             AtEndWrap,
		MinSpeed:          tts.MinSpeed,
		MaxSpeed:          tts.MaxSpeed,
		DefaultSpeed:      1.0,
		SynthesisTimeout:  2 * time.Minute,
		Retries:           1,
		PositionTolerance: 50 * time.Millisecond,
	}
}

// Session is the single "now playing" state shared by every client.
type Session struct {
	renderer Renderer
	files    Remover
	sink     Sink
	observer Observer
	pub      *Publisher
	logger   *log.Logger
	config   Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	doc      Document
	source   *audio.Source
	position float64
	speed    float64
	// Speed the current source was rendered at.
	sourceSpeed float64
	state       State
	generation  uint64
	loadSeq     uint64

	regenerating     bool
	resumeAfterRegen bool
	regenCancel      context.CancelFunc
	lastErr          error

	loopToken uint64
	loopStop  chan struct{}
	tickedAt  time.Time
	// ID of the source the sink currently holds, "" when stopped.
	sinkID string
}

// New creates an idle session with nothing loaded.
func New(renderer Renderer, files Remover, config Config, logger *log.Logger) *Session {
	def := DefaultConfig()
	if config.Tick <= 0 {
		config.Tick = def.Tick
	}
	if config.AtEnd == "" {
		config.AtEnd = def.AtEnd
	}
	if config.MinSpeed <= 0 {
		config.MinSpeed = def.MinSpeed
	}
	if config.MaxSpeed <= 0 || config.MaxSpeed < config.MinSpeed {
		config.MaxSpeed = def.MaxSpeed
	}
	if config.SynthesisTimeout <= 0 {
		config.SynthesisTimeout = def.SynthesisTimeout
	}
	config.Retries = min(max(config.Retries, 0), 1)
	if config.PositionTolerance <= 0 {
		config.PositionTolerance = def.PositionTolerance
	}
	if config.DefaultSpeed <= 0 {
		config.DefaultSpeed = def.DefaultSpeed
	}
	if config.Sink == nil {
		config.Sink = NopSink{}
	}
	if config.Observer == nil {
		config.Observer = nopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	speed := tts.ClampSpeed(config.DefaultSpeed, config.MinSpeed, config.MaxSpeed)
	return &Session{
		renderer:    renderer,
		files:       files,
		sink:        config.Sink,
		observer:    config.Observer,
		pub:         NewPublisher(),
		logger:      logger,
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
		speed:       speed,
		sourceSpeed: speed,
		state:       Idle,
	}
}

// Publisher returns the publisher that receives a snapshot after every
// change.
func (s *Session) Publisher() *Publisher { return s.pub }

// Play starts or resumes playback.
func (s *Session) Play() error {
	s.observer.Command("play")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playLocked()
}

// Pause suspends playback, keeping the position.
func (s *Session) Pause() error {
	s.observer.Command("pause")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.pauseLocked()
	s.publishLocked()
	return nil
}

// Toggle pauses when playing and plays otherwise. During a speed change it
// flips whether playback resumes once the new audio is ready.
func (s *Session) Toggle() error {
	s.observer.Command("toggle")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.regenerating {
		s.resumeAfterRegen = !s.resumeAfterRegen
		s.publishLocked()
		return nil
	}
	if s.state == Playing {
		s.pauseLocked()
		s.publishLocked()
		return nil
	}
	return s.playLocked()
}

// Stop halts playback and rewinds to the start.
func (s *Session) Stop() error {
	s.observer.Command("stop")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.stopLoopLocked()
	s.resumeAfterRegen = false
	s.sink.Stop()
	s.sinkID = ""
	s.position = 0
	s.setStateLocked(Stopped)
	s.publishLocked()
	return nil
}

// Seek jumps to target and plays from there. Targets from 0 to 100 are a
// percentage of the duration; anything else is seconds.
func (s *Session) Seek(target float64) error {
	s.observer.Command("seek")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != nil && target >= 0 && target <= 100 {
		return s.seekLocked(target / 100 * s.source.Seconds())
	}
	return s.seekLocked(target)
}

// SeekSeconds jumps to an absolute position and plays from there.
func (s *Session) SeekSeconds(seconds float64) error {
	s.observer.Command("seek")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seekLocked(seconds)
}

// SeekPercent jumps to a percentage of the duration and plays from there.
func (s *Session) SeekPercent(percent float64) error {
	s.observer.Command("seek")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return s.seekLocked(0)
	}
	return s.seekLocked(lo.Clamp(percent, 0, 100) / 100 * s.source.Seconds())
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Current returns the loaded audio.
func (s *Session) Current() (*audio.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return nil, ErrNoSourceLoaded
	}
	return s.source, nil
}

// Load renders doc at the current speed and replaces whatever was loaded.
// A load that finishes after a newer one started returns ErrSuperseded.
func (s *Session) Load(ctx context.Context, doc Document) error {
	s.observer.Command("load")
	if strings.TrimSpace(doc.Text) == "" {
		return ErrEmptyDocument
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loadSeq++
	seq := s.loadSeq
	speed := s.speed
	s.mu.Unlock()

	ctx, cancel := s.mergeContext(ctx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, s.config.SynthesisTimeout)
	defer cancelTimeout()

	start := time.Now()
	src, err := s.renderer.Render(ctx, doc.Text, speed)
	if err != nil {
		s.mu.Lock()
		if seq == s.loadSeq && !s.closed {
			s.lastErr = err
			s.publishLocked()
		}
		s.mu.Unlock()
		return fmt.Errorf("loading %q: %w", doc.Title, err)
	}

	s.mu.Lock()
	if s.closed || seq != s.loadSeq {
		s.mu.Unlock()
		s.remove(src.Path)
		return ErrSuperseded
	}

	// A SetSpeed that arrived while rendering only stored the speed.
	want := s.speed
	old := s.source
	s.stopLoopLocked()
	s.cancelRegenLocked()
	s.generation++
	s.sink.Stop()
	s.sinkID = ""
	s.doc = doc
	s.source = src
	s.position = 0
	s.speed = src.Speed
	s.sourceSpeed = src.Speed
	s.regenerating = false
	s.resumeAfterRegen = false
	s.lastErr = nil
	s.setStateLocked(Idle)

	s.logger.Info("loaded document",
		"title", doc.Title,
		"kind", doc.Kind,
		"duration", src.Duration().Round(time.Second),
		"took", time.Since(start).Round(time.Millisecond))

	var req *speedChange
	switch {
	case want != src.Speed:
		req = s.startSpeedChangeLocked(context.Background(), want)
		s.resumeAfterRegen = s.config.AutoPlay
		s.wg.Add(1)
	case s.config.AutoPlay:
		if err := s.playLocked(); err != nil {
			s.logger.Warn("unable to start playback", "err", err)
		}
	}
	s.publishLocked()
	s.mu.Unlock()

	if old != nil {
		s.remove(old.Path)
	}
	if req != nil {
		go s.regenerateTracked(req)
	}
	return nil
}

// NotifyRemoved tells the session a file was deleted from disk. Playback
// pauses if it was the current audio.
func (s *Session) NotifyRemoved(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.source == nil || s.source.Path != path {
		return
	}

	s.logger.Warn("current audio file was removed", "path", path)
	s.lastErr = ErrFileMissing
	if s.state == Playing {
		s.settleLocked(time.Now())
		s.stopLoopLocked()
		s.sink.Stop()
		s.sinkID = ""
		s.setStateLocked(Paused)
	}
	s.publishLocked()
}

// Close stops playback, cancels any rendering and waits for every goroutine
// the session started. The current audio file is removed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopLoopLocked()
	s.cancelRegenLocked()
	s.cancel()
	src := s.source
	s.mu.Unlock()

	s.wg.Wait()
	s.sink.Stop()
	err := s.sink.Close()
	if src != nil {
		s.remove(src.Path)
	}
	s.pub.Close()
	return err
}

func (s *Session) playLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.regenerating {
		s.resumeAfterRegen = true
		s.publishLocked()
		return nil
	}
	if s.source == nil {
		s.logger.Info("play requested with nothing loaded")
		return nil
	}
	if !s.source.Exists() {
		return fmt.Errorf("%w: %s", ErrFileMissing, s.source.Path)
	}

	switch s.state {
	case Playing:
		return nil
	case Paused:
		if s.sinkID == s.source.ID {
			s.sink.Resume()
		} else {
			s.startSinkLocked()
		}
	default:
		s.startSinkLocked()
	}

	s.setStateLocked(Playing)
	s.startLoopLocked()
	s.publishLocked()
	return nil
}

func (s *Session) pauseLocked() {
	if s.regenerating {
		s.resumeAfterRegen = false
		return
	}
	if s.state != Playing {
		return
	}
	s.settleLocked(time.Now())
	s.stopLoopLocked()
	s.sink.Pause()
	s.setStateLocked(Paused)
}

func (s *Session) seekLocked(seconds float64) error {
	if s.closed {
		return ErrClosed
	}
	if s.source == nil {
		return nil
	}
	if math.IsNaN(seconds) {
		seconds = 0
	}
	seconds = lo.Clamp(seconds, 0, s.source.Seconds())

	if s.regenerating {
		s.position = seconds
		s.resumeAfterRegen = true
		s.publishLocked()
		return nil
	}
	if !s.source.Exists() {
		return fmt.Errorf("%w: %s", ErrFileMissing, s.source.Path)
	}

	s.stopLoopLocked()
	s.position = seconds
	s.startSinkLocked()
	s.setStateLocked(Playing)
	s.startLoopLocked()
	s.publishLocked()
	return nil
}

func (s *Session) startSinkLocked() {
	offset := time.Duration(s.position * float64(time.Second))
	if err := s.sink.Start(s.source, offset); err != nil {
		s.logger.Warn("audio output unavailable", "err", err)
		s.sinkID = ""
		return
	}
	s.sinkID = s.source.ID
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.observer.StateChanged(state)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        s.state,
		Title:        s.doc.Title,
		Kind:         s.doc.Kind,
		Position:     s.position,
		Speed:        s.speed,
		Generation:   s.generation,
		Regenerating: s.regenerating,
	}
	if s.source != nil {
		snap.Loaded = true
		snap.AudioID = s.source.ID
		snap.Duration = s.source.Seconds()
		snap.Progress = progress(s.position, snap.Duration)
	}
	if s.lastErr != nil {
		snap.Err = s.lastErr.Error()
	}
	return snap
}

func (s *Session) publishLocked() {
	s.pub.Publish(s.snapshotLocked())
}

func (s *Session) cancelRegenLocked() {
	if s.regenCancel != nil {
		s.regenCancel()
		s.regenCancel = nil
	}
}

// mergeContext returns a context cancelled by either parent or Close.
func (s *Session) mergeContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) remove(path string) {
	if s.files == nil || path == "" {
		return
	}
	if err := s.files.Remove(path); err != nil {
		s.logger.Warn("unable to remove audio file", "path", path, "err", err)
	}
}
