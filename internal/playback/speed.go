package playback

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// speedChange is one in-flight regeneration.
type speedChange struct {
	ctx        context.Context
	cancel     context.CancelFunc
	generation uint64
	speed      float64
	text       string
}

// SetSpeed re-renders the loaded document at speed and blocks until the new
// audio is in place. Out of range speeds are clamped. On failure the previous
// speed and audio stay in place and a *tts.SynthesisError is returned.
func (s *Session) SetSpeed(ctx context.Context, speed float64) error {
	s.observer.Command("set_speed")
	req, err := s.beginSpeedChange(ctx, speed, false)
	if err != nil || req == nil {
		return err
	}
	return s.regenerate(req)
}

// SetSpeedAsync starts the same change as SetSpeed and returns once the
// session shows it as regenerating. Failures end up in the snapshot.
func (s *Session) SetSpeedAsync(speed float64) error {
	s.observer.Command("set_speed")
	req, err := s.beginSpeedChange(context.Background(), speed, true)
	if err != nil || req == nil {
		return err
	}

	go s.regenerateTracked(req)
	return nil
}

// regenerateTracked runs req on a goroutine already counted by s.wg.
func (s *Session) regenerateTracked(req *speedChange) {
	defer s.wg.Done()
	if err := s.regenerate(req); err != nil && !errors.Is(err, ErrSuperseded) {
		s.logger.Error("speed change failed", "speed", req.speed, "err", err)
	}
}

// beginSpeedChange freezes playback and claims a new generation. It returns
// nil when there is nothing to render. With track set the caller must run
// the change on a goroutine counted by s.wg.
func (s *Session) beginSpeedChange(parent context.Context, speed float64, track bool) (*speedChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	speed = tts.ClampSpeed(speed, s.config.MinSpeed, s.config.MaxSpeed)

	if s.source == nil {
		s.speed = speed
		s.sourceSpeed = speed
		s.publishLocked()
		return nil, nil
	}
	if !s.regenerating && speed == s.sourceSpeed {
		s.speed = speed
		return nil, nil
	}

	req := s.startSpeedChangeLocked(parent, speed)
	if track {
		s.wg.Add(1)
	}
	return req, nil
}

// startSpeedChangeLocked pauses playback, bumps the generation and marks the
// session as regenerating at speed. s.mu must be held and a source loaded.
func (s *Session) startSpeedChangeLocked(parent context.Context, speed float64) *speedChange {
	switch {
	case s.state == Playing:
		s.settleLocked(time.Now())
		s.stopLoopLocked()
		s.sink.Pause()
		s.setStateLocked(Paused)
		s.resumeAfterRegen = true
	case !s.regenerating:
		s.resumeAfterRegen = false
	}

	s.cancelRegenLocked()
	s.generation++
	s.speed = speed
	s.regenerating = true

	ctx, cancel := s.mergeContext(parent)
	s.regenCancel = cancel
	s.publishLocked()

	s.logger.Debug("regenerating audio", "speed", speed, "generation", s.generation)
	return &speedChange{
		ctx:        ctx,
		cancel:     cancel,
		generation: s.generation,
		speed:      speed,
		text:       s.doc.Text,
	}
}

func (s *Session) regenerate(req *speedChange) error {
	defer req.cancel()

	start := time.Now()
	src, attempts, err := s.renderWithRetry(req)

	s.mu.Lock()
	if s.closed || req.generation != s.generation {
		s.mu.Unlock()
		if src != nil {
			s.remove(src.Path)
		}
		s.observer.Regeneration("superseded", time.Since(start))
		return ErrSuperseded
	}

	s.regenerating = false
	s.regenCancel = nil
	resume := s.resumeAfterRegen
	s.resumeAfterRegen = false

	if err != nil {
		err = synthesisError(err, req.speed, attempts)
		s.speed = s.sourceSpeed
		s.lastErr = err
		if resume {
			if perr := s.playLocked(); perr != nil {
				s.logger.Warn("unable to resume playback", "err", perr)
			}
		}
		s.publishLocked()
		s.mu.Unlock()
		s.observer.Regeneration("failed", time.Since(start))
		return err
	}

	old := s.source
	s.position = rescale(s.position, old.Seconds(), src.Seconds(), s.config.PositionTolerance.Seconds())
	s.source = src
	s.sourceSpeed = src.Speed
	s.lastErr = nil
	s.sink.Stop()
	s.sinkID = ""
	if resume {
		if perr := s.playLocked(); perr != nil {
			s.logger.Warn("unable to resume playback", "err", perr)
		}
	}
	s.publishLocked()
	s.mu.Unlock()

	s.remove(old.Path)
	s.observer.Regeneration("applied", time.Since(start))
	s.logger.Info("speed changed",
		"speed", req.speed,
		"duration", src.Duration().Round(time.Millisecond),
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}

// renderWithRetry renders with a per-attempt timeout. A retryable failure is
// tried again when config.Retries is 1.
func (s *Session) renderWithRetry(req *speedChange) (*audio.Source, int, error) {
	var err error
	attempts := 0
	for attempts <= s.config.Retries {
		attempts++
		ctx, cancel := context.WithTimeout(req.ctx, s.config.SynthesisTimeout)
		src, rerr := s.renderer.Render(ctx, req.text, req.speed)
		cancel()
		if rerr == nil {
			return src, attempts, nil
		}
		err = rerr
		if req.ctx.Err() != nil || !tts.IsRetryable(rerr) {
			break
		}
		s.logger.Warn("render failed, retrying", "speed", req.speed, "attempt", attempts, "err", rerr)
	}
	return nil, attempts, err
}

// rescale keeps position at the same fraction of the audio when the
// duration changes by more than tolerance seconds.
func rescale(position, from, to, tolerance float64) float64 {
	if from > 0 && math.Abs(to-from) > tolerance {
		position = position / from * to
	}
	return min(max(position, 0), to)
}
