package playback

import (
	"time"
)

// startLoopLocked replaces the running loop, if any, with a new one. Only the
// loop holding the current token may touch the session.
func (s *Session) startLoopLocked() {
	s.stopLoopLocked()
	s.loopToken++
	stop := make(chan struct{})
	s.loopStop = stop
	s.tickedAt = time.Now()

	s.wg.Add(1)
	go s.run(s.loopToken, s.generation, stop)
}

func (s *Session) stopLoopLocked() {
	if s.loopStop == nil {
		return
	}
	close(s.loopStop)
	s.loopStop = nil
	s.loopToken++
}

func (s *Session) run(token, generation uint64, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if !s.advance(token, generation, now) {
				return
			}
		}
	}
}

// advance moves the position forward by the time since the last tick. It
// returns false once this loop is no longer the active one.
func (s *Session) advance(token, generation uint64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || token != s.loopToken || generation != s.generation ||
		s.state != Playing || s.source == nil {
		return false
	}

	duration := s.source.Seconds()
	s.position += now.Sub(s.tickedAt).Seconds()
	s.tickedAt = now

	if s.position >= duration {
		s.position = 0
		if s.config.AtEnd == AtEndStop {
			s.stopLoopLocked()
			s.sink.Stop()
			s.sinkID = ""
			s.setStateLocked(Stopped)
			s.publishLocked()
			return false
		}
		s.startSinkLocked()
	}

	s.publishLocked()
	return true
}

// settleLocked credits the time since the last tick before the loop stops,
// so pausing between ticks does not lose position.
func (s *Session) settleLocked(now time.Time) {
	if s.state != Playing || s.source == nil || s.loopStop == nil {
		return
	}
	s.position = min(s.position+now.Sub(s.tickedAt).Seconds(), s.source.Seconds())
	s.tickedAt = now
}
