package server

import (
	"embed"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dgnsrekt/readaloud/internal/playback"
)

//go:embed static/player.html
var static embed.FS

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	page, err := static.ReadFile("static/player.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"state":  snap.State.String(),
		"loaded": snap.Loaded,
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, playback.NewStateResponse(s.session.Snapshot(), nil))
}

// reply writes the snapshot taken after a command, with err attached.
func (s *Server) reply(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), playback.NewStateResponse(s.session.Snapshot(), err))
}

func (s *Server) command(name string, fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		err := fn()
		if err != nil {
			s.logger.Debug("command failed", "command", name, "err", err)
		}
		s.reply(w, err)
	}
}

type seekRequest struct {
	Position *float64 `json:"position"`
	Seconds  *float64 `json:"seconds"`
	Percent  *float64 `json:"percent"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid seek request"))
		return
	}

	var err error
	switch {
	case req.Seconds != nil:
		err = s.session.SeekSeconds(*req.Seconds)
	case req.Percent != nil:
		err = s.session.SeekPercent(*req.Percent)
	case req.Position != nil:
		err = s.session.Seek(*req.Position)
	default:
		writeError(w, http.StatusBadRequest, errors.New("position, seconds or percent is required"))
		return
	}
	s.reply(w, err)
}

type speedRequest struct {
	Speed *float64 `json:"speed"`
}

// handleSpeed starts a speed change. With ?wait=1 the reply is sent once the
// audio has been re-rendered.
func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil ||
		req.Speed == nil || math.IsNaN(*req.Speed) || math.IsInf(*req.Speed, 0) {
		writeError(w, http.StatusBadRequest, errors.New("a numeric speed is required"))
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	var err error
	if wait {
		err = s.session.SetSpeed(r.Context(), *req.Speed)
	} else {
		err = s.session.SetSpeedAsync(*req.Speed)
	}
	if err != nil {
		s.logger.Warn("speed change failed", "speed", *req.Speed, "err", err)
	}
	s.reply(w, err)
}
