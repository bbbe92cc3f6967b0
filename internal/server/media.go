package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/playback"
)

// handleAudio serves a rendered WAV by id, with range support so the browser
// can seek in it.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	path, ok := s.audioPath(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, id+".wav", info.ModTime(), f)
}

// audioPath resolves id through the scratch store, or accepts only the
// current source when there is no store.
func (s *Server) audioPath(id string) (string, bool) {
	if s.store != nil {
		return s.store.Path(id)
	}
	src, err := s.session.Current()
	if err != nil || src.ID != id {
		return "", false
	}
	return src.Path, true
}

// handleExport transcodes the current audio to MP3.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	src, err := s.session.Current()
	if err != nil {
		s.reply(w, err)
		return
	}

	data, err := s.toMP3(r.Context(), src.Path)
	if err != nil {
		s.logger.Error("mp3 export failed", "path", src.Path, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("exporting mp3: %w", err))
		return
	}

	name := exportName(s.session.Snapshot())
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func exportName(snap playback.Snapshot) string {
	title := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, snap.Title)
	if title == "" {
		title = "readaloud"
	}
	return title + ".mp3"
}
