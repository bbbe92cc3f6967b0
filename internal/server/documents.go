package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/playback"
)

func (s *Server) handleUpload(ext string) http.HandlerFunc {
	source := strings.TrimPrefix(ext, ".")
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUpload+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			s.extractFailed(source)
			writeError(w, http.StatusBadRequest, errors.New("no file uploaded"))
			return
		}
		defer file.Close() //nolint:errcheck

		name := filepath.Base(header.Filename)
		if name == "" || name == "." {
			writeError(w, http.StatusBadRequest, errors.New("no file selected"))
			return
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			s.extractFailed(source)
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid file type: expected %s", ext))
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, s.config.MaxUpload+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
			return
		}
		if int64(len(data)) > s.config.MaxUpload {
			s.extractFailed(source)
			writeError(w, http.StatusRequestEntityTooLarge, extract.ErrTooLarge)
			return
		}

		doc, err := s.extractor.Bytes(r.Context(), data, name)
		if err != nil {
			s.extractFailed(source)
			writeError(w, statusFor(err), err)
			return
		}
		s.load(w, r, doc)
	}
}

type urlRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, errors.New("no URL provided"))
		return
	}

	doc, err := s.extractor.URL(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		s.extractFailed("url")
		writeError(w, statusFor(err), err)
		return
	}
	s.load(w, r, doc)
}

type textRequest struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxUpload)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid text request"))
		return
	}

	doc, err := s.extractor.Text([]byte(req.Text), "Text")
	if err != nil {
		s.extractFailed("text")
		writeError(w, statusFor(err), err)
		return
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		doc.Title = t
	}
	s.load(w, r, doc)
}

// load renders doc into the session. By default rendering continues in the
// background and the reply is 202; ?wait=1 replies once the audio is ready.
func (s *Server) load(w http.ResponseWriter, r *http.Request, doc extract.Document) {
	pdoc := playback.Document{Text: doc.Text, Title: doc.Title, Kind: doc.Kind}
	resp := Response{Title: doc.Title, Type: doc.Kind}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if err := s.session.Load(r.Context(), pdoc); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		s.loaded(doc.Kind)
		resp.Status = "success"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, playback.ErrClosed)
		return
	}
	s.loads.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.loads.Done()
		if err := s.session.Load(s.ctx, pdoc); err != nil {
			if !errors.Is(err, playback.ErrSuperseded) && !errors.Is(err, context.Canceled) {
				s.logger.Error("unable to load document", "title", doc.Title, "err", err)
			}
			return
		}
		s.loaded(doc.Kind)
	}()

	resp.Status = "accepted"
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) loaded(kind string) {
	if s.metrics != nil {
		s.metrics.DocumentLoaded(kind)
	}
}

func (s *Server) extractFailed(source string) {
	if s.metrics != nil {
		s.metrics.ExtractionFailed(source)
	}
}
