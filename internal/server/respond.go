package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/extract"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Response is the body of document and error replies.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Title   string `json:"title,omitempty"`
	Type    string `json:"type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Response{Status: "error", Message: err.Error()})
}

// statusFor maps an error to the HTTP status reported with it.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, playback.ErrNoSourceLoaded), errors.Is(err, playback.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, playback.ErrFileMissing):
		return http.StatusGone
	case errors.Is(err, playback.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, playback.ErrEmptyDocument), errors.Is(err, extract.ErrNoContent),
		errors.Is(err, tts.ErrEmptyText), errors.Is(err, tts.ErrTextTooLong):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extract.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, tts.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	var synthErr *tts.SynthesisError
	var extractErr *extract.ExtractionError
	if errors.As(err, &synthErr) || errors.As(err, &extractErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if r.URL.Path == "/player_state" || r.URL.Path == "/health" {
			return
		}
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"took", time.Since(start).Round(time.Microsecond))
	})
}
