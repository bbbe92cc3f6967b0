package playback

import (
	"errors"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

var (
	// ErrNoSourceLoaded is returned when a command needs audio and none has
	// been loaded yet.
	ErrNoSourceLoaded = errors.New("no audio loaded")

	// ErrFileMissing means the file backing the current audio was deleted.
	ErrFileMissing = errors.New("audio file is missing")

	// ErrSuperseded is returned by a load or speed change whose result was
	// discarded because a newer one started.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrEmptyDocument is returned when loading a document with no text.
	ErrEmptyDocument = errors.New("document has no text")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// IsRecoverable reports whether the session is still usable after err. Only
// a closed session is not.
func IsRecoverable(err error) bool {
	return err == nil || !errors.Is(err, ErrClosed)
}

// synthesisError stamps the attempt count on a render failure.
func synthesisError(err error, speed float64, attempts int) error {
	var se *tts.SynthesisError
	if errors.As(err, &se) {
		cp := *se
		cp.Attempts = attempts
		return &cp
	}
	return &tts.SynthesisError{Speed: speed, Attempts: attempts, Cause: err}
}
