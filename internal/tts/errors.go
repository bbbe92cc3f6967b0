package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrSynthesisFailed indicates synthesis operation failed.
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrEngineNotAvailable indicates the selected engine is not installed.
	ErrEngineNotAvailable = errors.New("selected TTS engine is not available")

	// ErrInvalidEngine indicates an unknown engine was specified.
	ErrInvalidEngine = errors.New("invalid TTS engine specified")

	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong is returned when a single chunk exceeds the engine limit.
	ErrTextTooLong = errors.New("text too long for engine")

	// ErrTimeout indicates an engine call ran past its deadline.
	ErrTimeout = errors.New("synthesis timed out")
)

// SynthesisError reports a failed rendering of a whole document.
type SynthesisError struct {
	Engine   string
	Speed    float64
	Attempts int
	Cause    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis at %.2fx failed after %d attempt(s): %v", e.Engine, e.Speed, e.Attempts, e.Cause)
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrSynthesisFailed) true for every SynthesisError.
func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesisFailed }

// IsRetryable reports whether trying the same call again could succeed.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrTextTooLong),
		errors.Is(err, ErrEngineNotAvailable), errors.Is(err, ErrInvalidEngine):
		return false
	default:
		return true
	}
}
