package engines

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Config selects and configures an engine.
type Config struct {
	Engine string
	Piper  PiperConfig
	GTTS   GTTSConfig
	Mock   MockConfig
}

// New builds the engine named by config.Engine.
func New(config Config) (tts.Engine, error) {
	switch strings.ToLower(config.Engine) {
	case "piper":
		return NewPiper(config.Piper)
	case "gtts", "google":
		return NewGTTS(config.GTTS)
	case "mock":
		return NewMock(config.Mock), nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: piper, gtts, mock)", tts.ErrInvalidEngine, config.Engine)
	}
}
