package engines

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"golang.org/x/time/rate"
)

const (
	gttsBinary      = "gtts-cli"
	gttsMaxTextSize = 5000
	gttsDefaultRate = 44100
)

// GTTS synthesizes through Google Translate's TTS using gtts-cli, then
// decodes the MP3 with ffmpeg. Speed is applied by ffmpeg's atempo filter.
type GTTS struct {
	language   string
	tld        string
	slow       bool
	sampleRate int
	limiter    *rate.Limiter
}

// GTTSConfig holds configuration for the gTTS engine.
type GTTSConfig struct {
	// Language code, defaults to "en".
	Language string

	// TLD selects the Google host, e.g. "co.uk" for a British accent.
	TLD string

	// Slow passes --slow to gtts-cli.
	Slow bool

	// SampleRate of the decoded PCM, defaults to 44100.
	SampleRate int

	// RequestsPerMinute throttles calls to avoid being blocked, defaults to 50.
	RequestsPerMinute int
}

// NewGTTS creates a gTTS engine.
func NewGTTS(config GTTSConfig) (*GTTS, error) {
	if config.Language == "" {
		config.Language = "en"
	}
	if config.SampleRate == 0 {
		config.SampleRate = gttsDefaultRate
	}
	if config.SampleRate < 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", config.SampleRate)
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 50
	}

	return &GTTS{
		language:   config.Language,
		tld:        config.TLD,
		slow:       config.Slow,
		sampleRate: config.SampleRate,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
	}, nil
}

// Args returns the gtts-cli command line. Text is read from stdin.
func (e *GTTS) Args() []string {
	args := []string{"-", "-l", e.language}
	if e.tld != "" {
		args = append(args, "--tld", e.tld)
	}
	if e.slow {
		args = append(args, "--slow")
	}
	return append(args, "-o", "-")
}

// Synthesize implements tts.Engine.
func (e *GTTS) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if err := checkText(text, gttsMaxTextSize); err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3, err := run(ctx, strings.NewReader(text), gttsBinary, e.Args()...)
	if err != nil {
		return nil, fmt.Errorf("mp3 generation failed: %w", err)
	}
	return decodeToPCM(ctx, mp3, e.sampleRate, speed)
}

// Info implements tts.Engine.
func (e *GTTS) Info() tts.EngineInfo {
	voice := e.language
	if e.tld != "" {
		voice += "@" + e.tld
	}
	if e.slow {
		voice += "-slow"
	}
	return tts.EngineInfo{
		Name:        "gtts",
		Voice:       voice,
		SampleRate:  e.sampleRate,
		MaxTextSize: gttsMaxTextSize,
		IsOnline:    true,
	}
}

// Validate checks gtts-cli and ffmpeg are installed.
func (e *GTTS) Validate() error {
	if err := lookPath(gttsBinary); err != nil {
		return fmt.Errorf("%w (install with: pip install gtts)", err)
	}
	return lookPath(ffmpegBinary)
}

// Close implements tts.Engine.
func (e *GTTS) Close() error { return nil }

// Language is a gTTS language code and its display name.
type Language struct {
	Code string
	Name string
}

// Languages asks gtts-cli for the languages it supports.
func Languages(ctx context.Context) ([]Language, error) {
	out, err := run(ctx, nil, gttsBinary, "--all")
	if err != nil {
		return nil, err
	}
	return parseLanguages(out), nil
}

// parseLanguages reads lines of the form "  en: English".
func parseLanguages(out []byte) []Language {
	var langs []Language
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		code, name, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || code == "" {
			continue
		}
		langs = append(langs, Language{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)})
	}
	return langs
}

var _ tts.Engine = (*GTTS)(nil)
