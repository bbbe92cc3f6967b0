package engines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	piperBinary         = "piper"
	piperMaxTextSize    = 5000
	piperDefaultRate    = 22050
	piperMaxOutputBytes = 64 << 20
)

// Piper runs the piper binary once per call with the text preloaded on stdin.
// It outputs raw 16-bit mono PCM at the model's sample rate.
type Piper struct {
	binary     string
	modelPath  string
	configPath string
	speaker    string
	sampleRate int
}

// PiperConfig holds configuration for the Piper engine.
type PiperConfig struct {
	// Binary defaults to "piper" on PATH.
	Binary string

	// ModelPath is the .onnx voice model (required).
	ModelPath string

	// ConfigPath defaults to ModelPath with a .onnx.json or .json extension.
	ConfigPath string

	// Speaker selects a speaker id in multi-speaker models.
	Speaker string

	// SampleRate overrides the rate read from the model config.
	SampleRate int
}

type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// NewPiper creates a Piper engine. The model file must exist.
func NewPiper(config PiperConfig) (*Piper, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}

	if config.Binary == "" {
		config.Binary = piperBinary
	}
	if config.ConfigPath == "" {
		config.ConfigPath = modelConfigPath(config.ModelPath)
	}
	if config.SampleRate == 0 {
		config.SampleRate = readSampleRate(config.ConfigPath)
	}

	return &Piper{
		binary:     config.Binary,
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		speaker:    config.Speaker,
		sampleRate: config.SampleRate,
	}, nil
}

func modelConfigPath(model string) string {
	if _, err := os.Stat(model + ".json"); err == nil {
		return model + ".json"
	}
	return strings.TrimSuffix(model, filepath.Ext(model)) + ".json"
}

// readSampleRate falls back to 22050 when the model config is missing or
// has no rate.
func readSampleRate(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return piperDefaultRate
	}
	var cfg piperModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.Audio.SampleRate <= 0 {
		return piperDefaultRate
	}
	return cfg.Audio.SampleRate
}

// Args returns the command line used for a call at speed.
func (e *Piper) Args(speed float64) []string {
	args := []string{
		"--model", e.modelPath,
		"--config", e.configPath,
		"--output-raw",
		"--length-scale", tts.LengthScale(speed),
	}
	if e.speaker != "" {
		args = append(args, "--speaker", e.speaker)
	}
	return args
}

// Synthesize implements tts.Engine.
func (e *Piper) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if err := checkText(text, piperMaxTextSize); err != nil {
		return nil, err
	}

	pcm, err := run(ctx, strings.NewReader(text), e.binary, e.Args(speed)...)
	if err != nil {
		return nil, err
	}
	if len(pcm) > piperMaxOutputBytes {
		return nil, fmt.Errorf("piper output too large: %d bytes", len(pcm))
	}
	return pcm, nil
}

// Info implements tts.Engine.
func (e *Piper) Info() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        "piper",
		Voice:       strings.TrimSuffix(filepath.Base(e.modelPath), ".onnx") + speakerSuffix(e.speaker),
		SampleRate:  e.sampleRate,
		MaxTextSize: piperMaxTextSize,
		IsOnline:    false,
	}
}

func speakerSuffix(s string) string {
	if s == "" {
		return ""
	}
	return "#" + s
}

// Validate checks the binary and model are usable.
func (e *Piper) Validate() error {
	if err := lookPath(e.binary); err != nil {
		return err
	}
	if _, err := os.Stat(e.modelPath); err != nil {
		return fmt.Errorf("model file not accessible: %w", err)
	}
	return nil
}

// Close implements tts.Engine. Piper holds no resources between calls.
func (e *Piper) Close() error { return nil }

// Voice describes an installed Piper model.
type Voice struct {
	Name       string
	ModelPath  string
	SampleRate int
}

// ListVoices returns the .onnx models found directly under dir, sorted by name.
func ListVoices(dir string) ([]Voice, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading voices dir: %w", err)
	}

	var voices []Voice
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".onnx" {
			continue
		}
		model := filepath.Join(dir, entry.Name())
		voices = append(voices, Voice{
			Name:       strings.TrimSuffix(entry.Name(), ".onnx"),
			ModelPath:  model,
			SampleRate: readSampleRate(modelConfigPath(model)),
		})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices, nil
}

var _ tts.Engine = (*Piper)(nil)
