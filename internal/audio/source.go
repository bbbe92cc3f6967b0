package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// ErrEmptyAudio is returned when a waveform has no samples.
var ErrEmptyAudio = errors.New("audio data is empty")

// Source is an immutable decoded waveform together with the file that backs it.
type Source struct {
	ID     string
	Path   string
	Format beep.Format
	// Speed is the playback multiplier the waveform was rendered at.
	Speed float64

	buffer   *beep.Buffer
	duration time.Duration
}

// NewSource wraps raw 16-bit mono PCM. The caller is responsible for writing
// the backing file with WriteWAV.
func NewSource(id, path string, pcm []byte, sampleRate int, speed float64) *Source {
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	buf := beep.NewBuffer(format)
	buf.Append(newPCMStream(pcm))

	return &Source{
		ID:       id,
		Path:     path,
		Format:   format,
		Speed:    speed,
		buffer:   buf,
		duration: format.SampleRate.D(buf.Len()),
	}
}

// Load decodes a WAV file from disk.
func Load(id, path string, speed float64) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode wav: %w", err)
	}
	defer streamer.Close() //nolint:errcheck

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("unable to read wav samples: %w", err)
	}

	return &Source{
		ID:       id,
		Path:     path,
		Format:   format,
		Speed:    speed,
		buffer:   buf,
		duration: format.SampleRate.D(buf.Len()),
	}, nil
}

// WriteWAV encodes the source into its backing file. The write goes to a
// temporary file first and is renamed into place.
func WriteWAV(src *Source) error {
	if src.buffer.Len() == 0 {
		return ErrEmptyAudio
	}
	if err := os.MkdirAll(filepath.Dir(src.Path), 0o755); err != nil {
		return fmt.Errorf("unable to create audio directory: %w", err)
	}

	tmp := src.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("unable to create audio file: %w", err)
	}

	err = wav.Encode(f, src.buffer.Streamer(0, src.buffer.Len()), src.Format)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("unable to encode wav: %w", err)
	}

	return os.Rename(tmp, src.Path)
}

// Duration returns the length of the waveform.
func (s *Source) Duration() time.Duration { return s.duration }

// Seconds returns the length of the waveform in seconds.
func (s *Source) Seconds() float64 { return s.duration.Seconds() }

// Frames returns the number of samples per channel.
func (s *Source) Frames() int { return s.buffer.Len() }

// Streamer returns a fresh stream positioned at offset.
func (s *Source) Streamer(offset time.Duration) beep.StreamSeeker {
	from := min(max(s.Format.SampleRate.N(offset), 0), s.buffer.Len())
	return s.buffer.Streamer(from, s.buffer.Len())
}

// Exists reports whether the backing file is still on disk.
func (s *Source) Exists() bool {
	if s.Path == "" {
		return false
	}
	_, err := os.Stat(s.Path)
	return err == nil
}
