package engines

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const ffmpegBinary = "ffmpeg"

// pcmArgs decodes whatever arrives on stdin to s16le mono at rate, applying
// the atempo chain for speed.
func pcmArgs(rate int, speed float64) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", "1",
	}
	if filter := tts.AtempoFilter(speed); filter != "" {
		args = append(args, "-filter:a", filter)
	}
	return append(args, "pipe:1")
}

func decodeToPCM(ctx context.Context, encoded []byte, rate int, speed float64) ([]byte, error) {
	pcm, err := run(ctx, bytes.NewReader(encoded), ffmpegBinary, pcmArgs(rate, speed)...)
	if err != nil {
		return nil, fmt.Errorf("converting to PCM: %w", err)
	}
	return pcm, nil
}

// MP3Args returns the ffmpeg command line that transcodes the WAV at path to
// MP3 on stdout.
func MP3Args(path string, bitrate string) []string {
	if bitrate == "" {
		bitrate = "128k"
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		"pipe:1",
	}
}

// ToMP3 transcodes the WAV file at path to MP3 bytes.
func ToMP3(ctx context.Context, path string) ([]byte, error) {
	if err := lookPath(ffmpegBinary); err != nil {
		return nil, err
	}
	data, err := run(ctx, nil, ffmpegBinary, MP3Args(path, "")...)
	if err != nil {
		return nil, fmt.Errorf("exporting mp3: %w", err)
	}
	return data, nil
}
