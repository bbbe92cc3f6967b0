package audio

import (
	"io"

	"github.com/gopxl/beep/v2"
)

// pcmStream implements beep.StreamSeeker over raw 16-bit little-endian mono PCM.
type pcmStream struct {
	data     []byte
	position int
}

func newPCMStream(data []byte) *pcmStream {
	// Drop a trailing odd byte; it is half a sample.
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	return &pcmStream{data: data}
}

func (s *pcmStream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.position >= len(s.data) {
		return 0, false
	}

	for i := range samples {
		if s.position+1 >= len(s.data) {
			return i, true
		}

		sample := float64(int16(s.data[s.position])|int16(s.data[s.position+1])<<8) / 32768.0
		samples[i][0] = sample
		samples[i][1] = sample

		s.position += 2
	}

	return len(samples), true
}

func (s *pcmStream) Err() error { return nil }

func (s *pcmStream) Len() int { return len(s.data) / 2 }

func (s *pcmStream) Position() int { return s.position / 2 }

func (s *pcmStream) Seek(p int) error {
	s.position = min(max(p*2, 0), len(s.data))
	return nil
}

// sampleReader turns a beep.Streamer into the signed 16-bit little-endian
// mono byte stream oto expects.
type sampleReader struct {
	streamer beep.Streamer
	buf      [][2]float64
}

func newSampleReader(s beep.Streamer) *sampleReader {
	return &sampleReader{streamer: s, buf: make([][2]float64, 512)}
}

func (r *sampleReader) Read(p []byte) (int, error) {
	frames := len(p) / 2
	if frames == 0 {
		return 0, nil
	}
	if frames > len(r.buf) {
		frames = len(r.buf)
	}

	n, ok := r.streamer.Stream(r.buf[:frames])
	if !ok && n == 0 {
		if err := r.streamer.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		v := (r.buf[i][0] + r.buf[i][1]) / 2
		v = min(max(v, -1), 1)
		s := int16(v * 32767)
		p[2*i] = byte(s)
		p[2*i+1] = byte(s >> 8)
	}
	return n * 2, nil
}
