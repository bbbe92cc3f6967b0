package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// PCMCache is the subset of cache.Manager the renderer needs.
type PCMCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte)
}

// FileStore hands out paths for rendered audio and deletes them.
type FileStore interface {
	Allocate() (id, path string)
	Remove(path string) error
}

// Renderer turns a whole document into an audio.Source at a given speed.
type Renderer struct {
	engine  Engine
	store   FileStore
	cache   PCMCache
	chunker *Chunker
	logger  *log.Logger
	workers int
	size    int
	gap     time.Duration
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithCache puts a PCM cache in front of the engine.
func WithCache(c PCMCache) RendererOption {
	return func(r *Renderer) { r.cache = c }
}

// WithWorkers bounds how many chunks are synthesized at once.
func WithWorkers(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithGap inserts silence between chunks.
func WithGap(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d >= 0 {
			r.gap = d
		}
	}
}

// WithChunkSize caps the characters sent to the engine per call.
func WithChunkSize(n int) RendererOption {
	return func(r *Renderer) {
		if n > 0 {
			r.size = n
		}
	}
}

// NewRenderer wires an engine to the scratch store.
func NewRenderer(engine Engine, store FileStore, logger *log.Logger, opts ...RendererOption) *Renderer {
	r := &Renderer{
		engine:  engine,
		store:   store,
		logger:  logger,
		workers: 2,
		size:    1000,
		gap:     150 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}

	if limit := engine.Info().MaxTextSize; limit > 0 && r.size > limit {
		r.size = limit
	}
	r.chunker = NewChunker(WithMaxChars(r.size))
	return r
}

// Engine returns the underlying engine.
func (r *Renderer) Engine() Engine { return r.engine }

// Render synthesizes text at speed, writes it to a new scratch file and
// returns the decoded source. Failures are reported as *SynthesisError.
func (r *Renderer) Render(ctx context.Context, text string, speed float64) (*audio.Source, error) {
	info := r.engine.Info()
	fail := func(err error) error {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return &SynthesisError{Engine: info.Name, Speed: speed, Attempts: 1, Cause: err}
	}

	chunks := r.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fail(ErrEmptyText)
	}

	start := time.Now()
	parts := make([][]byte, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			pcm, err := r.chunk(gctx, info, chunk, speed)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			parts[i] = pcm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fail(err)
	}

	pcm := join(parts, silence(info.SampleRate, r.gap))
	id, path := r.store.Allocate()
	src := audio.NewSource(id, path, pcm, info.SampleRate, speed)
	if err := audio.WriteWAV(src); err != nil {
		_ = r.store.Remove(path)
		return nil, fail(err)
	}

	r.logger.Info("rendered audio",
		"engine", info.Name,
		"speed", speed,
		"chunks", len(chunks),
		"duration", src.Duration().Round(time.Millisecond),
		"size", humanize.Bytes(uint64(len(pcm))),
		"took", time.Since(start).Round(time.Millisecond))
	return src, nil
}

func (r *Renderer) chunk(ctx context.Context, info EngineInfo, text string, speed float64) ([]byte, error) {
	key := cache.Key(info.Name, info.Voice, text, speed)
	if r.cache != nil {
		if pcm, ok := r.cache.Get(key); ok {
			return pcm, nil
		}
	}

	pcm, err := r.engine.Synthesize(ctx, text, speed)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Put(key, pcm)
	}
	return pcm, nil
}

func silence(sampleRate int, d time.Duration) []byte {
	n := int(d.Seconds() * float64(sampleRate))
	return make([]byte, n*2)
}

func join(parts [][]byte, sep []byte) []byte {
	size := len(sep) * (len(parts) - 1)
	for _, p := range parts {
		size += len(p) &^ 1
	}
	out := make([]byte, 0, size)
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep...)
		}
		// Keep sample alignment when an engine returns an odd byte count.
		out = append(out, p[:len(p)&^1]...)
	}
	return out
}
