package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexName = "index.gob"

// Disk persists PCM chunks across runs, compressed with zstd.
type Disk struct {
	mu       sync.Mutex
	dir      string
	capacity int64
	size     int64
	index    map[string]*diskEntry
	stats    Stats

	encoder *zstd.Encoder // nil when compression is off
	decoder *zstd.Decoder
}

// diskEntry is persisted in the gob index; fields must stay exported.
type diskEntry struct {
	File       string
	Size       int64 // on disk
	Compressed bool
	Stored     time.Time
	LastAccess time.Time
}

// NewDisk opens or creates a disk cache rooted at dir.
func NewDisk(dir string, capacity int64, compressionLevel int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	var err error
	if compressionLevel > 0 {
		d.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// The decoder is always available so entries written with compression
	// on can still be read after it is turned off.
	d.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := d.loadIndex(); err != nil {
		d.index = make(map[string]*diskEntry)
	}
	d.reconcile()

	return d, nil
}

// Get reads and decompresses the value for key.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, entry.File))
	if err == nil && entry.Compressed {
		data, err = d.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		d.dropLocked(key)
		d.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put writes value to disk, compressing it when that makes it smaller.
func (d *Disk) Put(key string, value []byte) error {
	data, compressed := value, false
	if d.encoder != nil && len(value) > 1024 {
		if c := d.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, compressed = c, true
		}
	}
	size := int64(len(data))
	if size > d.capacity {
		return ErrItemTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[key]; ok {
		d.dropLocked(key)
	}
	d.evictLocked(d.capacity - size)

	file := key + ".pcm"
	if err := writeAtomic(filepath.Join(d.dir, file), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{File: file, Size: size, Compressed: compressed, Stored: now, LastAccess: now}
	d.size += size
	return nil
}

// RemoveOlderThan drops entries stored before cutoff.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, entry := range d.index {
		if entry.Stored.Before(cutoff) {
			d.dropLocked(key)
			removed++
		}
	}
	return removed
}

// Stats returns a copy of the counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Size = d.size
	s.Items = int64(len(d.index))
	return s
}

// Close persists the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		_ = d.encoder.Close()
	}
	d.decoder.Close()
	return d.saveIndex()
}

// evictLocked removes least recently used entries until size <= target.
func (d *Disk) evictLocked(target int64) {
	if d.size <= target {
		return
	}

	keys := make([]string, 0, len(d.index))
	for k := range d.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return d.index[keys[i]].LastAccess.Before(d.index[keys[j]].LastAccess)
	})

	for _, k := range keys {
		if d.size <= target {
			return
		}
		d.dropLocked(k)
		d.stats.Evictions++
	}
}

func (d *Disk) dropLocked(key string) {
	entry, ok := d.index[key]
	if !ok {
		return
	}
	_ = os.Remove(filepath.Join(d.dir, entry.File))
	d.size -= entry.Size
	delete(d.index, key)
}

// reconcile forgets index entries whose files vanished and recomputes size.
func (d *Disk) reconcile() {
	d.size = 0
	for key, entry := range d.index {
		if _, err := os.Stat(filepath.Join(d.dir, entry.File)); errors.Is(err, fs.ErrNotExist) {
			delete(d.index, key)
			continue
		}
		d.size += entry.Size
	}
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck
	return gob.NewDecoder(f).Decode(&d.index)
}

func (d *Disk) saveIndex() error {
	path := filepath.Join(d.dir, indexName)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
