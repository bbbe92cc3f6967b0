package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrItemTooLarge is returned when an item exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Level identifies a cache tier.
type Level int

const (
	LevelMemory Level = iota
	LevelDisk
)

func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds counters for one cache tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config holds configuration for the cache manager.
type Config struct {
	MemoryCapacity   int64 // Bytes, 0 disables L1
	DiskCapacity     int64 // Bytes, 0 disables L2
	DiskPath         string
	CompressionLevel int // zstd level, 0 disables compression
	TTL              time.Duration
	CleanupInterval  time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Key derives a cache key from everything that changes the rendered audio.
func Key(engine, voice, text string, speed float64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%.2f|", engine, voice, speed)
	h.Write([]byte(strings.TrimSpace(text)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
