package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager looks keys up in memory first, then on disk, promoting disk hits.
type Manager struct {
	memory *Memory // nil when disabled
	disk   *Disk   // nil when disabled
	config Config
	logger *log.Logger

	writes sync.WaitGroup
	stop   chan struct{}
	done   sync.WaitGroup
	once   sync.Once
}

// New builds the tiers enabled by config and starts the cleanup routine.
func New(config Config, logger *log.Logger) (*Manager, error) {
	m := &Manager{
		config: config,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if config.MemoryCapacity > 0 {
		m.memory = NewMemory(config.MemoryCapacity)
	}
	if config.DiskCapacity > 0 {
		if config.DiskPath == "" {
			return nil, errors.New("disk cache path is required")
		}
		disk, err := NewDisk(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create disk cache: %w", err)
		}
		m.disk = disk
	}

	if config.CleanupInterval > 0 && config.TTL > 0 {
		m.done.Add(1)
		go m.cleanupLoop()
	}

	logger.Debug("audio cache ready",
		"memory", humanize.IBytes(uint64(max(config.MemoryCapacity, 0))),
		"disk", humanize.IBytes(uint64(max(config.DiskCapacity, 0))),
		"path", config.DiskPath)
	return m, nil
}

// Get returns cached PCM for key.
func (m *Manager) Get(key string) ([]byte, bool) {
	if m.memory != nil {
		if data, ok := m.memory.Get(key); ok {
			return data, true
		}
	}
	if m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			if m.memory != nil {
				_ = m.memory.Put(key, data)
			}
			return data, true
		}
	}
	return nil, false
}

// Put stores PCM in memory immediately and on disk in the background.
func (m *Manager) Put(key string, value []byte) {
	if m.memory != nil {
		if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			m.logger.Warn("memory cache put failed", "err", err)
		}
	}
	if m.disk == nil {
		return
	}

	m.writes.Add(1)
	go func() {
		defer m.writes.Done()
		if err := m.disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
			m.logger.Warn("disk cache put failed", "err", err)
		}
	}()
}

// Stats returns counters per enabled tier.
func (m *Manager) Stats() map[Level]Stats {
	out := make(map[Level]Stats, 2)
	if m.memory != nil {
		out[LevelMemory] = m.memory.Stats()
	}
	if m.disk != nil {
		out[LevelDisk] = m.disk.Stats()
	}
	return out
}

// Close waits for pending disk writes and saves the disk index.
func (m *Manager) Close() error {
	var err error
	m.once.Do(func() {
		close(m.stop)
		m.done.Wait()
		m.writes.Wait()
		if m.disk != nil {
			if cerr := m.disk.Close(); cerr != nil {
				err = fmt.Errorf("failed to close disk cache: %w", cerr)
			}
		}
	})
	return err
}

func (m *Manager) cleanupLoop() {
	defer m.done.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) cleanup() {
	var pruned int
	if m.memory != nil {
		pruned += m.memory.Prune(m.config.TTL)
	}
	if m.disk != nil {
		pruned += m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	}
	if pruned > 0 {
		m.logger.Debug("expired cached audio", "entries", pruned)
	}
}
