package blobstore

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Options configures a Store.
type Options struct {
	// MemoryCapacity bounds the in-memory tier in bytes.
	MemoryCapacity int64
	// DiskPath enables the disk tier when non-empty.
	DiskPath string
	// DiskCapacity bounds the disk tier in bytes.
	DiskCapacity int64
	// CompressionLevel is the zstd level for the disk tier; 0 disables it.
	CompressionLevel int
}

// DefaultOptions keeps 64 MiB in memory and no disk tier.
func DefaultOptions() Options {
	return Options{
		MemoryCapacity:   64 << 20,
		DiskCapacity:     512 << 20,
		CompressionLevel: 3,
	}
}

// Store holds blobs in memory, backed by an optional disk tier. Blobs that
// fall out of memory are still served from disk.
//
// Pinned blobs are never evicted from the last tier that holds them. A put
// that could only fit by evicting pinned blobs fails with ErrFull.
type Store struct {
	memory *memoryTier
	disk   *diskTier

	pinMu  sync.RWMutex
	pinned map[string]struct{}

	logger *log.Logger
}

// NewStore creates a store.
func NewStore(opts Options) (*Store, error) {
	if opts.MemoryCapacity <= 0 {
		opts.MemoryCapacity = DefaultOptions().MemoryCapacity
	}
	s := &Store{
		pinned: make(map[string]struct{}),
		logger: log.WithPrefix("blobstore"),
	}
	if opts.DiskPath != "" {
		if opts.DiskCapacity <= 0 {
			opts.DiskCapacity = DefaultOptions().DiskCapacity
		}
		d, err := newDiskTier(opts.DiskPath, opts.DiskCapacity, opts.CompressionLevel, s.isPinned)
		if err != nil {
			return nil, err
		}
		s.disk = d
		// Disk keeps pinned blobs, so memory stays a plain cache.
		s.memory = newMemoryTier(opts.MemoryCapacity, nil)
	} else {
		s.memory = newMemoryTier(opts.MemoryCapacity, s.isPinned)
	}
	return s, nil
}

// Put stores data and returns its blob:// reference. The blob may be
// evicted to make room for later ones.
func (s *Store) Put(data []byte, contentType string) (string, error) {
	return s.put(data, contentType, false)
}

// PutPinned stores data like Put but keeps it until Unpin is called.
func (s *Store) PutPinned(data []byte, contentType string) (string, error) {
	return s.put(data, contentType, true)
}

// Unpin makes the blob behind url evictable again. Unpinning an unknown or
// unpinned blob is a no-op.
func (s *Store) Unpin(url string) {
	id, err := ID(url)
	if err != nil {
		return
	}
	s.pinMu.Lock()
	delete(s.pinned, id)
	s.pinMu.Unlock()
}

// Pinned reports whether the blob behind url is pinned.
func (s *Store) Pinned(url string) bool {
	id, err := ID(url)
	if err != nil {
		return false
	}
	return s.isPinned(id)
}

func (s *Store) isPinned(id string) bool {
	s.pinMu.RLock()
	defer s.pinMu.RUnlock()
	_, ok := s.pinned[id]
	return ok
}

func (s *Store) put(data []byte, contentType string, pin bool) (string, error) {
	id := uuid.NewString()
	if pin {
		s.pinMu.Lock()
		s.pinned[id] = struct{}{}
		s.pinMu.Unlock()
	}
	b := Blob{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		Created:     time.Now(),
	}

	// With a disk tier, memory is best effort.
	err := s.memory.put(id, b)
	if s.disk != nil {
		err = s.disk.put(id, b)
	}
	if err != nil {
		s.memory.delete(id)
		s.pinMu.Lock()
		delete(s.pinned, id)
		s.pinMu.Unlock()
		return "", err
	}

	s.logger.Debug("Stored blob", "id", id, "bytes", len(data), "type", contentType)
	return URL(id), nil
}

// Get returns the blob behind url.
func (s *Store) Get(url string) (Blob, error) {
	id, err := ID(url)
	if err != nil {
		return Blob{}, err
	}
	if b, ok := s.memory.get(id); ok {
		return b, nil
	}
	if s.disk != nil {
		if b, ok := s.disk.get(id); ok {
			if err := s.memory.put(id, b); err != nil && !errors.Is(err, ErrTooLarge) && !errors.Is(err, ErrFull) {
				s.logger.Warn("Failed to promote blob", "id", id, "err", err)
			}
			return b, nil
		}
	}
	return Blob{}, ErrNotFound
}

// Delete drops the blob behind url. Deleting an unknown blob is not an error.
func (s *Store) Delete(url string) error {
	id, err := ID(url)
	if err != nil {
		return err
	}
	s.memory.delete(id)
	s.pinMu.Lock()
	delete(s.pinned, id)
	s.pinMu.Unlock()
	if s.disk != nil {
		if _, err := s.disk.delete(id); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns counters per tier. The disk entry is absent without a disk
// tier.
func (s *Store) Stats() map[Tier]Stats {
	out := map[Tier]Stats{TierMemory: s.memory.snapshot()}
	if s.disk != nil {
		out[TierDisk] = s.disk.snapshot()
	}
	return out
}

// Close flushes the disk index.
func (s *Store) Close() error {
	if s.disk == nil {
		return nil
	}
	return s.disk.close()
}
