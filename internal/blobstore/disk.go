package blobstore

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "blobs.index"

// diskTier persists blobs as files under dir, zstd-compressed when that
// saves space, with a gob index next to them.
type diskTier struct {
	dir      string
	capacity int64
	size     int64
	pinned   func(id string) bool

	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	ID           string
	File         string
	ContentType  string
	Size         int64 // on disk
	OriginalSize int64
	Created      time.Time
	LastAccess   time.Time
	Compressed   bool
}

func newDiskTier(dir string, capacity int64, level int, pinned func(id string) bool) (*diskTier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	d := &diskTier{
		dir:      dir,
		capacity: capacity,
		pinned:   pinned,
		compress: level > 0,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	var err error
	if d.pinned == nil {
		d.pinned = func(string) bool { return false }
	}
	if d.compress {
		d.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// The decoder is needed even with compression off, for blobs written
	// by an earlier run that had it on.
	d.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := d.loadIndex(); err != nil {
		d.index = make(map[string]*diskEntry)
	}
	for id, e := range d.index {
		if _, err := os.Stat(e.File); err != nil {
			delete(d.index, id)
			continue
		}
		d.size += e.Size
	}
	return d, nil
}

func (d *diskTier) get(id string) (Blob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[id]
	if !ok {
		d.stats.Misses++
		return Blob{}, false
	}
	data, err := os.ReadFile(e.File)
	if err == nil && e.Compressed {
		data, err = d.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		d.removeLocked(id)
		d.stats.Misses++
		return Blob{}, false
	}
	e.LastAccess = time.Now()
	d.stats.Hits++
	return Blob{Data: data, ContentType: e.ContentType, Created: e.Created}, true
}

func (d *diskTier) put(id string, b Blob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := b.Data
	compressed := false
	if d.compress && len(data) > 1024 {
		if enc := d.encoder.EncodeAll(data, nil); len(enc) < len(data) {
			data = enc
			compressed = true
		}
	}
	size := int64(len(data))

	if _, ok := d.index[id]; ok {
		d.removeLocked(id)
	}
	if size > d.capacity {
		return ErrTooLarge
	}
	for d.size+size > d.capacity {
		if !d.evictOldestLocked() {
			return ErrFull
		}
	}

	path := filepath.Join(d.dir, id+".blob")
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}
	now := time.Now()
	d.index[id] = &diskEntry{
		ID:           id,
		File:         path,
		ContentType:  b.ContentType,
		Size:         size,
		OriginalSize: b.Size(),
		Created:      b.Created,
		LastAccess:   now,
		Compressed:   compressed,
	}
	d.size += size
	if err := d.saveIndex(); err != nil {
		d.removeLocked(id)
		return fmt.Errorf("failed to save blob index: %w", err)
	}
	return nil
}

func (d *diskTier) delete(id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[id]; !ok {
		return false, nil
	}
	d.removeLocked(id)
	return true, d.saveIndex()
}

func (d *diskTier) snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Size = d.size
	s.Count = int64(len(d.index))
	return s
}

func (d *diskTier) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		_ = d.encoder.Close()
	}
	d.decoder.Close()
	return d.saveIndex()
}

func (d *diskTier) removeLocked(id string) {
	e := d.index[id]
	_ = os.Remove(e.File)
	d.size -= e.Size
	delete(d.index, id)
}

// evictOldestLocked drops the least recently used unpinned blob. It reports
// false when there is none.
func (d *diskTier) evictOldestLocked() bool {
	var oldest *diskEntry
	for _, e := range d.index {
		if d.pinned(e.ID) {
			continue
		}
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	d.removeLocked(oldest.ID)
	d.stats.Evictions++
	return true
}

func (d *diskTier) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(&d.index)
}

func (d *diskTier) saveIndex() error {
	path := filepath.Join(d.dir, indexFile)
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

// writeFile writes through a temp file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
