package blobstore

import (
	"container/list"
	"sync"
)

// memoryTier is an LRU of blobs bounded by total payload bytes. Blobs for
// which pinned reports true are never evicted.
type memoryTier struct {
	capacity int64
	size     int64
	pinned   func(id string) bool

	items    map[string]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats
}

type memoryEntry struct {
	id   string
	blob Blob
}

func newMemoryTier(capacity int64, pinned func(id string) bool) *memoryTier {
	if pinned == nil {
		pinned = func(string) bool { return false }
	}
	return &memoryTier{
		capacity: capacity,
		pinned:   pinned,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats:    Stats{Capacity: capacity},
	}
}

func (m *memoryTier) get(id string) (Blob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[id]
	if !ok {
		m.stats.Misses++
		return Blob{}, false
	}
	m.eviction.MoveToFront(elem)
	m.stats.Hits++
	return elem.Value.(*memoryEntry).blob, true
}

func (m *memoryTier) put(id string, b Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[id]; ok {
		m.removeElement(elem)
	}
	if b.Size() > m.capacity {
		return ErrTooLarge
	}
	for elem := m.eviction.Back(); elem != nil && m.size+b.Size() > m.capacity; {
		prev := elem.Prev()
		if !m.pinned(elem.Value.(*memoryEntry).id) {
			m.removeElement(elem)
			m.stats.Evictions++
		}
		elem = prev
	}
	if m.size+b.Size() > m.capacity {
		return ErrFull
	}
	m.items[id] = m.eviction.PushFront(&memoryEntry{id: id, blob: b})
	m.size += b.Size()
	return nil
}

func (m *memoryTier) delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[id]
	if ok {
		m.removeElement(elem)
	}
	return ok
}

func (m *memoryTier) snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Size = m.size
	s.Count = int64(len(m.items))
	return s
}

// removeElement must be called with the lock held.
func (m *memoryTier) removeElement(elem *list.Element) {
	m.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(m.items, entry.id)
	m.size -= entry.blob.Size()
}
