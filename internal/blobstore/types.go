package blobstore

import (
	"errors"
	"strings"
	"time"
)

// Scheme prefixes every local blob reference.
const Scheme = "blob://"

var (
	// ErrNotFound is returned for references the store does not hold.
	ErrNotFound = errors.New("blob not found")

	// ErrTooLarge is returned when a blob exceeds the capacity of every tier.
	ErrTooLarge = errors.New("blob too large for store")

	// ErrFull is returned when room for a blob could only be made by
	// evicting pinned blobs.
	ErrFull = errors.New("blob store is full of pinned blobs")

	// ErrInvalidURL is returned for strings that are not blob references.
	ErrInvalidURL = errors.New("not a blob reference")
)

// Blob is a stored clip.
type Blob struct {
	Data        []byte
	ContentType string
	Created     time.Time
}

// Size returns the payload size in bytes.
func (b Blob) Size() int64 {
	return int64(len(b.Data))
}

// Tier names where a blob was found.
type Tier int

const (
	TierMemory Tier = iota
	TierDisk
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds counters for one tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Count     int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// IsBlobURL reports whether url is a local blob reference.
func IsBlobURL(url string) bool {
	return strings.HasPrefix(strings.TrimSpace(url), Scheme)
}

// ID extracts the blob id from a reference.
func ID(url string) (string, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, Scheme) {
		return "", ErrInvalidURL
	}
	id := strings.TrimPrefix(url, Scheme)
	if id == "" || strings.ContainsAny(id, "/\\") {
		return "", ErrInvalidURL
	}
	return id, nil
}

// URL builds the reference for id.
func URL(id string) string {
	return Scheme + id
}
