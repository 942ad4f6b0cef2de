package prayer

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a prayer id is not in the catalog.
var ErrNotFound = errors.New("prayer not found")

//go:embed default_catalog.yml
var defaultCatalog []byte

type catalogFile struct {
	Prayers []Prayer `yaml:"prayers"`
}

// Catalog is a concurrency-safe set of prayers that keeps insertion order.
type Catalog struct {
	mu      sync.RWMutex
	order   []string
	prayers map[string]Prayer
}

// NewCatalog creates a catalog holding the given prayers.
func NewCatalog(prayers ...Prayer) *Catalog {
	c := &Catalog{prayers: make(map[string]Prayer)}
	for _, p := range prayers {
		c.putLocked(p)
	}
	return c
}

// DefaultCatalog returns the catalog shipped with the binary.
func DefaultCatalog() (*Catalog, error) {
	prayers, err := ParseCatalog(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}
	return NewCatalog(prayers...), nil
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	prayers, err := readCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(prayers...), nil
}

func readCatalogFile(path string) ([]Prayer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read catalog: %w", err)
	}
	prayers, err := ParseCatalog(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prayers, nil
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(b []byte) ([]Prayer, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unable to parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Prayers))
	for i, p := range f.Prayers {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("prayer #%d has no id", i+1)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate prayer id %q", p.ID)
		}
		seen[p.ID] = true
		p.Lyrics = norm.NFC.String(strings.TrimSpace(p.Lyrics))
		p.Name = norm.NFC.String(strings.TrimSpace(p.Name))
		p.Language = Language(strings.ToLower(string(p.Language)))
		p.Category = Category(strings.ToLower(string(p.Category)))
		f.Prayers[i] = p
	}
	return f.Prayers, nil
}

// Get returns the prayer with the given id.
func (c *Catalog) Get(id string) (Prayer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prayers[id]
	if !ok {
		return Prayer{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List returns all prayers in catalog order.
func (c *Catalog) List() []Prayer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Prayer, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.prayers[id])
	}
	return out
}

// Len returns the number of prayers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Put adds or replaces a prayer.
func (c *Catalog) Put(p Prayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(p)
}

func (c *Catalog) putLocked(p Prayer) {
	if _, ok := c.prayers[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.prayers[p.ID] = p
}

// SetAudioURL attaches a recording to a prayer.
func (c *Catalog) SetAudioURL(id, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prayers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.AudioURL = url
	c.prayers[id] = p
	return nil
}

// CompareAndSetAudioURL replaces the recording only if it still equals old.
func (c *Catalog) CompareAndSetAudioURL(id, old, url string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prayers[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if p.AudioURL != old {
		return false, nil
	}
	p.AudioURL = url
	c.prayers[id] = p
	return true, nil
}

// Replace swaps the catalog contents. Recordings attached at runtime survive
// for prayers whose new entry does not name its own audio URL.
func (c *Catalog) Replace(prayers []Prayer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.prayers
	c.prayers = make(map[string]Prayer, len(prayers))
	c.order = c.order[:0]
	for _, p := range prayers {
		if prev, ok := old[p.ID]; ok && p.AudioURL == "" {
			p.AudioURL = prev.AudioURL
		}
		c.putLocked(p)
	}
}
