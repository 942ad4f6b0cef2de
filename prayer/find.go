package prayer

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Find resolves a query to a prayer: an exact id wins, otherwise the best
// fuzzy match against ids and names.
func Find(c *Catalog, query string) (Prayer, error) {
	query = strings.TrimSpace(query)
	if p, err := c.Get(query); err == nil {
		return p, nil
	}

	prayers := c.List()
	keys := make([]string, len(prayers))
	for i, p := range prayers {
		keys[i] = p.ID + " " + p.Name
	}
	matches := fuzzy.Find(query, keys)
	if len(matches) == 0 {
		return Prayer{}, fmt.Errorf("%w: %s", ErrNotFound, query)
	}
	return prayers[matches[0].Index], nil
}
