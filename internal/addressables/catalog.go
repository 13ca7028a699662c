// Package addressables provides an in-process catalog of assets addressed by
// string label rather than by file path.
package addressables

import (
	"context"
	"sort"
	"sync"
)

// Catalog maps labels to the assets carrying them, in insertion order.
type Catalog struct {
	mu     sync.RWMutex
	labels map[string][]any
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{labels: make(map[string][]any)}
}

// Add appends asset under label.
func (c *Catalog) Add(label string, asset any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels[label] = append(c.labels[label], asset)
}

// Labels returns every known label, sorted.
func (c *Catalog) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.labels))
	for l := range c.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Resolve calls fn once for each asset carrying label. An unknown label
// resolves to nothing.
//
// Postcondition: Returns ctx.Err() if the context ends before every asset is dispatched.
func (c *Catalog) Resolve(ctx context.Context, label string, fn func(asset any)) error {
	c.mu.RLock()
	resolved := append([]any(nil), c.labels[label]...)
	c.mu.RUnlock()

	for _, a := range resolved {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(a)
	}
	return nil
}
