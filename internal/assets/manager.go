// Package assets stores the assets imported by mods, keyed by mod identity
// and logical name.
package assets

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAssetExists is returned when a (mod, name) pair is registered twice.
var ErrAssetExists = errors.New("asset already registered")

// ErrAssetNotFound is returned when a lookup yields no asset.
var ErrAssetNotFound = errors.New("asset not found")

// Key identifies an asset.
type Key struct {
	ModID string
	Name  string
}

// String renders the key as "<mod>/<name>".
func (k Key) String() string {
	return k.ModID + "/" + k.Name
}

// Manager is a concurrency-safe asset store.
type Manager struct {
	mu     sync.RWMutex
	assets map[Key]any
	byMod  map[string][]string
}

// NewManager creates an empty Manager.
//
// Postcondition: Returns a non-nil Manager with no assets.
func NewManager() *Manager {
	return &Manager{
		assets: make(map[Key]any),
		byMod:  make(map[string][]string),
	}
}

// RegisterAsset stores asset under (modID, name).
//
// Precondition: modID and name must be non-empty.
// Postcondition: Returns ErrAssetExists if the key is taken; the stored asset is unchanged.
func (m *Manager) RegisterAsset(modID, name string, asset any) error {
	if modID == "" || name == "" {
		return fmt.Errorf("registering asset %q for mod %q: mod id and name must be non-empty", name, modID)
	}
	k := Key{ModID: modID, Name: name}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.assets[k]; exists {
		return fmt.Errorf("%s: %w", k, ErrAssetExists)
	}
	m.assets[k] = asset
	m.byMod[modID] = append(m.byMod[modID], name)
	return nil
}

// Get returns the asset stored under (modID, name).
func (m *Manager) Get(modID, name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[Key{ModID: modID, Name: name}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", modID, name, ErrAssetNotFound)
	}
	return a, nil
}

// Names returns the asset names registered for modID in registration order.
func (m *Manager) Names(modID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.byMod[modID]...)
}

// Mods returns every mod id with at least one asset, sorted.
func (m *Manager) Mods() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byMod))
	for id := range m.byMod {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of stored assets.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// CountByMod returns the number of assets stored for modID.
func (m *Manager) CountByMod(modID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byMod[modID])
}
