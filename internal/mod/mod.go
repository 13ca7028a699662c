// Package mod discovers installed mod packages and exposes each one as the
// per-mod context loading actions run against.
package mod

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/modloader/internal/manifest"
	"github.com/cory-johannsen/modloader/internal/observability"
)

// Mod is one installed mod package.
type Mod struct {
	folder   string
	manifest *manifest.Manifest
	logger   *zap.Logger
}

// New creates a Mod rooted at folder.
//
// Precondition: m must be a validated manifest; logger must be non-nil.
// Postcondition: The mod's logger carries the mod identity as the "mod" field.
func New(folder string, m *manifest.Manifest, logger *zap.Logger) *Mod {
	return &Mod{
		folder:   folder,
		manifest: m,
		logger:   observability.ForMod(logger, m.Identity(), m.Name),
	}
}

// PluginFolder returns the mod's root folder.
func (m *Mod) PluginFolder() string { return m.folder }

// ModID returns the identity assets are registered under.
func (m *Mod) ModID() string { return m.manifest.Identity() }

// Name returns the manifest display name.
func (m *Mod) Name() string { return m.manifest.Name }

// Logger returns the mod's logger.
func (m *Mod) Logger() *zap.Logger { return m.logger }

// Manifest returns the mod's manifest.
func (m *Mod) Manifest() *manifest.Manifest { return m.manifest }

// Discover loads every mod found directly under dir, sorted by folder name.
// Folders without a manifest are ignored; folders with an invalid manifest
// or a duplicate identity are logged and skipped.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the loadable mods or an error if dir cannot be read.
func Discover(dir string, logger *zap.Logger) ([]*Mod, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading mods directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seen := make(map[string]string)
	var mods []*Mod
	for _, name := range names {
		folder := filepath.Join(dir, name)
		m, err := manifest.LoadDir(folder)
		if err != nil {
			if errors.Is(err, manifest.ErrNoManifest) {
				logger.Debug("skipping folder without manifest", zap.String("folder", folder))
				continue
			}
			logger.Error("invalid mod manifest",
				zap.String("folder", folder),
				zap.Error(err),
			)
			continue
		}
		id := m.Identity()
		if prev, dup := seen[id]; dup {
			logger.Error("duplicate mod identity",
				zap.String("mod", id),
				zap.String("folder", folder),
				zap.String("first_folder", prev),
			)
			continue
		}
		seen[id] = folder
		mods = append(mods, New(folder, m, logger))
	}
	return mods, nil
}
