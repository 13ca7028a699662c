// Package loading holds the loading-action registry: the ordered per-mod and
// host-wide actions that mods register during initialization and that the
// startup flow executes afterwards.
package loading

import (
	"context"

	"go.uber.org/zap"
)

// Mod is the per-mod context an action runs against.
type Mod interface {
	// PluginFolder is the mod's root folder on disk.
	PluginFolder() string
	// ModID is the identity assets are registered under.
	ModID() string
	// Name is the display name used in action labels.
	Name() string
	// Logger is the mod's logging sink.
	Logger() *zap.Logger
}

// AssetRegistrar stores imported assets under a mod's identity.
//
// Implementations must be safe for concurrent calls with distinct
// (modID, name) keys.
type AssetRegistrar interface {
	RegisterAsset(modID, name string, asset any) error
}

// AddressableResolver resolves engine assets by label and invokes fn once per
// resolved asset.
type AddressableResolver interface {
	Resolve(ctx context.Context, label string, fn func(asset any)) error
}

// ImportedAsset is one (logical name, asset object) pair produced from a file.
type ImportedAsset struct {
	Name  string
	Asset any
}

// ImportFunc converts the file at path into zero or more assets. key is the
// normalized asset path key of the file.
type ImportFunc func(path, key string) ([]ImportedAsset, error)

// ModAction is a per-mod loading action. It is bound to each mod when the
// startup flow runs.
type ModAction interface {
	Name() string
	Run(ctx context.Context, m Mod) error
}

// GeneralAction is a host-wide loading action not bound to any mod.
type GeneralAction interface {
	Name() string
	Run(ctx context.Context) error
}

// Runnable is a deferred unit of startup work ready to execute.
type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}
