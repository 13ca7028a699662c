package loading

import (
	"context"
	"fmt"
	"sync"
)

// Registry is the append-only set of registered loading actions.
//
// Registration normally completes before the startup flow reads the registry;
// the lock only keeps a late registration from racing a reader.
type Registry struct {
	mu           sync.RWMutex
	modActions   []ModAction
	general      []GeneralAction
	assets       AssetRegistrar
	addressables AddressableResolver
}

// NewRegistry creates an empty Registry.
//
// Precondition: assets must be non-nil. addressables may be nil when no
// addressable actions will be registered.
// Postcondition: Returns a Registry with no actions.
func NewRegistry(assets AssetRegistrar, addressables AddressableResolver) *Registry {
	return &Registry{assets: assets, addressables: addressables}
}

// AddAssetLoadingAction registers a per-mod action that imports every file
// under <mod>/assets/<subfolder>. With no extensions every file is visited;
// otherwise the folder is walked once per extension, matching "*.<ext>".
//
// Precondition: importFn must be non-nil.
// Postcondition: The action is appended after every previously registered per-mod action.
func (r *Registry) AddAssetLoadingAction(subfolder, name string, importFn ImportFunc, extensions ...string) {
	r.appendModAction(&AssetFolderAction{
		name:       name,
		subfolder:  subfolder,
		importFn:   importFn,
		extensions: append([]string(nil), extensions...),
		assets:     r.assets,
	})
}

// AddModLoadingAction registers an arbitrary per-mod callback. Errors returned
// by fn are not intercepted.
//
// Precondition: fn must be non-nil.
func (r *Registry) AddModLoadingAction(name string, fn func(ctx context.Context, m Mod) error) {
	r.appendModAction(&ModCallbackAction{name: name, fn: fn})
}

// AddGeneralLoadingAction registers a host-wide action.
//
// Precondition: action must be non-nil.
func (r *Registry) AddGeneralLoadingAction(action GeneralAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.general = append(r.general, action)
}

// AddAddressablesLoadingAction registers a general action that resolves label
// through the registry's addressable resolver and calls fn for every resolved
// asset of type T.
//
// Precondition: r was constructed with a non-nil AddressableResolver; fn must be non-nil.
func AddAddressablesLoadingAction[T any](r *Registry, name, label string, fn func(T)) {
	AddAddressablesLoadingActionContext(r, name, label, func(_ context.Context, v T) { fn(v) })
}

// AddAddressablesLoadingActionContext is AddAddressablesLoadingAction for
// callbacks that need the running step's context.
//
// Precondition: as for AddAddressablesLoadingAction.
func AddAddressablesLoadingActionContext[T any](r *Registry, name, label string, fn func(context.Context, T)) {
	r.AddGeneralLoadingAction(&AddressableAction[T]{
		name:     name,
		label:    label,
		fn:       fn,
		resolver: r.addressables,
	})
}

func (r *Registry) appendModAction(a ModAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modActions = append(r.modActions, a)
}

// ModActions binds every registered per-mod action to m.
//
// Postcondition: The result is in registration order; each Runnable is named "<mod name>: <action name>".
func (r *Registry) ModActions(m Mod) []Runnable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Runnable, 0, len(r.modActions))
	for _, a := range r.modActions {
		out = append(out, &boundAction{action: a, mod: m})
	}
	return out
}

// Actions returns a snapshot of the unbound per-mod actions in registration order.
func (r *Registry) Actions() []ModAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ModAction(nil), r.modActions...)
}

// GeneralActions returns a snapshot of the registered general actions in
// registration order.
func (r *Registry) GeneralActions() []GeneralAction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]GeneralAction(nil), r.general...)
}

// Len returns the number of per-mod and general actions registered.
func (r *Registry) Len() (modActions, general int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modActions), len(r.general)
}

// boundAction is a ModAction bound to one mod.
type boundAction struct {
	action ModAction
	mod    Mod
}

func (b *boundAction) Name() string {
	return fmt.Sprintf("%s: %s", b.mod.Name(), b.action.Name())
}

func (b *boundAction) Run(ctx context.Context) error {
	return b.action.Run(ctx, b.mod)
}
