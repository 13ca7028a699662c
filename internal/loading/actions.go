package loading

import (
	"context"
	"errors"
	"fmt"
)

// ModCallbackAction runs a caller-supplied function for each mod.
type ModCallbackAction struct {
	name string
	fn   func(ctx context.Context, m Mod) error
}

// Name returns the action's display label.
func (a *ModCallbackAction) Name() string { return a.name }

// Run invokes the callback. Its error is returned unchanged.
func (a *ModCallbackAction) Run(ctx context.Context, m Mod) error {
	return a.fn(ctx, m)
}

// ActionFunc adapts a named function into a GeneralAction.
type ActionFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

// Name returns the action's display label.
func (a ActionFunc) Name() string { return a.Label }

// Run invokes Fn.
func (a ActionFunc) Run(ctx context.Context) error { return a.Fn(ctx) }

// ErrNoAddressableResolver is returned when an addressable action runs on a
// Registry constructed without a resolver.
var ErrNoAddressableResolver = errors.New("no addressable resolver configured")

// AddressableAction resolves a label and passes every asset of type T to fn.
// Assets of other types are skipped.
type AddressableAction[T any] struct {
	name     string
	label    string
	fn       func(context.Context, T)
	resolver AddressableResolver
}

// Name returns the action's display label.
func (a *AddressableAction[T]) Name() string { return a.name }

// Label returns the addressable label the action resolves.
func (a *AddressableAction[T]) Label() string { return a.label }

// Run resolves the label and dispatches matching assets.
func (a *AddressableAction[T]) Run(ctx context.Context) error {
	if a.resolver == nil {
		return fmt.Errorf("addressables %q: %w", a.label, ErrNoAddressableResolver)
	}
	return a.resolver.Resolve(ctx, a.label, func(asset any) {
		if v, ok := asset.(T); ok {
			a.fn(ctx, v)
		}
	})
}
