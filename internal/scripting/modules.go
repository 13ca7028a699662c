package scripting

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/modloader/internal/importers"
	"github.com/cory-johannsen/modloader/internal/loading"
)

// RegisterModules installs the loading, addressables, and log tables into
// vm's LState. Every function closes over vm so that registered actions call
// back into the VM that defined them.
//
// Precondition: vm.L must be from NewSandboxedState.
func (m *Manager) RegisterModules(vm *modVM) {
	L := vm.L

	ld := L.NewTable()
	L.SetFuncs(ld, map[string]lua.LGFunction{
		"add_mod_action":          m.luaAddModAction(vm),
		"add_asset_action":        m.luaAddAssetAction(vm),
		"add_general_action":      m.luaAddGeneralAction(vm),
		"add_addressables_action": m.luaAddAddressablesAction(vm),
	})
	L.SetGlobal("loading", ld)

	addr := L.NewTable()
	L.SetFuncs(addr, map[string]lua.LGFunction{
		"add": m.luaAddressablesAdd(vm),
	})
	L.SetGlobal("addressables", addr)

	logTbl := L.NewTable()
	logger := vm.owner.Logger()
	L.SetFuncs(logTbl, map[string]lua.LGFunction{
		"info":  luaLog(logger.Info),
		"warn":  luaLog(logger.Warn),
		"error": luaLog(logger.Error),
	})
	L.SetGlobal("log", logTbl)
}

// loading.add_mod_action(name, fn): fn(mod) runs once per mod.
func (m *Manager) luaAddModAction(vm *modVM) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		m.registry.AddModLoadingAction(name, func(ctx context.Context, target loading.Mod) error {
			if err := m.invoke(ctx, vm, fn, func(L *lua.LState) []lua.LValue {
				return []lua.LValue{modTable(L, target)}
			}); err != nil {
				return fmt.Errorf("lua action %q from %q: %w", name, vm.owner.ModID(), err)
			}
			return nil
		})
		return 0
	}
}

// loading.add_asset_action(subfolder, name, importer, ext...)
func (m *Manager) luaAddAssetAction(vm *modVM) lua.LGFunction {
	return func(L *lua.LState) int {
		subfolder := L.CheckString(1)
		name := L.CheckString(2)
		importFn, err := importers.Lookup(L.CheckString(3))
		if err != nil {
			L.ArgError(3, err.Error())
			return 0
		}
		var exts []string
		for i := 4; i <= L.GetTop(); i++ {
			exts = append(exts, L.CheckString(i))
		}
		m.registry.AddAssetLoadingAction(subfolder, name, importFn, exts...)
		return 0
	}
}

// loading.add_general_action(name, fn): fn() runs once per startup.
func (m *Manager) luaAddGeneralAction(vm *modVM) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		fn := L.CheckFunction(2)
		m.registry.AddGeneralLoadingAction(loading.ActionFunc{
			Label: name,
			Fn: func(ctx context.Context) error {
				if err := m.invoke(ctx, vm, fn, nil); err != nil {
					return fmt.Errorf("lua general action %q from %q: %w", name, vm.owner.ModID(), err)
				}
				return nil
			},
		})
		return 0
	}
}

// loading.add_addressables_action(name, label, fn): fn(asset) runs for every
// resolved asset under the step's context. Lua errors are logged on the
// owning mod's logger since the callback has no error channel.
func (m *Manager) luaAddAddressablesAction(vm *modVM) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		label := L.CheckString(2)
		fn := L.CheckFunction(3)
		loading.AddAddressablesLoadingActionContext(m.registry, name, label, func(ctx context.Context, asset any) {
			err := m.invoke(ctx, vm, fn, func(L *lua.LState) []lua.LValue {
				return []lua.LValue{toLua(L, asset)}
			})
			if err != nil {
				vm.owner.Logger().Warn("scripting: addressable callback failed",
					zap.String("action", name),
					zap.String("label", label),
					zap.Error(err),
				)
			}
		})
		return 0
	}
}

// addressables.add(label, value)
func (m *Manager) luaAddressablesAdd(vm *modVM) lua.LGFunction {
	return func(L *lua.LState) int {
		label := L.CheckString(1)
		if m.catalog == nil {
			L.RaiseError("addressables catalog unavailable")
			return 0
		}
		v, err := fromLua(L.CheckAny(2))
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		m.catalog.Add(label, v)
		return 0
	}
}

func luaLog(write func(string, ...zap.Field)) lua.LGFunction {
	return func(L *lua.LState) int {
		write(L.CheckString(1), zap.String("source", "lua"))
		return 0
	}
}

// modTable exposes a mod to Lua as {id, name, folder}.
func modTable(L *lua.LState, md loading.Mod) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(md.ModID()))
	t.RawSetString("name", lua.LString(md.Name()))
	t.RawSetString("folder", lua.LString(md.PluginFolder()))
	return t
}

// toLua converts a Go asset into a Lua value. Types with no Lua counterpart
// become userdata.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case map[string]any:
		t := L.NewTable()
		for k, e := range x {
			t.RawSetString(k, toLua(L, e))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, e := range x {
			t.Append(toLua(L, e))
		}
		return t
	}
	ud := L.NewUserData()
	ud.Value = v
	return ud
}

// fromLua converts a scalar Lua value into its Go counterpart.
func fromLua(v lua.LValue) (any, error) {
	switch x := v.(type) {
	case lua.LString:
		return string(x), nil
	case lua.LNumber:
		return float64(x), nil
	case lua.LBool:
		return bool(x), nil
	case *lua.LUserData:
		return x.Value, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", v.Type())
}
