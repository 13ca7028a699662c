package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/modloader/internal/addressables"
	"github.com/cory-johannsen/modloader/internal/loading"
)

// ScriptsDir is the folder under a mod's root holding its init scripts.
const ScriptsDir = "scripts"

// modVM is one mod's Lua state. An LState is single-threaded, so every use
// holds mu.
type modVM struct {
	mu    sync.Mutex
	L     *lua.LState
	owner loading.Mod
}

// Manager owns one sandboxed LState per mod that ships init scripts.
//
// Actions registered from Lua may be run for any mod and from any goroutine;
// each call locks the owning VM, so calls into one VM are serialized while
// different VMs run concurrently.
type Manager struct {
	mu        sync.RWMutex
	vms       map[string]*modVM
	registry  *loading.Registry
	catalog   *addressables.Catalog
	instLimit int
	logger    *zap.Logger
}

// NewManager creates a Manager that registers Lua-defined actions into registry.
//
// Precondition: registry and logger must be non-nil. catalog may be nil, in
// which case addressables.add raises a Lua error.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(registry *loading.Registry, catalog *addressables.Catalog, instLimit int, logger *zap.Logger) *Manager {
	return &Manager{
		vms:       make(map[string]*modVM),
		registry:  registry,
		catalog:   catalog,
		instLimit: instLimit,
		logger:    logger,
	}
}

// LoadMod creates a sandboxed VM for m, registers the Lua API, then executes
// every *.lua file in <mod>/scripts in lexicographic order. A mod without a
// scripts folder gets no VM.
//
// Precondition: m.ModID() must be unique among loaded mods.
// Postcondition: Returns (true, nil) when scripts ran; (false, nil) when the
// mod has none; a non-nil error on Lua load failure, with the VM discarded.
func (m *Manager) LoadMod(ctx context.Context, md loading.Mod) (bool, error) {
	dir := filepath.Join(md.PluginFolder(), ScriptsDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scripting: reading script dir %q for %q: %w", dir, md.ModID(), err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	if len(luaFiles) == 0 {
		return false, nil
	}
	sort.Strings(luaFiles)

	vm := &modVM{L: NewSandboxedState(m.instLimit), owner: md}
	m.RegisterModules(vm)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, path := range luaFiles {
		release := setBudget(ctx, vm.L, m.instLimit)
		err := vm.L.DoFile(path)
		release()
		if err != nil {
			vm.L.Close()
			return false, fmt.Errorf("scripting: loading %q for %q: %w", path, md.ModID(), err)
		}
	}

	m.mu.Lock()
	if old, ok := m.vms[md.ModID()]; ok {
		old.L.Close()
	}
	m.vms[md.ModID()] = vm
	m.mu.Unlock()

	md.Logger().Debug("scripts loaded", zap.Int("files", len(luaFiles)))
	return true, nil
}

// Loaded reports whether a VM exists for modID.
func (m *Manager) Loaded(modID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vms[modID]
	return ok
}

// Close releases every VM.
//
// Postcondition: Actions registered from Lua fail if run after Close.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, vm := range m.vms {
		vm.mu.Lock()
		vm.L.Close()
		vm.L = nil
		vm.mu.Unlock()
		delete(m.vms, id)
	}
}

// invoke calls fn in vm with the arguments built by args. Arguments are built
// under the VM lock because table construction touches the LState.
func (m *Manager) invoke(ctx context.Context, vm *modVM, fn *lua.LFunction, args func(L *lua.LState) []lua.LValue) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.L == nil {
		return fmt.Errorf("scripting: VM for %q is closed", vm.owner.ModID())
	}

	var argv []lua.LValue
	if args != nil {
		argv = args(vm.L)
	}
	release := setBudget(ctx, vm.L, m.instLimit)
	defer release()
	return vm.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, argv...)
}
