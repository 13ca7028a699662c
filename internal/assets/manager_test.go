package assets_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/modloader/internal/assets"
)

func TestManager_RegisterAndGet(t *testing.T) {
	m := assets.NewManager()
	require.NoError(t, m.RegisterAsset("mod.a", "images/icon.png", []byte{1, 2}))

	got, err := m.Get("mod.a", "images/icon.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 1, m.CountByMod("mod.a"))
	assert.Equal(t, []string{"mod.a"}, m.Mods())
}

func TestManager_DuplicateRejected(t *testing.T) {
	m := assets.NewManager()
	require.NoError(t, m.RegisterAsset("mod.a", "x", 1))
	err := m.RegisterAsset("mod.a", "x", 2)
	assert.ErrorIs(t, err, assets.ErrAssetExists)

	got, err := m.Get("mod.a", "x")
	require.NoError(t, err)
	assert.Equal(t, 1, got, "first registration wins")
}

func TestManager_SameNameDifferentMods(t *testing.T) {
	m := assets.NewManager()
	require.NoError(t, m.RegisterAsset("mod.a", "x", 1))
	require.NoError(t, m.RegisterAsset("mod.b", "x", 2))
	assert.Equal(t, []string{"mod.a", "mod.b"}, m.Mods())
}

func TestManager_EmptyKeyRejected(t *testing.T) {
	m := assets.NewManager()
	assert.Error(t, m.RegisterAsset("", "x", 1))
	assert.Error(t, m.RegisterAsset("mod.a", "", 1))
	assert.Zero(t, m.Count())
}

func TestManager_GetMissing(t *testing.T) {
	_, err := assets.NewManager().Get("mod.a", "nope")
	assert.ErrorIs(t, err, assets.ErrAssetNotFound)
}

func TestManager_NamesPreserveOrder(t *testing.T) {
	m := assets.NewManager()
	for _, n := range []string{"c", "a", "b"} {
		require.NoError(t, m.RegisterAsset("mod.a", n, n))
	}
	assert.Equal(t, []string{"c", "a", "b"}, m.Names("mod.a"))
}

func TestManager_ConcurrentDistinctKeys(t *testing.T) {
	m := assets.NewManager()
	var wg sync.WaitGroup
	for mod := 0; mod < 8; mod++ {
		wg.Add(1)
		go func(mod int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, m.RegisterAsset(fmt.Sprintf("mod.%d", mod), fmt.Sprintf("asset-%d", i), i))
			}
		}(mod)
	}
	wg.Wait()
	assert.Equal(t, 400, m.Count())
	for mod := 0; mod < 8; mod++ {
		assert.Equal(t, 50, m.CountByMod(fmt.Sprintf("mod.%d", mod)))
	}
}

func TestManager_CountMatchesDistinctKeys_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOf(rapid.StringMatching(`[a-c]{1,2}`)).Draw(rt, "names")
		m := assets.NewManager()
		distinct := make(map[string]bool)
		for _, n := range names {
			err := m.RegisterAsset("mod", n, n)
			if distinct[n] {
				assert.ErrorIs(rt, err, assets.ErrAssetExists)
			} else {
				assert.NoError(rt, err)
			}
			distinct[n] = true
		}
		assert.Equal(rt, len(distinct), m.Count())
	})
}
