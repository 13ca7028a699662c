package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/modloader/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testConfig(t *testing.T, modsDir string) config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set("mods.dir", modsDir)
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestRun_LoadsBuiltinAndScriptedAssets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "alpha", "swinfo.json"),
		`{"spec": "1.2", "id": "alpha", "name": "Alpha"}`)
	writeFile(t, filepath.Join(dir, "alpha", "assets", "data", "Parts", "Engine.yaml"), "thrust: 215\n")
	writeFile(t, filepath.Join(dir, "alpha", "assets", "text", "readme.txt"), "hello")
	writeFile(t, filepath.Join(dir, "alpha", "scripts", "init.lua"), `
		loading.add_asset_action("lore", "Loading lore", "text", "md")
		loading.add_general_action("Announce", function() log.info("alpha ready") end)
	`)
	writeFile(t, filepath.Join(dir, "beta", "swinfo.yaml"), "mod_id: beta\nname: Beta\n")
	writeFile(t, filepath.Join(dir, "beta", "assets", "lore", "history.md"), "# History")
	writeFile(t, filepath.Join(dir, "not-a-mod", "readme.txt"), "ignored")

	core, logs := observer.New(zap.DebugLevel)
	report, err := run(context.Background(), testConfig(t, dir), zap.New(core))
	require.NoError(t, err)

	assert.Zero(t, report.Failures())
	// alpha: engine.yaml + readme.txt; beta: history.md
	assert.Equal(t, 3, report.Assets)
	assert.Equal(t, 1, logs.FilterMessage("alpha ready").Len())

	require.NotEmpty(t, report.Steps)
	assert.Equal(t, "Announce", report.Steps[0].Name)
	assert.Equal(t, "Alpha: Loading data", report.Steps[1].Name)
}

func TestRun_BrokenScriptDoesNotStopOtherMods(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "swinfo.json"), `{"mod_id": "a", "name": "A"}`)
	writeFile(t, filepath.Join(dir, "a", "scripts", "init.lua"), `not lua at all`)
	writeFile(t, filepath.Join(dir, "b", "swinfo.json"), `{"mod_id": "b", "name": "B"}`)
	writeFile(t, filepath.Join(dir, "b", "assets", "text", "x.txt"), "x")

	core, logs := observer.New(zap.DebugLevel)
	report, err := run(context.Background(), testConfig(t, dir), zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("init scripts failed").Len())
	assert.Equal(t, 1, report.Assets)
}

func TestRun_MissingModsDir(t *testing.T) {
	_, err := run(context.Background(), testConfig(t, filepath.Join(t.TempDir(), "nope")), zap.NewNop())
	assert.Error(t, err)
}
