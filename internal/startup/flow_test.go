package startup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/modloader/internal/assets"
	"github.com/cory-johannsen/modloader/internal/loading"
	"github.com/cory-johannsen/modloader/internal/startup"
)

type flowMod struct{ id string }

func (m flowMod) PluginFolder() string { return "/nonexistent/" + m.id }
func (m flowMod) ModID() string        { return m.id }
func (m flowMod) Name() string         { return "Mod " + m.id }
func (m flowMod) Logger() *zap.Logger  { return zap.NewNop() }

// trace records the order steps ran in.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, s)
}

func (tr *trace) all() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

func mods(ids ...string) []loading.Mod {
	out := make([]loading.Mod, len(ids))
	for i, id := range ids {
		out[i] = flowMod{id: id}
	}
	return out
}

func stepNames(r *startup.Report) []string {
	names := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		names[i] = s.Name
	}
	return names
}

func TestFlow_GeneralActionsRunBeforeModPipelines(t *testing.T) {
	var tr trace
	reg := loading.NewRegistry(assets.NewManager(), nil)
	reg.AddModLoadingAction("first", func(_ context.Context, m loading.Mod) error {
		tr.add(m.ModID() + ":first")
		return nil
	})
	reg.AddGeneralLoadingAction(loading.ActionFunc{Label: "general", Fn: func(context.Context) error {
		tr.add("general")
		return nil
	}})
	reg.AddModLoadingAction("second", func(_ context.Context, m loading.Mod) error {
		tr.add(m.ModID() + ":second")
		return nil
	})

	flow := startup.NewFlow(reg, mods("a", "b"), nil, startup.Options{}, zaptest.NewLogger(t))
	report, err := flow.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"general", "a:first", "a:second", "b:first", "b:second"}, tr.all())
	assert.Equal(t, []string{"general", "Mod a: first", "Mod a: second", "Mod b: first", "Mod b: second"}, stepNames(report))
	assert.Equal(t, "", report.Steps[0].ModID)
	assert.Equal(t, "b", report.Steps[4].ModID)
	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.False(t, report.Finished.Before(report.Started))
}

func TestFlow_FailureIsRecordedAndFlowContinues(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	boom := errors.New("boom")
	var tr trace
	reg := loading.NewRegistry(assets.NewManager(), nil)
	reg.AddModLoadingAction("explode", func(_ context.Context, m loading.Mod) error {
		if m.ModID() == "a" {
			return boom
		}
		return nil
	})
	reg.AddModLoadingAction("after", func(_ context.Context, m loading.Mod) error {
		tr.add(m.ModID())
		return nil
	})

	report, err := startup.NewFlow(reg, mods("a", "b"), nil, startup.Options{}, zap.New(core)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, tr.all())
	require.Len(t, report.Steps, 4)
	assert.ErrorIs(t, report.Steps[0].Err, boom)
	assert.True(t, report.Steps[0].Failed())
	assert.Equal(t, 1, report.Failures())

	failed := logs.FilterMessage("loading step failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].ContextMap()["mod"])
	assert.Equal(t, "Mod a: explode", failed[0].ContextMap()["step"])
}

func TestFlow_PanickingStepIsRecorded(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var tr trace
	reg := loading.NewRegistry(assets.NewManager(), nil)
	reg.AddModLoadingAction("explode", func(_ context.Context, m loading.Mod) error {
		if m.ModID() == "a" {
			var steps []string
			_ = steps[3]
		}
		return nil
	})
	reg.AddModLoadingAction("after", func(_ context.Context, m loading.Mod) error {
		tr.add(m.ModID())
		return nil
	})

	var report *startup.Report
	var err error
	require.NotPanics(t, func() {
		report, err = startup.NewFlow(reg, mods("a", "b"), nil, startup.Options{}, zap.New(core)).Run(context.Background())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tr.all())
	require.Len(t, report.Steps, 4)
	require.Error(t, report.Steps[0].Err)
	assert.Contains(t, report.Steps[0].Err.Error(), "action panicked")
	assert.Equal(t, 1, report.Failures())
	assert.Equal(t, 1, logs.FilterMessage("loading step failed").Len())
}

func TestFlow_CancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tr trace
	reg := loading.NewRegistry(assets.NewManager(), nil)
	reg.AddModLoadingAction("cancel", func(_ context.Context, m loading.Mod) error {
		tr.add(m.ModID() + ":cancel")
		cancel()
		return nil
	})
	reg.AddModLoadingAction("never", func(_ context.Context, m loading.Mod) error {
		tr.add(m.ModID() + ":never")
		return nil
	})

	report, err := startup.NewFlow(reg, mods("a", "b"), nil, startup.Options{}, zaptest.NewLogger(t)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, []string{"a:cancel"}, tr.all())
	assert.Len(t, report.Steps, 1)
}

func TestFlow_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := loading.NewRegistry(assets.NewManager(), nil)
	reg.AddGeneralLoadingAction(loading.ActionFunc{Label: "g", Fn: func(context.Context) error {
		t.Fatal("general action ran after cancellation")
		return nil
	}})
	report, err := startup.NewFlow(reg, mods("a"), nil, startup.Options{}, zaptest.NewLogger(t)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Steps)
}

func TestFlow_StepTimeout(t *testing.T) {
	reg := loading.NewRegistry(assets.NewManager(), nil)
	reg.AddModLoadingAction("slow", func(ctx context.Context, _ loading.Mod) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	opts := startup.Options{StepTimeout: 20 * time.Millisecond}
	report, err := startup.NewFlow(reg, mods("a"), nil, opts, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Steps, 1)
	assert.ErrorIs(t, report.Steps[0].Err, context.DeadlineExceeded)
}

func TestFlow_ReportCountsAssets(t *testing.T) {
	store := assets.NewManager()
	reg := loading.NewRegistry(store, nil)
	reg.AddModLoadingAction("register", func(_ context.Context, m loading.Mod) error {
		return store.RegisterAsset(m.ModID(), "thing", 1)
	})
	report, err := startup.NewFlow(reg, mods("a", "b", "c"), store, startup.Options{}, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Assets)
}

func TestFlow_NoModsNoActions(t *testing.T) {
	reg := loading.NewRegistry(assets.NewManager(), nil)
	report, err := startup.NewFlow(reg, nil, nil, startup.Options{}, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Steps)
	assert.Zero(t, report.Failures())
}

func TestFlow_ConcurrentMods_ReportOrderMatchesSequential(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nMods := rapid.IntRange(0, 8).Draw(rt, "mods")
		nActions := rapid.IntRange(0, 5).Draw(rt, "actions")
		failing := rapid.IntRange(-1, nActions-1).Draw(rt, "failing")

		ids := make([]string, nMods)
		for i := range ids {
			ids[i] = fmt.Sprintf("mod%02d", i)
		}
		reg := loading.NewRegistry(assets.NewManager(), nil)
		for i := 0; i < nActions; i++ {
			reg.AddModLoadingAction(fmt.Sprintf("step%d", i), func(context.Context, loading.Mod) error {
				if i == failing {
					return errors.New("failed")
				}
				return nil
			})
		}

		seq, err := startup.NewFlow(reg, mods(ids...), nil, startup.Options{}, zap.NewNop()).Run(context.Background())
		require.NoError(rt, err)
		par, err := startup.NewFlow(reg, mods(ids...), nil, startup.Options{ConcurrentMods: true}, zap.NewNop()).Run(context.Background())
		require.NoError(rt, err)

		assert.Equal(rt, stepNames(seq), stepNames(par))
		assert.Equal(rt, seq.Failures(), par.Failures())
		assert.Len(rt, par.Steps, nMods*nActions)
	})
}

func TestFlow_ConcurrentMods_PipelineStaysSequential(t *testing.T) {
	var mu sync.Mutex
	perMod := map[string][]string{}
	reg := loading.NewRegistry(assets.NewManager(), nil)
	for _, name := range []string{"one", "two", "three"} {
		reg.AddModLoadingAction(name, func(_ context.Context, m loading.Mod) error {
			mu.Lock()
			defer mu.Unlock()
			perMod[m.ModID()] = append(perMod[m.ModID()], name)
			return nil
		})
	}
	opts := startup.Options{ConcurrentMods: true}
	_, err := startup.NewFlow(reg, mods("a", "b", "c", "d"), nil, opts, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, []string{"one", "two", "three"}, perMod[id], "mod %s", id)
	}
}
