// Package startup runs the registered loading actions in order and reports
// the outcome of every step.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/modloader/internal/loading"
)

// StepResult is the outcome of one action.
type StepResult struct {
	Name     string
	ModID    string // empty for general actions
	Duration time.Duration
	Err      error
}

// Failed reports whether the step returned an error.
func (s StepResult) Failed() bool { return s.Err != nil }

// Report summarizes one startup run.
type Report struct {
	RunID    uuid.UUID
	Started  time.Time
	Finished time.Time
	Steps    []StepResult
	Assets   int
}

// Failures returns the number of failed steps.
func (r *Report) Failures() int {
	n := 0
	for _, s := range r.Steps {
		if s.Failed() {
			n++
		}
	}
	return n
}

// Elapsed returns the wall time of the run.
func (r *Report) Elapsed() time.Duration { return r.Finished.Sub(r.Started) }

// AssetCounter reports how many assets are registered.
type AssetCounter interface {
	Count() int
}

// Options tunes how a Flow runs.
type Options struct {
	// ConcurrentMods runs mod pipelines in parallel. Each pipeline stays
	// sequential.
	ConcurrentMods bool
	// StepTimeout bounds a single action; 0 disables the bound.
	StepTimeout time.Duration
}

// Flow runs general actions, then every mod's pipeline.
type Flow struct {
	registry *loading.Registry
	mods     []loading.Mod
	assets   AssetCounter
	opts     Options
	logger   *zap.Logger
}

// NewFlow creates a Flow over the actions in registry and the given mods.
//
// Precondition: registry and logger must be non-nil. assets may be nil.
// Postcondition: Returns a Flow that runs mods in the order given.
func NewFlow(registry *loading.Registry, mods []loading.Mod, assets AssetCounter, opts Options, logger *zap.Logger) *Flow {
	return &Flow{
		registry: registry,
		mods:     mods,
		assets:   assets,
		opts:     opts,
		logger:   logger,
	}
}

// Run executes the flow. General actions run first, in registration order.
// Mod pipelines follow in mod order; each pipeline runs the registered mod
// actions in registration order. A failing step is logged and recorded and
// the flow continues with the next step.
//
// Postcondition: Returns a report whose Steps are ordered general actions
// first, then mods in the order given. If ctx is cancelled, the flow stops
// between steps and returns the partial report with ctx's error.
func (f *Flow) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New(), Started: time.Now()}
	log := f.logger.With(zap.String("run_id", report.RunID.String()))
	log.Info("startup flow starting",
		zap.Int("mods", len(f.mods)),
		zap.Bool("concurrent_mods", f.opts.ConcurrentMods),
	)

	var runErr error
	for _, a := range f.registry.GeneralActions() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		report.Steps = append(report.Steps, f.runStep(ctx, log, a, ""))
	}

	if runErr == nil {
		var steps []StepResult
		if f.opts.ConcurrentMods {
			steps, runErr = f.runConcurrent(ctx, log)
		} else {
			steps, runErr = f.runSequential(ctx, log)
		}
		report.Steps = append(report.Steps, steps...)
	}

	if f.assets != nil {
		report.Assets = f.assets.Count()
	}
	report.Finished = time.Now()

	if runErr != nil {
		log.Warn("startup flow interrupted",
			zap.Int("steps", len(report.Steps)),
			zap.Error(runErr),
		)
		return report, fmt.Errorf("startup flow: %w", runErr)
	}
	log.Info("startup flow complete",
		zap.Int("steps", len(report.Steps)),
		zap.Int("failures", report.Failures()),
		zap.Int("assets", report.Assets),
		zap.Duration("elapsed", report.Elapsed()),
	)
	return report, nil
}

func (f *Flow) runSequential(ctx context.Context, log *zap.Logger) ([]StepResult, error) {
	var steps []StepResult
	for _, m := range f.mods {
		s, err := f.runPipeline(ctx, log, m)
		steps = append(steps, s...)
		if err != nil {
			return steps, err
		}
	}
	return steps, nil
}

// runConcurrent gives each mod its own goroutine. Results are gathered per
// mod index so the report order matches the sequential order.
func (f *Flow) runConcurrent(ctx context.Context, log *zap.Logger) ([]StepResult, error) {
	perMod := make([][]StepResult, len(f.mods))
	var g errgroup.Group
	for i, m := range f.mods {
		g.Go(func() error {
			s, err := f.runPipeline(ctx, log, m)
			perMod[i] = s
			return err
		})
	}
	err := g.Wait()

	var steps []StepResult
	for _, s := range perMod {
		steps = append(steps, s...)
	}
	return steps, err
}

func (f *Flow) runPipeline(ctx context.Context, log *zap.Logger, m loading.Mod) ([]StepResult, error) {
	pipelineStart := time.Now()
	actions := f.registry.ModActions(m)
	steps := make([]StepResult, 0, len(actions))
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		steps = append(steps, f.runStep(ctx, log, a, m.ModID()))
	}
	log.Debug("mod pipeline complete",
		zap.String("mod", m.ModID()),
		zap.Int("steps", len(steps)),
		zap.Duration("elapsed", time.Since(pipelineStart)),
	)
	return steps, nil
}

func (f *Flow) runStep(ctx context.Context, log *zap.Logger, a loading.Runnable, modID string) StepResult {
	stepCtx := ctx
	if f.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, f.opts.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	err := runRecovered(stepCtx, a)
	res := StepResult{Name: a.Name(), ModID: modID, Duration: time.Since(start), Err: err}

	fields := []zap.Field{
		zap.String("step", res.Name),
		zap.Duration("elapsed", res.Duration),
	}
	if modID != "" {
		fields = append(fields, zap.String("mod", modID))
	}
	if err != nil {
		log.Error("loading step failed", append(fields, zap.Error(err))...)
	} else {
		log.Debug("loading step complete", fields...)
	}
	return res
}

// runRecovered runs a and reports a panic as the step's error.
func runRecovered(ctx context.Context, a loading.Runnable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return a.Run(ctx)
}
