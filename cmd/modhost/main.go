// Package main provides the mod host binary: it discovers mods, runs their
// init scripts, executes the startup flow, and optionally persists the report.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/modloader/internal/addressables"
	"github.com/cory-johannsen/modloader/internal/assets"
	"github.com/cory-johannsen/modloader/internal/config"
	"github.com/cory-johannsen/modloader/internal/importers"
	"github.com/cory-johannsen/modloader/internal/loading"
	"github.com/cory-johannsen/modloader/internal/mod"
	"github.com/cory-johannsen/modloader/internal/observability"
	"github.com/cory-johannsen/modloader/internal/scripting"
	"github.com/cory-johannsen/modloader/internal/startup"
	"github.com/cory-johannsen/modloader/internal/storage/postgres"
)

func main() {
	start := time.Now()

	envFile := flag.String("env", ".env", "optional dotenv file loaded before config")
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	modsDir := flag.String("mods", "", "mods directory; overrides mods.dir")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *modsDir != "" {
		cfg.Mods.Dir = *modsDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("mod host failed", zap.Error(err))
	}

	if cfg.Database.Enabled {
		if err := persist(ctx, cfg.Database, report, logger); err != nil {
			logger.Fatal("persisting report", zap.Error(err))
		}
	}

	logger.Info("mod host finished",
		zap.String("run_id", report.RunID.String()),
		zap.Int("failures", report.Failures()),
		zap.Duration("elapsed", time.Since(start)),
	)
	if report.Failures() > 0 {
		logger.Sync()
		os.Exit(1)
	}
}

// run wires the host components and executes one startup flow.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (*startup.Report, error) {
	store := assets.NewManager()
	catalog := addressables.NewCatalog()
	registry := loading.NewRegistry(store, catalog)

	if cfg.Loading.BuiltinImporters {
		importers.RegisterDefaults(registry)
	}

	discoverStart := time.Now()
	discovered, err := mod.Discover(cfg.Mods.Dir, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("mods discovered",
		zap.String("dir", cfg.Mods.Dir),
		zap.Int("count", len(discovered)),
		zap.Duration("elapsed", time.Since(discoverStart)),
	)

	scripts := scripting.NewManager(registry, catalog, cfg.Mods.ScriptInstructionLimit, logger.Named("scripting"))
	defer scripts.Close()

	mods := make([]loading.Mod, 0, len(discovered))
	for _, m := range discovered {
		if _, err := scripts.LoadMod(ctx, m); err != nil {
			m.Logger().Error("init scripts failed", zap.Error(err))
		}
		mods = append(mods, m)
	}

	modActions, general := registry.Len()
	logger.Info("loading actions registered",
		zap.Int("mod_actions", modActions),
		zap.Int("general_actions", general),
	)

	flow := startup.NewFlow(registry, mods, store, startup.Options{
		ConcurrentMods: cfg.Loading.ConcurrentMods,
		StepTimeout:    cfg.Loading.StepTimeout,
	}, logger.Named("startup"))
	return flow.Run(ctx)
}

func persist(ctx context.Context, cfg config.DatabaseConfig, report *startup.Report, logger *zap.Logger) error {
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Reports().Save(ctx, report); err != nil {
		return err
	}
	logger.Info("report saved",
		zap.String("host", cfg.Host),
		zap.String("run_id", report.RunID.String()),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	return nil
}
