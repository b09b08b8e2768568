// Command rentsim runs the rental housing market simulation.
//
// By default it runs one simulation to the horizon and prints a period table.
// -compare runs the standard policy scenarios side by side, and -serve
// exposes the run over HTTP, stepping on a timer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/rent-market/internal/api"
	"github.com/talgya/rent-market/internal/config"
	"github.com/talgya/rent-market/internal/engine"
	"github.com/talgya/rent-market/internal/persistence"
	"github.com/talgya/rent-market/internal/report"
	"github.com/talgya/rent-market/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	compare := flag.Bool("compare", false, "compare rent cap, no cap and land value tax")
	runs := flag.Int("runs", 0, "runs per scenario with -compare (0 = config)")
	serve := flag.Bool("serve", false, "serve the run over HTTP")
	every := flag.Int("every", 2, "print every Nth period")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogging(cfg)

	params, err := cfg.Params()
	if err != nil {
		slog.Error("invalid parameters", "error", err)
		os.Exit(2)
	}
	var cat *engine.Catalog
	if cfg.Simulation.Catalog != "" {
		cat, err = config.LoadCatalog(cfg.Simulation.Catalog)
		if err != nil {
			slog.Error("loading catalog", "error", err)
			os.Exit(1)
		}
		slog.Info("catalog loaded",
			"path", cfg.Simulation.Catalog,
			"households", len(cat.Households),
			"units", len(cat.Units),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *compare:
		n := *runs
		if n <= 0 {
			n = cfg.Simulation.Runs
		}
		err = runCompare(ctx, params, cat, n)
	case *serve:
		err = runServer(ctx, cfg, params, cat)
	default:
		err = runOnce(cfg, params, cat, *every)
	}
	if err != nil {
		slog.Error("rentsim failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// openStore opens the configured database, or returns nil when storage is
// disabled.
func openStore(cfg *config.Config) (*persistence.DB, error) {
	dsn := cfg.Storage.DSN
	if dsn == "" {
		return nil, nil
	}
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
	}
	db, err := persistence.Open(dsn)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", dsn)
	return db, nil
}

func runOnce(cfg *config.Config, params engine.Params, cat *engine.Catalog, every int) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	sim, err := engine.Build(params, cat)
	if err != nil {
		return err
	}

	runID := uuid.New()
	var record func(*engine.Result)
	if db != nil {
		if err := db.CreateRun(runID, sim.Params); err != nil {
			return err
		}
		record = db.Recorder(runID)
	}

	start := time.Now()
	for !sim.Done() {
		r, err := sim.Advance()
		if err != nil {
			return err
		}
		if record != nil {
			record(r)
		}
	}
	if db != nil {
		if err := db.FinishRun(runID); err != nil {
			slog.Error("finishing run", "run", runID, "error", err)
		}
	}
	slog.Info("run complete",
		"run", runID,
		"seed", sim.Params.Seed,
		"steps", sim.Step,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	out := report.NewConsole()
	out.Periods(sim.Metrics, every)
	out.Policy(sim.Policy.Summarize())
	return nil
}

func runCompare(ctx context.Context, params engine.Params, cat *engine.Catalog, runs int) error {
	slog.Info("comparing scenarios", "runs", runs, "years", params.Years)
	results, err := engine.Compare(ctx, params, cat, engine.DefaultScenarios(), runs)
	if err != nil {
		return err
	}
	report.NewConsole().Compare(results)
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, params engine.Params, cat *engine.Catalog) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ctrl, err := engine.NewController(params, cat)
	if err != nil {
		return err
	}
	ctrl.Interval = cfg.StepInterval()

	metrics := telemetry.New()
	ctrl.OnError = metrics.ObserveFailure
	ctrl.OnFrame = func(r *engine.Result) {
		metrics.Observe(r)
		if db != nil {
			if err := db.SaveFrame(ctrl.RunID(), r); err != nil {
				slog.Error("saving frame", "step", r.Step, "error", err)
			}
		}
	}
	if db != nil {
		if err := db.CreateRun(ctrl.RunID(), ctrl.Params()); err != nil {
			return err
		}
	}

	if cfg.API.AdminKey == "" {
		slog.Warn("RENTSIM_ADMIN_KEY not set, control endpoints are disabled")
	}
	srv := &api.Server{
		Ctrl:     ctrl,
		DB:       db,
		Metrics:  metrics,
		Port:     cfg.API.Port,
		AdminKey: cfg.API.AdminKey,
		Origins:  cfg.API.Origins,
		Limiter:  api.NewRateLimiter(cfg.API.WritesPerMin, 10),
	}

	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	// The API outlives the run loop; only a signal stops the server.
	g.Go(func() error {
		if err := ctrl.Run(gctx); err != nil {
			slog.Error("simulation halted", "step", ctrl.CurrentStep(), "error", err)
			return nil
		}
		if ctrl.Done() && db != nil {
			if err := db.FinishRun(ctrl.RunID()); err != nil {
				slog.Error("finishing run", "error", err)
			}
		}
		return nil
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	fmt.Println("Simulation stopped.")
	return err
}
