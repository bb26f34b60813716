// Command imperiumd runs the territorial governance daemon: faction,
// territory, and war registries with scheduled upkeep enforcement and an
// HTTP control surface.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rossicka/imperium/internal/api"
	"github.com/rossicka/imperium/internal/config"
	"github.com/rossicka/imperium/internal/engine"
	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/grid"
	"github.com/rossicka/imperium/internal/options"
	"github.com/rossicka/imperium/internal/persistence"
	"github.com/rossicka/imperium/internal/taxation"
	"github.com/rossicka/imperium/internal/territory"
	"github.com/rossicka/imperium/internal/users"
	"github.com/rossicka/imperium/internal/war"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("imperium starting", "addr", cfg.HTTPAddr, "data_dir", cfg.DataDir)

	// ── Options ───────────────────────────────────────────────────────
	opts, err := options.Load(cfg.OptionsPath)
	if err != nil {
		slog.Error("failed to load options", "path", cfg.OptionsPath, "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	dbPath := filepath.Join(cfg.DataDir, "imperium.db")
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Registries ────────────────────────────────────────────────────
	bus := events.NewBus()
	factions := faction.NewRegistry(bus, opts.DefaultTaxRate, opts.MaxTaxRate)
	areas := territory.NewRegistry(opts, factions, bus)
	wars := war.NewRegistry(bus, opts.MinCassusBelliLength)
	defer func() {
		factions.Destroy()
		areas.Destroy()
		wars.Destroy()
	}()

	// ── Grid (always regenerated — deterministic from seed) ───────────
	provider := grid.NewProvider(cfg.GridSeed, cfg.GridSize, opts.DangerousMonuments)

	// ── Restore or seed state ─────────────────────────────────────────
	if db.HasState() {
		slog.Info("found saved state, restoring...")
		factionRecords, err := db.LoadFactions()
		if err != nil {
			slog.Error("failed to load factions", "error", err)
			os.Exit(1)
		}
		areaRecords, err := db.LoadAreas()
		if err != nil {
			slog.Error("failed to load areas", "error", err)
			os.Exit(1)
		}
		warRecords, err := db.LoadWars()
		if err != nil {
			slog.Error("failed to load wars", "error", err)
			os.Exit(1)
		}
		factions.Init(factionRecords)
		areas.Init(areaRecords)
		wars.Init(warRecords)
	}
	areas.Seed(gridRecords(provider))

	// ── Coordinator + reconciliation ──────────────────────────────────
	dir := users.NewMemoryDirectory()
	coord := engine.NewCoordinator(opts, factions, areas, wars, dir, bus)
	coord.Reconcile()

	tax := taxation.NewEngine(opts, factions, areas)
	scheduler := engine.NewScheduler(coord)

	server := &api.Server{
		Coord:    coord,
		Factions: factions,
		Areas:    areas,
		Wars:     wars,
		Tax:      tax,
		Bus:      bus,
		Opts:     opts,
	}

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.ListenAndServe(ctx, cfg.HTTPAddr) })
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return snapshotLoop(ctx, db, factions, areas, wars, cfg.SnapshotIntervalMinutes) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("daemon error", "error", err)
	}

	// Final snapshot on the way out.
	if err := db.SaveSnapshot(factions.Serialize(), areas.Serialize(), wars.Serialize()); err != nil {
		slog.Error("final snapshot failed", "error", err)
	}
	slog.Info("imperium stopped")
}

// snapshotLoop persists registry state on a fixed cadence.
func snapshotLoop(ctx context.Context, db *persistence.DB,
	factions *faction.Registry, areas *territory.Registry, wars *war.Registry, intervalMinutes int) error {
	if intervalMinutes <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := db.SaveSnapshot(factions.Serialize(), areas.Serialize(), wars.Serialize()); err != nil {
				slog.Error("snapshot failed", "error", err)
			}
		}
	}
}

// gridRecords converts provider cells into territory seed records.
func gridRecords(p *grid.Provider) []territory.Record {
	cells := p.Cells()
	records := make([]territory.Record, 0, len(cells))
	for _, c := range cells {
		t := territory.AreaWilderness
		if c.Badlands {
			t = territory.AreaBadlands
		}
		records = append(records, territory.Record{ID: c.ID, Type: t, Monument: c.Monument})
	}
	return records
}
