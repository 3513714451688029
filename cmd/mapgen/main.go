package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockedby/channel-map/internal/config"
	"github.com/blockedby/channel-map/internal/database"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/mapgen"
	"github.com/blockedby/channel-map/internal/placement"
	"github.com/blockedby/channel-map/internal/repository"
	"github.com/blockedby/channel-map/internal/snapshot"
)

type options struct {
	seed     uint64
	output   string
	snapshot string
	title    string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "mapgen",
		Short:         "Render the stored channels onto a static HTML map",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "placement seed (overrides MAP_SEED, 0 = clock)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output html path (overrides MAP_OUTPUT_PATH)")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "also write a PNG snapshot (overrides MAP_SNAPSHOT_PATH)")
	cmd.Flags().StringVar(&opts.title, "title", "", "page title")

	return cmd
}

func run(ctx context.Context, opts options) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.seed != 0 {
		cfg.MapSeed = opts.seed
	}
	if opts.output != "" {
		cfg.OutputPath = opts.output
	}
	if opts.snapshot != "" {
		cfg.SnapshotPath = opts.snapshot
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()

	// 3. Load region and placement constants
	pf, err := config.LoadPlacementOptions(cfg.PlacementOptions)
	if err != nil {
		return err
	}
	region, err := placement.LoadRegion(cfg.RegionPath)
	if err != nil {
		return err
	}
	renderer, err := mapgen.NewRenderer(cfg.TemplatePath, cfg.MapJSPath)
	if err != nil {
		return err
	}

	// 4. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 5. Generate
	gen := mapgen.NewGenerator(repository.NewGroupsRepository(db.GORM), region, renderer, mapgen.Options{
		Title:     opts.title,
		Placement: pf.Placement,
		Sizes:     pf.Size,
		Seed:      cfg.MapSeed,
	}, log.Component("mapgen"))

	m, err := gen.Generate(ctx)
	if err != nil {
		return err
	}
	if err := mapgen.Save(cfg.OutputPath, m.HTML); err != nil {
		return err
	}
	fmt.Printf("map with %d channels (%d relaxed, seed %d) written to %s\n",
		m.Stats.Placed, m.Stats.Relaxed, m.Seed, cfg.OutputPath)

	// 6. Optional PNG
	if cfg.SnapshotPath == "" {
		return nil
	}
	if err := snapshot.Capture(ctx, cfg.OutputPath, cfg.SnapshotPath, snapshot.Options{}); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	fmt.Printf("snapshot written to %s\n", cfg.SnapshotPath)
	return nil
}
