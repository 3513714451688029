package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockedby/channel-map/internal/collector"
	"github.com/blockedby/channel-map/internal/config"
	"github.com/blockedby/channel-map/internal/database"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/mapgen"
	"github.com/blockedby/channel-map/internal/nats"
	"github.com/blockedby/channel-map/internal/placement"
	"github.com/blockedby/channel-map/internal/publisher"
	"github.com/blockedby/channel-map/internal/repository"
	"github.com/blockedby/channel-map/internal/telegram"
	"github.com/blockedby/channel-map/internal/web"
)

const (
	consumerName = "mapserver"

	// group events of one crawl arrive in bursts
	regenerateQuiet = 3 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:           "mapserver",
		Short:         "Serve the channel map and the crawl API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides HTTP_PORT)")

	return cmd
}

func run(ctx context.Context, port int) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.HTTPPort = port
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()
	log.Info().Msg("starting map server")

	// 3. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	groups := repository.NewGroupsRepository(db.GORM)

	// 4. Map generator
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
	gen := mapgen.NewGenerator(groups, region, renderer, mapgen.Options{
		Placement: pf.Placement,
		Sizes:     pf.Size,
		Seed:      cfg.MapSeed,
	}, log.Component("mapgen"))

	maps := web.NewMapHandler(gen, nil, cfg.OutputPath, log.Component("web"))
	regen := newRegenerator(maps, log)
	go regen.loop(ctx)

	// 5. Connect to NATS (optional)
	var (
		nc  *nats.Client
		pub collector.EventPublisher
	)
	if cfg.NatsURL != "" {
		nc, err = nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, events disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureGroupsStream(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure groups stream")
			}
			pub = publisher.NewNATSPublisher(nc)

			cc, err := nc.Subscribe(ctx, nats.GroupsStream, consumerName, nats.GroupsSubjects, func([]byte) error {
				regen.trigger()
				return nil
			})
			if err != nil {
				log.Warn().Err(err).Msg("failed to subscribe to group events")
			} else {
				defer cc.Stop()
			}
		}
	}

	// 6. Telegram session enables the crawl API
	var crawls *web.CrawlHandler
	var crawlManager *collector.CrawlManager
	tgManager := telegram.NewManager(cfg, db.GORM)
	if err := cfg.ValidateTelegram(); err != nil {
		log.Info().Msg("telegram credentials missing, crawl API disabled")
	} else {
		if err := tgManager.Init(ctx); err != nil {
			log.Error().Err(err).Msg("telegram manager init failed")
		}
		defer tgManager.Stop()

		if tgManager.Status() == telegram.StatusReady {
			svc := collector.NewService(tgManager.Client(), groups, pub, cfg.TGUserID, log.Component("collector"))
			crawlManager = collector.NewCrawlManager(svc, func(job *collector.CrawlJob) {
				if job.Error != "" {
					log.Warn().Str("job_id", job.ID.String()).Str("error", job.Error).Msg("crawl failed")
				}
				regen.trigger()
			})
			crawls = web.NewCrawlHandler(crawlManager)
		} else {
			log.Info().Str("status", string(tgManager.Status())).Msg("telegram not ready, crawl API disabled")
		}
	}

	// 7. Start server
	server := web.NewServer(&web.Config{Port: cfg.HTTPPort}, maps, crawls)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 8. Wait for shutdown
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info().Msg("shutting down services...")

	if crawlManager != nil {
		crawlManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("shutdown complete")
	return nil
}
