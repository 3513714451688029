package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockedby/channel-map/internal/collector"
	"github.com/blockedby/channel-map/internal/config"
	"github.com/blockedby/channel-map/internal/database"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/nats"
	"github.com/blockedby/channel-map/internal/publisher"
	"github.com/blockedby/channel-map/internal/repository"
	"github.com/blockedby/channel-map/internal/telegram"
)

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
	var withMap bool

	cmd := &cobra.Command{
		Use:           "crawler",
		Short:         "Walk the account's dialogs and store channel metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), withMap)
		},
	}
	cmd.Flags().BoolVar(&withMap, "map", false, "generate the map after crawling")

	return cmd
}

func run(ctx context.Context, withMap bool) error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateTelegram(); err != nil {
		return err
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()
	log.Info().Msg("starting crawler")

	// 3. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 4. Connect to NATS (optional)
	var pub collector.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureGroupsStream(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure groups stream, publishing disabled")
			} else {
				pub = publisher.NewNATSPublisher(nc)
			}
		}
	}

	// 5. Restore telegram session
	tgManager := telegram.NewManager(cfg, db.GORM)
	if err := tgManager.Init(ctx); err != nil {
		return fmt.Errorf("telegram init: %w", err)
	}
	defer tgManager.Stop()

	if tgManager.Status() != telegram.StatusReady {
		return errors.New("telegram session is not authorized, run tg-auth first")
	}

	// 6. Crawl
	groups := repository.NewGroupsRepository(db.GORM)
	svc := collector.NewService(tgManager.Client(), groups, pub, cfg.TGUserID, log.Component("collector"))

	result, err := svc.Crawl(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("crawl %s: %d dialogs, %d added, %d updated, %d unchanged, %d errors\n",
		result.RunID, result.Total, result.Added, result.Updated, result.Unchanged, result.Errors)

	if !withMap {
		return nil
	}

	// 7. Render the map from what was just stored
	m, err := buildMap(ctx, cfg, groups, log)
	if err != nil {
		return err
	}
	fmt.Printf("map with %d channels written to %s\n", len(m.Points), cfg.OutputPath)
	return nil
}
