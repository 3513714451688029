package main

import (
	"context"

	"github.com/blockedby/channel-map/internal/config"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/mapgen"
	"github.com/blockedby/channel-map/internal/placement"
)

func buildMap(ctx context.Context, cfg *config.Config, groups mapgen.GroupLister, log *logger.Logger) (*mapgen.Map, error) {
	pf, err := config.LoadPlacementOptions(cfg.PlacementOptions)
	if err != nil {
		return nil, err
	}
	region, err := placement.LoadRegion(cfg.RegionPath)
	if err != nil {
		return nil, err
	}
	renderer, err := mapgen.NewRenderer(cfg.TemplatePath, cfg.MapJSPath)
	if err != nil {
		return nil, err
	}

	gen := mapgen.NewGenerator(groups, region, renderer, mapgen.Options{
		Placement: pf.Placement,
		Sizes:     pf.Size,
		Seed:      cfg.MapSeed,
	}, log.Component("mapgen"))

	m, err := gen.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if err := mapgen.Save(cfg.OutputPath, m.HTML); err != nil {
		return nil, err
	}
	return m, nil
}
