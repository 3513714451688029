// Package mapgen renders the stored channels onto a static HTML map of the
// region.
package mapgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/models"
	"github.com/blockedby/channel-map/internal/placement"
)

// GroupLister provides the groups to draw.
type GroupLister interface {
	ListForMap(ctx context.Context) ([]models.Group, error)
}

// Options configures a Generator.
type Options struct {
	Title     string
	Placement placement.Options
	Sizes     placement.SizeOptions
	Seed      uint64 // 0 = derive from the clock on every run
}

// Map is one generated map.
type Map struct {
	HTML   []byte
	Points []ChannelPoint
	Stats  placement.LayoutStats
	Seed   uint64
}

// Generator places the stored groups inside the region and renders them.
type Generator struct {
	groups   GroupLister
	region   *placement.Region
	renderer *Renderer
	opts     Options
	log      *logger.Logger
}

// NewGenerator creates a new generator.
func NewGenerator(groups GroupLister, region *placement.Region, renderer *Renderer, opts Options, log *logger.Logger) *Generator {
	if opts.Title == "" {
		opts.Title = "Telegram channel map"
	}
	return &Generator{
		groups:   groups,
		region:   region,
		renderer: renderer,
		opts:     opts,
		log:      log,
	}
}

// Generate builds the map with the configured seed.
func (g *Generator) Generate(ctx context.Context) (*Map, error) {
	seed := g.opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return g.GenerateWithSeed(ctx, seed)
}

// GenerateWithSeed builds the map; equal seeds over equal data give equal
// pages.
func (g *Generator) GenerateWithSeed(ctx context.Context, seed uint64) (*Map, error) {
	groups, err := g.groups.ListForMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	entities := make([]placement.Entity[ChannelPoint], 0, len(groups))
	for _, grp := range groups {
		entities = append(entities, placement.Entity[ChannelPoint]{
			Weight:          placement.WeightOf(grp.MembersCount),
			SecondaryWeight: placement.WeightOf(grp.MessagesCount),
			Payload:         newChannelPoint(grp),
		})
	}

	engine := placement.NewSeededEngine(g.opts.Placement, seed)
	placed, stats := placement.Layout(g.region, entities, engine, g.opts.Sizes)

	points := make([]ChannelPoint, len(placed))
	for i, m := range placed {
		p := m.Entity
		p.X, p.Y, p.Size = m.X, m.Y, m.Size
		points[i] = p
	}

	html, err := g.renderer.Render(g.opts.Title, g.region.FeatureCollection(), points)
	if err != nil {
		return nil, err
	}

	g.log.Info().
		Int("channels", stats.Placed).
		Int("relaxed", stats.Relaxed).
		Int("trials", stats.Trials).
		Uint64("seed", seed).
		Msg("map generated")

	return &Map{HTML: html, Points: points, Stats: stats, Seed: seed}, nil
}

// Save writes the page to path, creating parent directories.
func Save(path string, html []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, html, 0644); err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	return nil
}
