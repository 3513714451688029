package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/blockedby/channel-map/internal/collector"
	"github.com/blockedby/channel-map/internal/logger"
	"github.com/blockedby/channel-map/internal/mapgen"
)

// MapGenerator builds maps with the configured seed or an explicit one.
type MapGenerator interface {
	Generate(ctx context.Context) (*mapgen.Map, error)
	GenerateWithSeed(ctx context.Context, seed uint64) (*mapgen.Map, error)
}

// MapHandler serves the last generated map.
type MapHandler struct {
	gen        MapGenerator
	outputPath string // also written on regenerate when set
	log        *logger.Logger

	mu      sync.RWMutex
	current *mapgen.Map
}

// NewMapHandler creates a map handler. initial may be nil; the first
// request then generates the map.
func NewMapHandler(gen MapGenerator, initial *mapgen.Map, outputPath string, log *logger.Logger) *MapHandler {
	return &MapHandler{gen: gen, current: initial, outputPath: outputPath, log: log}
}

// Current returns the map being served, generating one if needed.
func (h *MapHandler) Current(ctx context.Context) (*mapgen.Map, error) {
	h.mu.RLock()
	m := h.current
	h.mu.RUnlock()
	if m != nil {
		return m, nil
	}
	return h.build(ctx, h.gen.Generate)
}

// regenerate rebuilds with a fresh seed, ignoring MAP_SEED.
func (h *MapHandler) regenerate(ctx context.Context) (*mapgen.Map, error) {
	return h.build(ctx, func(ctx context.Context) (*mapgen.Map, error) {
		return h.gen.GenerateWithSeed(ctx, uint64(time.Now().UnixNano()))
	})
}

func (h *MapHandler) build(ctx context.Context, generate func(context.Context) (*mapgen.Map, error)) (*mapgen.Map, error) {
	m, err := generate(ctx)
	if err != nil {
		return nil, err
	}
	if h.outputPath != "" {
		if err := mapgen.Save(h.outputPath, m.HTML); err != nil {
			h.log.Warn().Err(err).Str("path", h.outputPath).Msg("failed to save map")
		}
	}

	h.mu.Lock()
	h.current = m
	h.mu.Unlock()
	return m, nil
}

// Index handles GET /
func (h *MapHandler) Index(w http.ResponseWriter, r *http.Request) {
	m, err := h.Current(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(m.HTML)
}

// Channels handles GET /api/channels
func (h *MapHandler) Channels(w http.ResponseWriter, r *http.Request) {
	m, err := h.Current(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	points := m.Points
	if points == nil {
		points = []mapgen.ChannelPoint{}
	}
	respondJSON(w, http.StatusOK, points)
}

// Regenerate handles POST /api/regenerate
func (h *MapHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	m, err := h.regenerate(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"seed":     m.Seed,
		"channels": m.Stats.Placed,
		"relaxed":  m.Stats.Relaxed,
	})
}

// OnGroupEvent rebuilds the map with the configured seed after the
// collector changed the data.
func (h *MapHandler) OnGroupEvent(ctx context.Context) error {
	_, err := h.build(ctx, h.gen.Generate)
	return err
}

// CrawlController is the part of collector.CrawlManager the API uses.
type CrawlController interface {
	Start() (*collector.CrawlJob, error)
	Stop()
	Current() *collector.CrawlJob
	Last() *collector.CrawlJob
}

// CrawlHandler exposes background crawls.
type CrawlHandler struct {
	crawls CrawlController
}

// NewCrawlHandler creates a crawl handler.
func NewCrawlHandler(crawls CrawlController) *CrawlHandler {
	return &CrawlHandler{crawls: crawls}
}

// Start handles POST /api/crawl
func (h *CrawlHandler) Start(w http.ResponseWriter, _ *http.Request) {
	job, err := h.crawls.Start()
	if err != nil {
		if errors.Is(err, collector.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, job)
}

// Stop handles DELETE /api/crawl
func (h *CrawlHandler) Stop(w http.ResponseWriter, _ *http.Request) {
	h.crawls.Stop()
	respondJSON(w, http.StatusOK, map[string]string{"message": "crawl stopped"})
}

// Status handles GET /api/crawl
func (h *CrawlHandler) Status(w http.ResponseWriter, _ *http.Request) {
	if current := h.crawls.Current(); current != nil {
		respondJSON(w, http.StatusOK, map[string]any{"status": "running", "job": current})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "idle", "last": h.crawls.Last()})
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
