package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kwv/countyatlas/geo"
)

// App owns the service state: the detail cache, the adaptive loader, the
// projection view, and the spatial index over the currently active level.
type App struct {
	cfg    *geo.Config
	log    zerolog.Logger
	cache  *geo.DetailCache
	loader *geo.AdaptiveLoader
	view   *geo.MapView

	mu    sync.RWMutex
	level geo.DetailLevel
	data  *geo.CountyData
	index *geo.SpatialIndex
}

// NewApp wires the service components from the configuration.
func NewApp(cfg *geo.Config, log zerolog.Logger) (*App, error) {
	opts := geo.MapOptions{
		Width:  float64(cfg.Map.Width),
		Height: float64(cfg.Map.Height),
	}
	proj, err := geo.NewProjection(geo.ProjectionName(cfg.Map.Projection), opts)
	if err != nil {
		return nil, fmt.Errorf("configuring projection: %w", err)
	}

	cache := geo.NewDetailCache(cfg.Cache.TTL, cfg.CacheBudget(), log)
	loader := geo.NewAdaptiveLoader(geo.NewHTTPFetcher(cfg.Data.BaseURL), cache, log)

	return &App{
		cfg:    cfg,
		log:    log,
		cache:  cache,
		loader: loader,
		view:   geo.NewMapView(proj, opts),
	}, nil
}

// Preload warms the cache with the configured detail levels.
func (a *App) Preload(ctx context.Context) error {
	levels := a.cfg.PreloadLevels()
	if len(levels) == 0 {
		return nil
	}
	a.log.Info().Int("levels", len(levels)).Msg("Preloading county data")
	return a.loader.Preload(ctx, levels...)
}

// ensureData loads the requested level and makes it the active one,
// rebuilding the spatial index on a level change.
func (a *App) ensureData(ctx context.Context, vp geo.Viewport, level geo.DetailLevel) (*geo.CountyData, error) {
	a.mu.RLock()
	if a.data != nil && a.level == level {
		data := a.data
		a.mu.RUnlock()
		return data, nil
	}
	a.mu.RUnlock()

	data, err := a.loader.Load(ctx, vp, level)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data == nil || a.level != level {
		a.level = level
		a.data = data
		a.index = geo.NewSpatialIndex(a.view, data.Collection, a.log)
	}
	return a.data, nil
}

// activeIndex returns the spatial index for the active level, loading the
// medium level when nothing is active yet.
func (a *App) activeIndex(ctx context.Context) (*geo.SpatialIndex, *geo.CountyData, error) {
	a.mu.RLock()
	if a.index != nil {
		index, data := a.index, a.data
		a.mu.RUnlock()
		return index, data, nil
	}
	a.mu.RUnlock()

	if _, err := a.ensureData(ctx, geo.Viewport{Zoom: 8, Area: 1e6}, geo.DetailMedium); err != nil {
		return nil, nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index, a.data, nil
}

// SetTransform updates the live view transform and refreshes the index.
func (a *App) SetTransform(t geo.ViewTransform) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view.SetTransform(t)
	if a.index != nil {
		a.index.Rebuild()
	}
}

// Routes builds the HTTP mux for the service.
func (a *App) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /api/counties", a.handleCounties)
	mux.HandleFunc("GET /api/manifest", a.handleManifest)
	mux.HandleFunc("GET /api/county-at-point", a.handleCountyAtPoint)
	mux.HandleFunc("GET /api/nearest", a.handleNearest)
	mux.HandleFunc("GET /api/overlap", a.handleOverlap)
	mux.HandleFunc("GET /api/zoom/county/{id}", a.handleZoomToCounty)
	mux.HandleFunc("GET /api/cache/stats", a.handleCacheStats)
	mux.HandleFunc("DELETE /api/cache", a.handleCacheClear)
	mux.HandleFunc("GET /map.svg", a.handleMapSVG)
	mux.HandleFunc("GET /map.png", a.handleMapPNG)

	if a.cfg.Data.Dir != "" {
		mux.Handle("GET /data/geo/", http.StripPrefix("/data/geo/",
			http.FileServer(http.Dir(a.cfg.Data.Dir))))
	}
	return mux
}
