package main

import (
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/kwv/countyatlas/geo"
)

var highlightFill = color.NRGBA{R: 252, G: 211, B: 77, A: 255}

// writeJSON encodes a response body, logging encode failures.
func (a *App) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error().Err(err).Msg("Error encoding response")
	}
}

// queryFloat parses a float query parameter, returning def when absent.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	hasData := a.data != nil
	a.mu.RUnlock()

	a.writeJSON(w, struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
		HasData   bool      `json:"hasData"`
		Cached    int       `json:"cachedLevels"`
	}{
		Status:    "ok",
		Timestamp: time.Now(),
		HasData:   hasData,
		Cached:    len(a.cache.AvailableLevels()),
	})
}

// handleCounties serves the feature collection for a detail level. The
// level comes from ?level=, or is derived from ?zoom= when absent.
func (a *App) handleCounties(w http.ResponseWriter, r *http.Request) {
	zoom, err := queryFloat(r, "zoom", 0)
	if err != nil {
		http.Error(w, "invalid zoom", http.StatusBadRequest)
		return
	}

	level := geo.OptimalDetailLevel(zoom)
	if s := r.URL.Query().Get("level"); s != "" {
		level, err = geo.ParseDetailLevel(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	vp := geo.Viewport{Zoom: zoom, Area: 1e6}
	if zoom == 0 {
		vp.Zoom = 8
	}

	data, err := a.ensureData(r.Context(), vp, level)
	if err != nil {
		a.log.Error().Err(err).Str("level", string(level)).Msg("County data load failed")
		http.Error(w, "county data unavailable", http.StatusBadGateway)
		return
	}
	a.writeJSON(w, data.Collection)
}

func (a *App) handleManifest(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, geo.Manifest())
}

// handleCountyAtPoint resolves ?lon=&lat= to the containing county.
func (a *App) handleCountyAtPoint(w http.ResponseWriter, r *http.Request) {
	lon, lonErr := queryFloat(r, "lon", 0)
	lat, latErr := queryFloat(r, "lat", 0)
	if lonErr != nil || latErr != nil || r.URL.Query().Get("lon") == "" || r.URL.Query().Get("lat") == "" {
		http.Error(w, "lon and lat are required", http.StatusBadRequest)
		return
	}

	index, _, err := a.activeIndex(r.Context())
	if err != nil {
		http.Error(w, "county data unavailable", http.StatusBadGateway)
		return
	}

	feature := index.PointInFeature(orb.Point{lon, lat})
	if feature == nil {
		http.Error(w, "no county at point", http.StatusNotFound)
		return
	}
	a.writeJSON(w, feature)
}

// handleNearest resolves screen coordinates ?x=&y= to the county with the
// closest centroid within ?max= pixels (default 50).
func (a *App) handleNearest(w http.ResponseWriter, r *http.Request) {
	x, xErr := queryFloat(r, "x", 0)
	y, yErr := queryFloat(r, "y", 0)
	maxDist, maxErr := queryFloat(r, "max", 50)
	if xErr != nil || yErr != nil || maxErr != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	index, _, err := a.activeIndex(r.Context())
	if err != nil {
		http.Error(w, "county data unavailable", http.StatusBadGateway)
		return
	}

	feature := index.NearestFeature(orb.Point{x, y}, maxDist)
	if feature == nil {
		http.Error(w, "no county within range", http.StatusNotFound)
		return
	}
	a.writeJSON(w, feature)
}

// handleOverlap lists counties whose screen bounds overlap the query
// rectangle ?minX=&minY=&maxX=&maxY= by at least ?threshold=.
func (a *App) handleOverlap(w http.ResponseWriter, r *http.Request) {
	minX, e1 := queryFloat(r, "minX", 0)
	minY, e2 := queryFloat(r, "minY", 0)
	maxX, e3 := queryFloat(r, "maxX", 0)
	maxY, e4 := queryFloat(r, "maxY", 0)
	threshold, e5 := queryFloat(r, "threshold", geo.DefaultOverlapThreshold)
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
		http.Error(w, "invalid rectangle", http.StatusBadRequest)
		return
	}
	if maxX <= minX || maxY <= minY {
		http.Error(w, "empty rectangle", http.StatusBadRequest)
		return
	}

	index, _, err := a.activeIndex(r.Context())
	if err != nil {
		http.Error(w, "county data unavailable", http.StatusBadGateway)
		return
	}

	rect := orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
	matches := index.BoundingBoxOverlap(rect, threshold)

	type match struct {
		GeoID string  `json:"geoid"`
		Name  string  `json:"name"`
		Ratio float64 `json:"ratio"`
	}
	out := make([]match, 0, len(matches))
	for _, m := range matches {
		out = append(out, match{
			GeoID: m.Feature.GeoID(),
			Name:  m.Feature.Name(),
			Ratio: m.Ratio,
		})
	}
	a.writeJSON(w, out)
}

// handleZoomToCounty returns the transform that frames one county. The
// transform is applied to the live view so subsequent hit tests and
// renders use it.
func (a *App) handleZoomToCounty(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	padding, err := queryFloat(r, "padding", geo.DefaultFitPadding)
	if err != nil || padding < 0 || padding >= 1 {
		http.Error(w, "invalid padding", http.StatusBadRequest)
		return
	}

	_, data, err := a.activeIndex(r.Context())
	if err != nil {
		http.Error(w, "county data unavailable", http.StatusBadGateway)
		return
	}

	transform, err := a.view.ZoomToFeature(data.Collection, id, padding)
	if err != nil {
		if errors.Is(err, geo.ErrCountyNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	a.SetTransform(transform)
	a.writeJSON(w, transform)
}

func (a *App) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, a.cache.Stats())
}

func (a *App) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	a.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// renderCollection loads the active level and renders it, optionally
// highlighting ?highlight=GEOID.
func (a *App) renderCollection(w http.ResponseWriter, r *http.Request, svgOut bool) {
	_, data, err := a.activeIndex(r.Context())
	if err != nil {
		http.Error(w, "county data unavailable", http.StatusBadGateway)
		return
	}

	renderer := geo.NewMapRenderer(a.view)
	if hl := r.URL.Query().Get("highlight"); hl != "" {
		renderer.Highlight[hl] = highlightFill
	}
	renderer.Labels = r.URL.Query().Get("labels") == "true"

	w.Header().Set("Cache-Control", "no-cache")
	if svgOut {
		w.Header().Set("Content-Type", "image/svg+xml")
		err = renderer.RenderToSVG(w, data.Collection)
	} else {
		w.Header().Set("Content-Type", "image/png")
		err = renderer.RenderToPNG(w, data.Collection)
	}
	if err != nil {
		a.log.Error().Err(err).Msg("Error rendering map")
	}
}

func (a *App) handleMapSVG(w http.ResponseWriter, r *http.Request) {
	a.renderCollection(w, r, true)
}

func (a *App) handleMapPNG(w http.ResponseWriter, r *http.Request) {
	a.renderCollection(w, r, false)
}
