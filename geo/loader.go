package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for data fetches.
	DefaultFetchTimeout = 30 * time.Second

	// maxResponseBytes limits a response body to 50 MB to prevent OOM.
	maxResponseBytes = 50 << 20

	// streamChunkBytes is the read size used when streaming a response.
	streamChunkBytes = 64 * 1024

	// progressiveZoomCutoff selects progressive loading below this zoom.
	progressiveZoomCutoff = 6

	// progressiveAreaCutoff selects progressive loading when the visible
	// geographic area is below this many square units.
	progressiveAreaCutoff = 100000
)

// ErrStreamingUnsupported reports a streaming load against a fetcher that
// cannot stream.
var ErrStreamingUnsupported = fmt.Errorf("fetcher does not support streaming")

// LoadStrategy names how a detail level was, or would be, loaded.
type LoadStrategy string

const (
	StrategyProgressive LoadStrategy = "progressive"
	StrategyStreaming   LoadStrategy = "streaming"
	StrategyBatch       LoadStrategy = "batch"
)

// Viewport describes the current view for strategy selection: the zoom
// level and the visible geographic area.
type Viewport struct {
	Zoom float64
	Area float64
}

// CountyData bundles a feature collection with its lookup table. It is the
// unit the cache and loader move around.
type CountyData struct {
	Collection *FeatureCollection
	Lookup     *CountyLookup
}

// EstimatedSize approximates the in-memory footprint in bytes using the
// serialized size of both parts.
func (d *CountyData) EstimatedSize() int64 {
	if d == nil {
		return 0
	}
	var size int64
	if d.Collection != nil {
		size += int64(serializedSize(d.Collection))
	}
	if d.Lookup != nil {
		if b, err := json.Marshal(d.Lookup); err == nil {
			size += int64(len(b))
		}
	}
	return size
}

// Fetcher retrieves county data for one detail level.
type Fetcher interface {
	Fetch(ctx context.Context, level DetailLevel) (*CountyData, error)
}

// StreamingFetcher is implemented by fetchers that can deliver county data
// incrementally.
type StreamingFetcher interface {
	FetchStream(ctx context.Context, level DetailLevel) (*CountyData, error)
}

// AdaptiveLoader picks a loading strategy per request from the viewport and
// the requested detail level, and serves results through the detail cache.
type AdaptiveLoader struct {
	fetcher Fetcher
	cache   *DetailCache
	log     zerolog.Logger
}

// NewAdaptiveLoader wires a fetcher to a cache.
func NewAdaptiveLoader(fetcher Fetcher, cache *DetailCache, log zerolog.Logger) *AdaptiveLoader {
	return &AdaptiveLoader{fetcher: fetcher, cache: cache, log: log}
}

// SelectStrategy applies the strategy rules in order: progressive for low
// zoom or small visible area, streaming for the finest detail level, batch
// otherwise.
func SelectStrategy(vp Viewport, level DetailLevel) LoadStrategy {
	if vp.Zoom < progressiveZoomCutoff || vp.Area < progressiveAreaCutoff {
		return StrategyProgressive
	}
	if level == DetailHigh {
		return StrategyStreaming
	}
	return StrategyBatch
}

// Load returns county data at the requested level, choosing the strategy
// from the viewport. Cached levels are served without a fetch regardless of
// strategy.
func (l *AdaptiveLoader) Load(ctx context.Context, vp Viewport, level DetailLevel) (*CountyData, error) {
	strategy := SelectStrategy(vp, level)
	l.log.Debug().
		Str("level", string(level)).
		Str("strategy", string(strategy)).
		Float64("zoom", vp.Zoom).
		Msg("loading county data")

	switch strategy {
	case StrategyProgressive:
		return l.loadProgressive(ctx, level)
	case StrategyStreaming:
		return l.loadStreaming(ctx, level)
	default:
		return l.loadBatch(ctx, level)
	}
}

// loadProgressive first ensures the next coarser level is available, for
// immediate display, then loads the requested level. A coarse-level
// failure is logged but does not fail the request.
func (l *AdaptiveLoader) loadProgressive(ctx context.Context, level DetailLevel) (*CountyData, error) {
	if coarse := LowerLevel(level); coarse != "" && !l.cache.IsCached(coarse) {
		if _, err := l.cache.Get(ctx, coarse, l.fetcher.Fetch); err != nil {
			l.log.Warn().Err(err).
				Str("level", string(coarse)).
				Msg("progressive pre-load failed")
		}
	}
	return l.cache.Get(ctx, level, l.fetcher.Fetch)
}

// loadStreaming requires the fetcher to implement StreamingFetcher. A
// stream failure is returned as-is, with no batch fallback.
func (l *AdaptiveLoader) loadStreaming(ctx context.Context, level DetailLevel) (*CountyData, error) {
	sf, ok := l.fetcher.(StreamingFetcher)
	if !ok {
		return nil, fmt.Errorf("load %s: %w", level, ErrStreamingUnsupported)
	}
	return l.cache.Get(ctx, level, sf.FetchStream)
}

func (l *AdaptiveLoader) loadBatch(ctx context.Context, level DetailLevel) (*CountyData, error) {
	return l.cache.Get(ctx, level, l.fetcher.Fetch)
}

// Preload warms the cache for the given levels in order. The first failure
// stops the preload and is returned.
func (l *AdaptiveLoader) Preload(ctx context.Context, levels ...DetailLevel) error {
	for _, level := range levels {
		if _, err := l.cache.Get(ctx, level, l.fetcher.Fetch); err != nil {
			return fmt.Errorf("preload %s: %w", level, err)
		}
	}
	return nil
}

// FetchOption configures an HTTPFetcher.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout time.Duration
	client  *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{timeout: DefaultFetchTimeout}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// HTTPFetcher loads pre-optimized county data files over HTTP. It expects
// the layout produced by the optimizer: ca-counties-{level}.geojson plus a
// shared county-lookup.json under the base URL.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the given base URL, e.g.
// "https://example.com/data/geo".
func NewHTTPFetcher(baseURL string, opts ...FetchOption) *HTTPFetcher {
	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}
	return &HTTPFetcher{baseURL: baseURL, client: client}
}

// Fetch downloads and parses the collection and lookup for one level.
func (f *HTTPFetcher) Fetch(ctx context.Context, level DetailLevel) (*CountyData, error) {
	body, err := f.get(ctx, f.collectionURL(level))
	if err != nil {
		return nil, fmt.Errorf("fetch %s counties: %w", level, err)
	}
	return f.assemble(ctx, level, body)
}

// FetchStream downloads the collection in fixed-size chunks, concatenating
// them before the parse. The chunked read keeps per-read memory bounded for
// the large high-detail file.
func (f *HTTPFetcher) FetchStream(ctx context.Context, level DetailLevel) (*CountyData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.collectionURL(level), nil)
	if err != nil {
		return nil, fmt.Errorf("stream %s counties: %w", level, err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream %s counties: %w", level, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stream %s counties: status %d", level, resp.StatusCode)
	}

	var buf bytes.Buffer
	chunk := make([]byte, streamChunkBytes)
	reader := io.LimitReader(resp.Body, maxResponseBytes)
	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stream %s counties: %w", level, err)
		}
	}

	return f.assemble(ctx, level, buf.Bytes())
}

// assemble parses a collection body and attaches the lookup table. A
// missing lookup is tolerated; one is derived from the features.
func (f *HTTPFetcher) assemble(ctx context.Context, level DetailLevel, body []byte) (*CountyData, error) {
	fc, err := ParseFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s counties: %w", level, err)
	}

	data := &CountyData{Collection: fc}

	lookupBody, err := f.get(ctx, f.baseURL+"/county-lookup.json")
	if err == nil {
		if lookup, perr := ParseCountyLookup(lookupBody); perr == nil {
			data.Lookup = lookup
		}
	}
	if data.Lookup == nil {
		data.Lookup = BuildLookup(fc)
	}
	return data, nil
}

func (f *HTTPFetcher) collectionURL(level DetailLevel) string {
	return fmt.Sprintf("%s/ca-counties-%s.geojson", f.baseURL, level)
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
