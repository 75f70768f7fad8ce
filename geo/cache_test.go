package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testCountyData builds a payload whose estimated size is stable across
// calls for the same seed.
func testCountyData(seed int) *CountyData {
	fc := NewFeatureCollection()
	fc.AddFeature(squareFeature(fmt.Sprintf("060%02d", seed), "Test", -122, 37, 1))
	return &CountyData{Collection: fc, Lookup: BuildLookup(fc)}
}

func fetchCounting(counter *atomic.Int32) FetchFunc {
	return func(ctx context.Context, level DetailLevel) (*CountyData, error) {
		counter.Add(1)
		return testCountyData(1), nil
	}
}

func TestDetailCache_GetCachesResult(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		data, err := cache.Get(context.Background(), DetailMedium, fetchCounting(&calls))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if data == nil || len(data.Collection.Features) != 1 {
			t.Fatal("Get() returned wrong payload")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times, want 1", calls.Load())
	}
	if !cache.IsCached(DetailMedium) {
		t.Error("IsCached() = false after Get")
	}
}

func TestDetailCache_ConcurrentGetsCoalesce(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(ctx context.Context, level DetailLevel) (*CountyData, error) {
		calls.Add(1)
		<-release
		return testCountyData(1), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), DetailHigh, fetch); err != nil {
				t.Errorf("Get() error: %v", err)
			}
		}()
	}

	// Give the goroutines time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fetch ran %d times, want 1", calls.Load())
	}
}

func TestDetailCache_FailedFetchNotCached(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	wantErr := errors.New("upstream down")
	var calls atomic.Int32

	fetch := func(ctx context.Context, level DetailLevel) (*CountyData, error) {
		if calls.Add(1) == 1 {
			return nil, wantErr
		}
		return testCountyData(1), nil
	}

	if _, err := cache.Get(context.Background(), DetailLow, fetch); !errors.Is(err, wantErr) {
		t.Fatalf("Get() error = %v, want %v", err, wantErr)
	}
	if cache.IsCached(DetailLow) {
		t.Error("failed fetch was cached")
	}

	if _, err := cache.Get(context.Background(), DetailLow, fetch); err != nil {
		t.Fatalf("retry Get() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("fetch ran %d times, want 2", calls.Load())
	}
}

func TestDetailCache_TTLExpiry(t *testing.T) {
	cache := NewDetailCache(30*time.Minute, DefaultCacheBudget, zerolog.Nop())
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put(DetailMedium, testCountyData(1))
	if !cache.IsCached(DetailMedium) {
		t.Fatal("entry not cached")
	}

	now = now.Add(29 * time.Minute)
	if !cache.IsCached(DetailMedium) {
		t.Error("entry expired before TTL")
	}

	now = now.Add(2 * time.Minute)
	if cache.IsCached(DetailMedium) {
		t.Error("entry still cached after TTL")
	}

	var calls atomic.Int32
	if _, err := cache.Get(context.Background(), DetailMedium, fetchCounting(&calls)); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expired entry served without refetch, calls=%d", calls.Load())
	}
}

func TestDetailCache_EvictsOldestOverBudget(t *testing.T) {
	entrySize := testCountyData(1).EstimatedSize()
	// Room for two entries; a third insert must evict back to 80%.
	budget := entrySize*2 + entrySize/2
	cache := NewDetailCache(DefaultCacheTTL, budget, zerolog.Nop())

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put(DetailUltraLow, testCountyData(1))
	now = now.Add(time.Minute)
	cache.Put(DetailLow, testCountyData(2))
	now = now.Add(time.Minute)
	cache.Put(DetailMedium, testCountyData(3))

	if cache.IsCached(DetailUltraLow) {
		t.Error("oldest entry survived eviction")
	}
	if !cache.IsCached(DetailMedium) {
		t.Error("newest entry was evicted")
	}

	stats := cache.Stats()
	if stats.TotalSize > int64(float64(budget)*0.8)+entrySize {
		t.Errorf("TotalSize = %d after eviction, budget %d", stats.TotalSize, budget)
	}
}

func TestDetailCache_InsertedEntrySurvivesItsOwnEviction(t *testing.T) {
	entrySize := testCountyData(1).EstimatedSize()
	// One entry fits the budget but exceeds the 80% eviction target, so a
	// naive oldest-first sweep would delete the entry just stored.
	budget := entrySize + entrySize/10
	cache := NewDetailCache(DefaultCacheTTL, budget, zerolog.Nop())

	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put(DetailUltraLow, testCountyData(1))
	now = now.Add(time.Minute)
	cache.Put(DetailLow, testCountyData(2))

	if cache.IsCached(DetailUltraLow) {
		t.Error("older entry survived over-budget insert")
	}
	if !cache.IsCached(DetailLow) {
		t.Error("entry evicted by the insertion that created it")
	}

	stats := cache.Stats()
	if stats.ItemCount != 1 {
		t.Errorf("ItemCount = %d, want 1", stats.ItemCount)
	}
}

func TestDetailCache_AvailableLevelsFinestFirst(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	cache.Put(DetailUltraLow, testCountyData(1))
	cache.Put(DetailHigh, testCountyData(2))

	levels := cache.AvailableLevels()
	if len(levels) != 2 {
		t.Fatalf("AvailableLevels() = %v, want 2 levels", levels)
	}
	if levels[0] != DetailHigh || levels[1] != DetailUltraLow {
		t.Errorf("AvailableLevels() = %v, want [high ultra-low]", levels)
	}
}

func TestDetailCache_Clear(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	cache.Put(DetailMedium, testCountyData(1))
	cache.Clear()

	if cache.IsCached(DetailMedium) {
		t.Error("entry survived Clear()")
	}
	if got := cache.Stats().ItemCount; got != 0 {
		t.Errorf("ItemCount = %d after Clear, want 0", got)
	}
}

func TestDetailCache_StatsCounters(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	var calls atomic.Int32

	ctx := context.Background()
	fetch := fetchCounting(&calls)
	_, _ = cache.Get(ctx, DetailMedium, fetch) // miss
	_, _ = cache.Get(ctx, DetailMedium, fetch) // hit
	_, _ = cache.Get(ctx, DetailMedium, fetch) // hit

	stats := cache.Stats()
	if stats.ItemCount != 1 {
		t.Errorf("ItemCount = %d, want 1", stats.ItemCount)
	}
	if stats.TotalSize <= 0 {
		t.Errorf("TotalSize = %d, want positive", stats.TotalSize)
	}
	if stats.Utilization <= 0 || stats.Utilization > 1 {
		t.Errorf("Utilization = %v, want in (0, 1]", stats.Utilization)
	}
	ls := stats.Levels[DetailMedium]
	if ls.Hits != 2 || ls.Misses != 1 {
		t.Errorf("level stats = %d hits / %d misses, want 2/1", ls.Hits, ls.Misses)
	}
	if stats.OldestEntry.IsZero() || stats.NewestEntry.IsZero() {
		t.Error("entry timestamps not recorded")
	}
}

func TestDetailCache_ContextCancelledWhileWaiting(t *testing.T) {
	cache := NewDetailCache(DefaultCacheTTL, DefaultCacheBudget, zerolog.Nop())
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	blocking := func(ctx context.Context, level DetailLevel) (*CountyData, error) {
		close(started)
		<-release
		return testCountyData(1), nil
	}

	go func() {
		_, _ = cache.Get(context.Background(), DetailHigh, blocking)
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Get(ctx, DetailHigh, func(context.Context, DetailLevel) (*CountyData, error) {
		t.Error("second fetch should not run")
		return nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}
