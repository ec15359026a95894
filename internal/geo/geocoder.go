// Package geo resolves client locations to ZIP codes and measures distances between
// ZIP codes for the distance ranking dimension.
package geo

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"placement-workers/internal/common/database"
	"placement-workers/internal/common/errors"
	commonhttp "placement-workers/internal/common/http"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/common/metrics"

	"golang.org/x/time/rate"
)

// Cache stores geocoding results. *database.RedisClient satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// GeocoderConfig configures a Geocoder.
type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	RPS       float64
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// Geocoder looks up ZIP coordinates through a Nominatim-compatible search API.
// Requests are throttled to RPS and results, including misses, are cached.
type Geocoder struct {
	config  *GeocoderConfig
	http    *commonhttp.Client
	limiter *rate.Limiter
	cache   Cache
	logger  logger.Logger

	mu    sync.Mutex
	local map[string]cachedPoint
}

type cachedPoint struct {
	Point
	Found bool `json:"found"`
}

type searchResult struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		Postcode string `json:"postcode"`
	} `json:"address"`
}

// NewGeocoder creates a Geocoder. cache may be nil, in which case results are only
// kept in process memory.
func NewGeocoder(config *GeocoderConfig, cache Cache, log logger.Logger) *Geocoder {
	rps := config.RPS
	if rps <= 0 {
		rps = 1
	}
	return &Geocoder{
		config:  config,
		http:    commonhttp.NewClient(config.Timeout).WithHeader("User-Agent", config.UserAgent),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cache:   cache,
		logger:  log.With(map[string]interface{}{"component": "geocoder"}),
		local:   make(map[string]cachedPoint),
	}
}

// Distance returns the miles between two ZIP codes rounded to two decimals. When either
// ZIP cannot be geocoded the prefix estimate is returned instead. The error is non-nil
// only when ctx is done.
func (g *Geocoder) Distance(ctx context.Context, zip1, zip2 string) (float64, error) {
	z1, z2 := NormalizeZIP(zip1), NormalizeZIP(zip2)
	if z1 == "" || z2 == "" {
		return UnknownDistance, nil
	}

	p1, ok1, err := g.Coordinates(ctx, z1)
	if err != nil {
		return UnknownDistance, err
	}
	p2, ok2, err := g.Coordinates(ctx, z2)
	if err != nil {
		return UnknownDistance, err
	}

	if !ok1 || !ok2 {
		return EstimateZIPDistance(z1, z2), nil
	}
	return round2(HaversineMiles(p1, p2)), nil
}

// Coordinates geocodes a ZIP code. ok is false when the service has no match or the
// lookup failed.
func (g *Geocoder) Coordinates(ctx context.Context, zip string) (Point, bool, error) {
	key := "geo:zip:" + zip
	if cp, hit := g.lookupCache(ctx, key); hit {
		return cp.Point, cp.Found, nil
	}

	results, err := g.search(ctx, url.Values{"q": {zip + ", USA"}})
	if err != nil {
		if ctx.Err() != nil {
			return Point{}, false, ctx.Err()
		}
		g.logger.Warn("geocoding failed", map[string]interface{}{"zip": zip, "error": err.Error()})
		return Point{}, false, nil
	}

	cp := cachedPoint{}
	if len(results) > 0 {
		lat, errLat := strconv.ParseFloat(results[0].Lat, 64)
		lon, errLon := strconv.ParseFloat(results[0].Lon, 64)
		if errLat == nil && errLon == nil {
			cp = cachedPoint{Point: Point{Lat: lat, Lon: lon}, Found: true}
		}
	}

	g.storeCache(ctx, key, cp)
	return cp.Point, cp.Found, nil
}

// LookupPostcode geocodes a free-text place and returns its 5-digit postcode, or "" when
// none is found. New York state is appended when the text names no state.
func (g *Geocoder) LookupPostcode(ctx context.Context, place string) (string, error) {
	query := strings.TrimSpace(place)
	lower := strings.ToLower(query)
	if !strings.Contains(lower, " ny") && !strings.Contains(lower, " new york") {
		query += ", New York"
	}

	key := "geo:place:" + strings.ToLower(query)
	var cached string
	if g.cache != nil {
		if err := g.cache.GetJSON(ctx, key, &cached); err == nil {
			metrics.DistanceCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
	}
	metrics.DistanceCacheLookups.WithLabelValues("miss").Inc()

	results, err := g.search(ctx, url.Values{"q": {query}, "addressdetails": {"1"}})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.NewDistanceLookupFailedError(err)
	}

	postcode := ""
	if len(results) > 0 {
		pc := NormalizeZIP(results[0].Address.Postcode)
		if IsZIP(pc) {
			postcode = pc
		}
	}

	if g.cache != nil {
		if err := g.cache.SetJSON(ctx, key, postcode, g.config.CacheTTL); err != nil {
			g.logger.Debug("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return postcode, nil
}

func (g *Geocoder) search(ctx context.Context, params url.Values) ([]searchResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding status %d", resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}
	return results, nil
}

func (g *Geocoder) lookupCache(ctx context.Context, key string) (cachedPoint, bool) {
	g.mu.Lock()
	cp, ok := g.local[key]
	g.mu.Unlock()
	if ok {
		metrics.DistanceCacheLookups.WithLabelValues("hit").Inc()
		return cp, true
	}

	if g.cache != nil {
		err := g.cache.GetJSON(ctx, key, &cp)
		if err == nil {
			g.mu.Lock()
			g.local[key] = cp
			g.mu.Unlock()
			metrics.DistanceCacheLookups.WithLabelValues("hit").Inc()
			return cp, true
		}
		if !stderrors.Is(err, database.ErrCacheMiss) {
			g.logger.Debug("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	metrics.DistanceCacheLookups.WithLabelValues("miss").Inc()
	return cachedPoint{}, false
}

func (g *Geocoder) storeCache(ctx context.Context, key string, cp cachedPoint) {
	g.mu.Lock()
	g.local[key] = cp
	g.mu.Unlock()

	if g.cache != nil {
		if err := g.cache.SetJSON(ctx, key, cp, g.config.CacheTTL); err != nil {
			g.logger.Debug("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}
