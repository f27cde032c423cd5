package login

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/pkg/config"
)

// fallbackGeo is used when the geolocation service is unreachable or
// returns an error: country "in", Mumbai's coordinates.
var fallbackGeo = model.Geo{
	CountryAcronym: "in",
	CountryCode:    countryCode("in"),
	Lat:            19.076,
	Lon:            72.8777,
}

type geoResponse struct {
	CountryCode string  `json:"country_code"`
	Lat         float32 `json:"lat"`
	Lon         float32 `json:"lon"`
}

type cacheEntry struct {
	geo       model.Geo
	expiresAt time.Time
}

// GeoIP resolves a client IP to a Geo, caching successful lookups for
// a configurable TTL so repeated logins from the same address/session
// churn don't re-hit the external service every time (mirrors the
// teacher's per-key tracker with periodic cleanup).
type GeoIP struct {
	client   *http.Client
	endpoint string
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	logger *slog.Logger
}

func NewGeoIP(cfg *config.GeoIPConfig, logger *slog.Logger) *GeoIP {
	g := &GeoIP{
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		endpoint: cfg.Endpoint,
		ttl:      time.Duration(cfg.CacheTTLSec) * time.Second,
		cache:    make(map[string]cacheEntry),
		logger:   logger,
	}
	go g.cleanupLoop()
	return g
}

// Lookup resolves ip to a Geo, consulting the cache first and falling
// back to fallbackGeo on any error.
func (g *GeoIP) Lookup(ip string) model.Geo {
	if g.endpoint == "" {
		return fallbackGeo
	}

	g.mu.Lock()
	if e, ok := g.cache[ip]; ok && time.Now().Before(e.expiresAt) {
		g.mu.Unlock()
		return e.geo
	}
	g.mu.Unlock()

	geo, err := g.fetch(ip)
	if err != nil {
		g.logger.Warn("geoip lookup failed, using fallback", "ip", ip, "error", err)
		return fallbackGeo
	}

	g.mu.Lock()
	g.cache[ip] = cacheEntry{geo: geo, expiresAt: time.Now().Add(g.ttl)}
	g.mu.Unlock()
	return geo
}

func (g *GeoIP) fetch(ip string) (model.Geo, error) {
	url := fmt.Sprintf("%s?ip=%s", g.endpoint, ip)
	resp, err := g.client.Get(url)
	if err != nil {
		return model.Geo{}, fmt.Errorf("geoip: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Geo{}, fmt.Errorf("geoip: status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Geo{}, fmt.Errorf("geoip: decode: %w", err)
	}

	acronym := strings.ToLower(body.CountryCode)
	return model.Geo{
		CountryAcronym: acronym,
		CountryCode:    countryCode(acronym),
		Lat:            body.Lat,
		Lon:            body.Lon,
	}, nil
}

// cleanupLoop evicts expired cache entries periodically instead of on
// every lookup, bounding memory for IPs that never return.
func (g *GeoIP) cleanupLoop() {
	if g.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(g.ttl)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		g.mu.Lock()
		for ip, e := range g.cache {
			if now.After(e.expiresAt) {
				delete(g.cache, ip)
			}
		}
		g.mu.Unlock()
	}
}

// countryCode maps an ISO acronym to the osu! client's numeric country
// id. Only a small set is needed for presence encoding to be
// plausible; unknown acronyms map to 0 (unknown).
func countryCode(acronym string) int32 {
	switch acronym {
	case "in":
		return 86
	case "us":
		return 225
	case "gb":
		return 82
	case "jp":
		return 111
	case "de":
		return 63
	case "kr":
		return 128
	default:
		return 0
	}
}
