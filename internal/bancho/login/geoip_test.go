package login

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/pkg/config"
)

func TestGeoIPWithNoEndpointReturnsFallback(t *testing.T) {
	g := NewGeoIP(&config.GeoIPConfig{}, testLogger())

	geo := g.Lookup("1.2.3.4")

	assert.Equal(t, "in", geo.CountryAcronym)
}

func TestGeoIPFetchesAndCaches(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(geoResponse{CountryCode: "US", Lat: 1.5, Lon: 2.5})
	}))
	defer srv.Close()

	g := NewGeoIP(&config.GeoIPConfig{Endpoint: srv.URL, TimeoutSec: 2, CacheTTLSec: 60}, testLogger())

	geo := g.Lookup("5.6.7.8")
	require.Equal(t, "us", geo.CountryAcronym)
	assert.Equal(t, int32(225), geo.CountryCode)

	g.Lookup("5.6.7.8")
	assert.Equal(t, 1, hits, "second lookup should hit the cache, not the endpoint")
}

func TestGeoIPFallsBackOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGeoIP(&config.GeoIPConfig{Endpoint: srv.URL, TimeoutSec: 2, CacheTTLSec: 60}, testLogger())

	geo := g.Lookup("9.9.9.9")
	assert.Equal(t, fallbackGeo, geo)
}

func TestCountryCodeUnknownIsZero(t *testing.T) {
	assert.Equal(t, int32(0), countryCode("zz"))
	assert.Equal(t, int32(82), countryCode("gb"))
}
