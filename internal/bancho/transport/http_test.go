package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/login"
	"github.com/onecho/banchod/internal/bancho/packet"
	"github.com/onecho/banchod/internal/bancho/store"
	"github.com/onecho/banchod/pkg/config"
	"github.com/onecho/banchod/pkg/database"
	"github.com/onecho/banchod/pkg/encryption"
	"github.com/onecho/banchod/pkg/metrics"
	"github.com/onecho/banchod/pkg/ttyrec"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Registry
)

func sharedTestMetrics() *metrics.Registry {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewRegistry("banchod-test", "dev", "unknown", "unknown", testLogger())
	})
	return testMetrics
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	conn, err := database.NewConnection(&config.DatabaseConfig{
		Mode:     config.DatabaseModeEmbedded,
		Embedded: &config.EmbeddedDBConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	st := store.New(conn)
	require.NoError(t, st.Init(context.Background()))

	rec, err := ttyrec.NewRecorder(&config.TTYRecConfig{Enabled: false})
	require.NoError(t, err)

	cfg := &config.BanchoConfig{Server: &config.ServerConfig{MainDomain: "test.local"}}
	state := app.New(cfg, testLogger(), sharedTestMetrics(), st, rec)
	require.NoError(t, state.Bootstrap(context.Background()))

	crypt, err := encryption.New(&config.EncryptionConfig{Time: 1, MemoryKB: 64, Threads: 1, KeyLen: 16})
	require.NoError(t, err)
	geoip := login.NewGeoIP(&config.GeoIPConfig{}, testLogger())
	limiter := login.NewRateLimiter(1000)
	lockout := login.NewLockout(1000, time.Minute)
	loginSvc := login.NewService(state, crypt, geoip, limiter, lockout)

	return NewServer(&ServerConfig{Host: "127.0.0.1", Port: 0}, state, loginSvc, testLogger())
}

func TestLandingPageServedForBrowserGET(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	s.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test.local")
}

func TestLoginRequestWithoutTokenReturnsChoToken(t *testing.T) {
	s := newTestServer(t)
	body := "NewPlayer\nhash1\nb20240101.1|2|abc|def|0\n"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("User-Agent", "osu!")
	w := httptest.NewRecorder()

	s.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("cho-token"))
	assert.NotEmpty(t, w.Body.Bytes())
}

func TestUnknownSessionTokenGetsRestartFrames(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	req.Header.Set("User-Agent", "osu!")
	req.Header.Set("osu-token", "no-such-token")
	w := httptest.NewRecorder()

	s.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	frames, err := packet.SplitFrames(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, packet.SRVNotification, frames[0].ID)
	assert.Equal(t, packet.SRVRestart, frames[1].ID)
}

func TestKnownSessionTokenDispatchesAndDrains(t *testing.T) {
	s := newTestServer(t)

	loginReq := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Player\nhash1\nb20240101.1|2|abc|def|0\n"))
	loginReq.Header.Set("User-Agent", "osu!")
	loginW := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(loginW, loginReq)
	token := loginW.Header().Get("cho-token")
	require.NotEmpty(t, token)

	heartbeat := packet.NewWriter().Finish(packet.OSUHeartbeat)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(heartbeat)))
	req.Header.Set("User-Agent", "osu!")
	req.Header.Set("osu-token", token)
	w := httptest.NewRecorder()

	s.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	frames, err := packet.SplitFrames(w.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, packet.SRVPong, frames[0].ID)
}

func TestAvatarEndpointReturnsNoContent(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/users/avatar/5", nil)
	w := httptest.NewRecorder()

	s.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9")
	req.RemoteAddr = "1.1.1.1:1234"

	assert.Equal(t, "9.9.9.9", clientIP(req))
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "1.1.1.1:1234"

	assert.Equal(t, "1.1.1.1", clientIP(req))
}
