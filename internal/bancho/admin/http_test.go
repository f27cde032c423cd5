package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/store"
	"github.com/onecho/banchod/pkg/config"
	"github.com/onecho/banchod/pkg/database"
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

func newTestAdminServer(t *testing.T) (*HTTPServer, *app.State, *TokenIssuer) {
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

	tokens := NewTokenIssuer("secret", "banchod-admin")
	srv := NewHTTPServer("127.0.0.1", 0, state, tokens)
	return srv, state, tokens
}

func authedRequest(t *testing.T, tokens *TokenIssuer, method, path string, body io.Reader) *http.Request {
	t.Helper()
	token, err := tokens.Issue("root", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAdminRequestWithoutTokenIsUnauthorized(t *testing.T) {
	srv, _, _ := newTestAdminServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)
	w := httptest.NewRecorder()

	srv.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminSessionsListsRegisteredSessions(t *testing.T) {
	srv, state, tokens := newTestAdminServer(t)
	sess := model.NewSession(5, "u", "u", "tok")
	sess.Privileges = model.PrivPlayer
	require.NoError(t, state.Registry.Register(sess))

	req := authedRequest(t, tokens, http.MethodGet, "/admin/sessions", nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var views []sessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, int32(5), views[0].UserID)
}

func TestAdminSilenceUpdatesStoreAndSession(t *testing.T) {
	srv, state, tokens := newTestAdminServer(t)
	ctx := context.Background()
	id, err := state.Store.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)
	sess := model.NewSession(id, "u", "u", "tok")
	require.NoError(t, state.Registry.Register(sess))

	body, _ := json.Marshal(silenceRequest{UserID: id, Duration: 60})
	req := authedRequest(t, tokens, http.MethodPost, "/admin/silence", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, sess.Drain())

	row, err := state.Store.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, row.SilenceEnd, time.Now().Unix())
}

func TestAdminNoticeBroadcasts(t *testing.T) {
	srv, state, tokens := newTestAdminServer(t)
	sess := model.NewSession(5, "u", "u", "tok")
	sess.Privileges = model.PrivPlayer
	require.NoError(t, state.Registry.Register(sess))

	body, _ := json.Marshal(noticeRequest{Message: "server restarting"})
	req := authedRequest(t, tokens, http.MethodPost, "/admin/notice", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, sess.Drain())
}

func TestAdminChannelsListsTable(t *testing.T) {
	srv, _, tokens := newTestAdminServer(t)

	req := authedRequest(t, tokens, http.MethodGet, "/admin/channels", nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var views []channelView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	assert.NotEmpty(t, views)
}

func TestAdminLeaderboardReturnsTopEntries(t *testing.T) {
	srv, state, tokens := newTestAdminServer(t)
	state.Boards.For(model.ModeOsu).Upsert(1, 5000)
	state.Boards.For(model.ModeOsu).Upsert(2, 9000)

	req := authedRequest(t, tokens, http.MethodGet, "/admin/leaderboard/0", nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var entries []struct {
		UserID int32  `json:"UserID"`
		Score  uint64 `json:"Score"`
		Rank   int32  `json:"Rank"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, int32(2), entries[0].UserID)
}

func TestAdminLeaderboardRejectsInvalidMode(t *testing.T) {
	srv, _, tokens := newTestAdminServer(t)

	req := authedRequest(t, tokens, http.MethodGet, "/admin/leaderboard/99", nil)
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
