package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/store"
	"github.com/onecho/banchod/pkg/config"
	"github.com/onecho/banchod/pkg/database"
	"github.com/onecho/banchod/pkg/metrics"
	"github.com/onecho/banchod/pkg/ttyrec"
)

// metrics.NewRegistry registers its collectors on the Prometheus default
// registerer, so the whole test package must share a single instance or
// a second call panics on duplicate registration.
var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Registry
)

func sharedTestMetrics() *metrics.Registry {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewRegistry("banchod-test", "dev", "unknown", "unknown", slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
	return testMetrics
}

func newTestState(t *testing.T) *State {
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

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.BanchoConfig{Server: &config.ServerConfig{MainDomain: "test.local"}}

	return New(cfg, logger, sharedTestMetrics(), st, rec)
}

func TestNewPopulatesEveryCollaborator(t *testing.T) {
	state := newTestState(t)

	assert.NotNil(t, state.Registry)
	assert.NotNil(t, state.Channels)
	assert.NotNil(t, state.Boards)
	assert.NotNil(t, state.Spectate)
	require.NotNil(t, state.Bot)
	assert.True(t, state.Bot.IsBot)
}

func TestBootstrapCreatesFixedChannels(t *testing.T) {
	state := newTestState(t)
	require.NoError(t, state.Bootstrap(context.Background()))

	for _, name := range []string{"#osu", "#announce", "#lobby"} {
		_, ok := state.Channels.Get(name)
		assert.True(t, ok, "expected channel %s to exist", name)
	}
}

func TestBootstrapSeedsLeaderboardsFromPersistedStats(t *testing.T) {
	state := newTestState(t)
	ctx := context.Background()

	id, err := state.Store.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)
	require.NoError(t, state.Store.InitStats(ctx, id))
	require.NoError(t, state.Store.UpsertStats(ctx, id, model.ModeOsu, &model.Stats{RankedScore: 9999}))

	require.NoError(t, state.Bootstrap(ctx))

	assert.Equal(t, int32(1), state.Boards.For(model.ModeOsu).Rank(id))
}

func TestBootstrapLoadsPersistedChannelACLs(t *testing.T) {
	state := newTestState(t)
	ctx := context.Background()

	require.NoError(t, state.Store.UpsertChannel(ctx, store.ChannelRow{
		Name: "#custom", Topic: "Custom room", ReadPrivs: model.PrivPlayer, WritePrivs: model.PrivModerator, AutoJoin: false,
	}))

	require.NoError(t, state.Bootstrap(ctx))

	c, ok := state.Channels.Get("#custom")
	require.True(t, ok)
	assert.Equal(t, "Custom room", c.Topic)
}
