package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/relation"
	"github.com/onecho/banchod/pkg/config"
	"github.com/onecho/banchod/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := database.NewConnection(&config.DatabaseConfig{
		Mode:     config.DatabaseModeEmbedded,
		Embedded: &config.EmbeddedDBConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	s := New(conn)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestInitSeedsBotAndReservedUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bot, err := s.UserByID(ctx, model.BotUserID)
	require.NoError(t, err)
	assert.Equal(t, "onecho!", bot.Username)

	_, err = s.UserByID(ctx, 2)
	require.NoError(t, err)
}

func TestCreateAndLookupUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, "Cookiezi", "cookiezi", "hash", "KR", model.PrivPlayer, true)
	require.NoError(t, err)
	assert.Greater(t, id, int32(2))

	byID, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Cookiezi", byID.Username)
	assert.True(t, byID.PmPrivate)

	byName, err := s.UserByUsernameSafe(ctx, "cookiezi")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)
}

func TestUserByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UserByID(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePmPrivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)

	require.NoError(t, s.UpdatePmPrivate(ctx, id, true))

	row, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, row.PmPrivate)
}

func TestUpdateSilence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)

	end := time.Now().Add(time.Hour).Unix()
	require.NoError(t, s.UpdateSilence(ctx, id, end))

	row, err := s.UserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, end, row.SilenceEnd)
}

func TestInitStatsAndStatsFor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)

	require.NoError(t, s.InitStats(ctx, id))

	stats, err := s.StatsFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, stats, len(model.AllModes))
	for _, m := range model.AllModes {
		assert.Zero(t, stats[m].RankedScore)
	}
}

func TestUpsertStatsPersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)
	require.NoError(t, s.InitStats(ctx, id))

	st := &model.Stats{RankedScore: 123456, PP: 700, Accuracy: 98.5}
	require.NoError(t, s.UpsertStats(ctx, id, model.ModeOsu, st))

	got, err := s.StatsFor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), got[model.ModeOsu].RankedScore)
	assert.Equal(t, int32(700), got[model.ModeOsu].PP)
}

func TestRelationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRelation(ctx, relation.Record{UserID: 3, OtherID: 4, Kind: relation.KindFriend, Since: time.Now()}))

	records, err := s.RelationsFor(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int32(4), records[0].OtherID)

	require.NoError(t, s.DeleteRelation(ctx, 3, 4, relation.KindFriend))
	records, err = s.RelationsFor(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestChannelRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChannel(ctx, ChannelRow{
		Name: "#osu", Topic: "Main channel", ReadPrivs: model.PrivPlayer, WritePrivs: model.PrivPlayer, AutoJoin: true,
	}))

	rows, err := s.Channels(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "#osu", rows[0].Name)
	assert.True(t, rows[0].AutoJoin)

	require.NoError(t, s.DeleteChannel(ctx, "#osu"))
	rows, err = s.Channels(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAllUsersIncludesSeeded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateUser(ctx, "u", "u", "hash", "XX", model.PrivPlayer, false)
	require.NoError(t, err)

	users, err := s.AllUsers(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(users), 3) // bot + reserved + new user
}
