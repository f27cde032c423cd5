package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onecho/banchod/internal/bancho/model"
)

func TestUpsertRanksByScoreDescending(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(1, 1000)
	idx.Upsert(2, 5000)
	idx.Upsert(3, 2500)

	assert.Equal(t, int32(1), idx.Rank(2))
	assert.Equal(t, int32(2), idx.Rank(3))
	assert.Equal(t, int32(3), idx.Rank(1))
}

func TestUpsertTieBreaksByInsertionOrder(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(1, 1000)
	idx.Upsert(2, 1000)

	assert.Equal(t, int32(1), idx.Rank(1))
	assert.Equal(t, int32(2), idx.Rank(2))
}

func TestUpsertUpdatesExistingScore(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(1, 1000)
	idx.Upsert(2, 2000)
	idx.Upsert(1, 5000)

	assert.Equal(t, int32(1), idx.Rank(1))
	assert.Equal(t, int32(2), idx.Rank(2))
}

func TestRankUnknownUserIsZero(t *testing.T) {
	idx := NewIndex()
	assert.Equal(t, int32(0), idx.Rank(99))
}

func TestRemove(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(1, 1000)
	idx.Upsert(2, 2000)

	idx.Remove(2)

	assert.Equal(t, int32(0), idx.Rank(2))
	assert.Equal(t, int32(1), idx.Rank(1))
}

func TestTopReturnsEntriesInRankOrder(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(1, 1000)
	idx.Upsert(2, 5000)
	idx.Upsert(3, 2500)

	top := idx.Top(50)
	require.Len(t, top, 3)
	assert.Equal(t, Entry{UserID: 2, Score: 5000, Rank: 1}, top[0])
	assert.Equal(t, Entry{UserID: 3, Score: 2500, Rank: 2}, top[1])
	assert.Equal(t, Entry{UserID: 1, Score: 1000, Rank: 3}, top[2])
}

func TestTopClampsToIndexSize(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(1, 1000)

	assert.Len(t, idx.Top(50), 1)
	assert.Len(t, idx.Top(0), 0)
}

func TestIndexesForEveryMode(t *testing.T) {
	ixs := NewIndexes()
	for _, m := range model.AllModes {
		assert.NotNil(t, ixs.For(m))
	}
	ixs.For(model.ModeOsu).Upsert(1, 100)
	assert.Equal(t, int32(0), ixs.For(model.ModeTaiko).Rank(1))
}
