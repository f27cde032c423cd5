// Package relation implements the directed friend/block relation set
// and its persistence through the store collaborator.
package relation

import (
	"context"
	"time"
)

// Kind distinguishes a friend record from a block record.
type Kind string

const (
	KindFriend Kind = "friend"
	KindBlock  Kind = "block"
)

// Record is one persisted relation row.
type Record struct {
	UserID   int32
	OtherID  int32
	Kind     Kind
	Since    time.Time
}

// Store persists relation rows; implemented by internal/bancho/store.
type Store interface {
	UpsertRelation(ctx context.Context, r Record) error
	DeleteRelation(ctx context.Context, userID, otherID int32, kind Kind) error
	RelationsFor(ctx context.Context, userID int32) ([]Record, error)
}

// Load fetches userID's friends and blocks from store, returning them
// as id sets ready to attach to a freshly logged-in session. The bot
// is always present in friends regardless of stored rows.
func Load(ctx context.Context, store Store, userID, botUserID int32) (friends, blocks map[int32]struct{}, err error) {
	friends = map[int32]struct{}{botUserID: {}}
	blocks = map[int32]struct{}{}

	records, err := store.RelationsFor(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range records {
		switch r.Kind {
		case KindFriend:
			friends[r.OtherID] = struct{}{}
		case KindBlock:
			blocks[r.OtherID] = struct{}{}
		}
	}
	return friends, blocks, nil
}

// AddFriend persists (self, uid, FRIEND), removing any existing block
// first. The bot is immune to relation changes and callers must
// reject uid == botUserID before calling this.
func AddFriend(ctx context.Context, store Store, self, uid int32, now time.Time) error {
	if err := store.DeleteRelation(ctx, self, uid, KindBlock); err != nil {
		return err
	}
	return store.UpsertRelation(ctx, Record{UserID: self, OtherID: uid, Kind: KindFriend, Since: now})
}

// RemoveFriend deletes the (self, uid, FRIEND) record.
func RemoveFriend(ctx context.Context, store Store, self, uid int32) error {
	return store.DeleteRelation(ctx, self, uid, KindFriend)
}

// AddBlock persists (self, uid, BLOCK).
func AddBlock(ctx context.Context, store Store, self, uid int32, now time.Time) error {
	return store.UpsertRelation(ctx, Record{UserID: self, OtherID: uid, Kind: KindBlock, Since: now})
}

// RemoveBlock deletes the (self, uid, BLOCK) record.
func RemoveBlock(ctx context.Context, store Store, self, uid int32) error {
	return store.DeleteRelation(ctx, self, uid, KindBlock)
}
