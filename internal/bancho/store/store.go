// Package store implements persistence for users, per-mode stats,
// relationships, and channels on top of pkg/database's dual-mode SQL
// connection, using explicit column-list queries throughout.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/relation"
	"github.com/onecho/banchod/pkg/database"
)

// ErrNotFound is returned when a query-by-id/name finds no row.
var ErrNotFound = errors.New("store: not found")

// UserRow is the persisted half of a session: everything that
// survives logout.
type UserRow struct {
	ID           int32
	Username     string
	UsernameSafe string
	PasswordHash string
	Privileges   model.Privilege
	Country      string
	SilenceEnd   int64
	PmPrivate    bool
	CreatedAt    time.Time
}

// Store is the persistence collaborator the core consumes: upsert,
// query-by-id, query-by-predicate, and delete across the four tables.
type Store struct {
	conn *database.Connection
}

func New(conn *database.Connection) *Store {
	return &Store{conn: conn}
}

// Init creates the schema if it doesn't already exist and seeds the
// bot user row.
func (s *Store) Init(ctx context.Context) error {
	if err := database.CreateTables(s.conn); err != nil {
		return fmt.Errorf("store: create tables: %w", err)
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, username, username_safe, password_hash, privileges, country)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		model.BotUserID, "onecho!", "onecho!", "", uint32(model.PrivPlayer|model.PrivDeveloper), "XX")
	if err != nil {
		return fmt.Errorf("store: seed bot user: %w", err)
	}

	// user_id 2 is reserved so the first real registration lands on 3,
	// matching the "new_user_id > 2" wire scenario.
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, username, username_safe, password_hash, privileges, country)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		2, "reserved", "reserved", "", 0, "XX")
	if err != nil {
		return fmt.Errorf("store: seed reserved user: %w", err)
	}
	return nil
}

func (s *Store) UserByUsernameSafe(ctx context.Context, usernameSafe string) (*UserRow, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, username, username_safe, password_hash, privileges, country, silence_end, pm_private, created_at
		 FROM users WHERE username_safe = ?`, usernameSafe)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id int32) (*UserRow, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, username, username_safe, password_hash, privileges, country, silence_end, pm_private, created_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*UserRow, error) {
	var u UserRow
	var privileges uint32
	err := row.Scan(&u.ID, &u.Username, &u.UsernameSafe, &u.PasswordHash, &privileges, &u.Country, &u.SilenceEnd, &u.PmPrivate, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	u.Privileges = model.Privilege(privileges)
	return &u, nil
}

// AllUsers loads every user row, used to seed the in-memory
// leaderboards at startup.
func (s *Store) AllUsers(ctx context.Context) ([]UserRow, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, username, username_safe, password_hash, privileges, country, silence_end, pm_private, created_at FROM users`)
	if err != nil {
		return nil, fmt.Errorf("store: all users: %w", err)
	}
	defer rows.Close()

	var out []UserRow
	for rows.Next() {
		var u UserRow
		var privileges uint32
		if err := rows.Scan(&u.ID, &u.Username, &u.UsernameSafe, &u.PasswordHash, &privileges, &u.Country, &u.SilenceEnd, &u.PmPrivate, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		u.Privileges = model.Privilege(privileges)
		out = append(out, u)
	}
	return out, rows.Err()
}

// CreateUser inserts a new user row and returns its assigned id.
func (s *Store) CreateUser(ctx context.Context, username, usernameSafe, passwordHash, country string, privileges model.Privilege, pmPrivate bool) (int32, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (username, username_safe, password_hash, privileges, country, pm_private) VALUES (?, ?, ?, ?, ?, ?)`,
		username, usernameSafe, passwordHash, uint32(privileges), country, pmPrivate)
	if err != nil {
		return 0, fmt.Errorf("store: create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create user: %w", err)
	}
	return int32(id), nil
}

// UpdatePmPrivate persists the pm_private flag the client sends on
// every login.
func (s *Store) UpdatePmPrivate(ctx context.Context, userID int32, pmPrivate bool) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET pm_private = ? WHERE id = ?`, pmPrivate, userID)
	return err
}

// UpdateLatestActivity stamps the user's latest_activity to now.
func (s *Store) UpdateLatestActivity(ctx context.Context, userID int32) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET latest_activity = ? WHERE id = ?`, time.Now(), userID)
	return err
}

// UpdateSilence persists a new silence_end for userID.
func (s *Store) UpdateSilence(ctx context.Context, userID int32, silenceEnd int64) error {
	_, err := s.conn.ExecContext(ctx, `UPDATE users SET silence_end = ? WHERE id = ?`, silenceEnd, userID)
	return err
}

// StatsRow is one (user, mode) stats row.
type StatsRow struct {
	UserID      int32
	Mode        model.Mode
	RankedScore uint64
	TotalScore  uint64
	PP          int32
	Accuracy    float64
	Playcount   uint32
	Playtime    uint32
	MaxCombo    uint32
	TotalHits   uint32
}

// StatsFor loads every mode's stats row for userID.
func (s *Store) StatsFor(ctx context.Context, userID int32) (map[model.Mode]*model.Stats, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT mode, ranked_score, total_score, pp, accuracy, playcount, playtime, max_combo, total_hits
		 FROM user_stats WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: stats for %d: %w", userID, err)
	}
	defer rows.Close()

	out := model.NewStatsSet()
	for rows.Next() {
		var mode uint8
		st := &model.Stats{}
		if err := rows.Scan(&mode, &st.RankedScore, &st.TotalScore, &st.PP, &st.Accuracy, &st.Playcount, &st.Playtime, &st.MaxCombo, &st.TotalHits); err != nil {
			return nil, fmt.Errorf("store: scan stats: %w", err)
		}
		out[model.Mode(mode)] = st
	}
	return out, rows.Err()
}

// InitStats inserts a zeroed stats row for every mode, used when a new
// user registers.
func (s *Store) InitStats(ctx context.Context, userID int32) error {
	for _, m := range model.AllModes {
		_, err := s.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_stats (user_id, mode) VALUES (?, ?)`, userID, uint8(m))
		if err != nil {
			return fmt.Errorf("store: init stats mode %d: %w", m, err)
		}
	}
	return nil
}

// UpsertStats writes st back for (userID, mode).
func (s *Store) UpsertStats(ctx context.Context, userID int32, mode model.Mode, st *model.Stats) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE user_stats SET ranked_score=?, total_score=?, pp=?, accuracy=?, playcount=?, playtime=?, max_combo=?, total_hits=?
		 WHERE user_id=? AND mode=?`,
		st.RankedScore, st.TotalScore, st.PP, st.Accuracy, st.Playcount, st.Playtime, st.MaxCombo, st.TotalHits, userID, uint8(mode))
	return err
}

// --- relation.Store implementation ---

func (s *Store) UpsertRelation(ctx context.Context, r relation.Record) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO user_relationships (user_id, friend_id, relation_type, since) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, friend_id, relation_type) DO UPDATE SET since = excluded.since`,
		r.UserID, r.OtherID, string(r.Kind), r.Since)
	return err
}

func (s *Store) DeleteRelation(ctx context.Context, userID, otherID int32, kind relation.Kind) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM user_relationships WHERE user_id = ? AND friend_id = ? AND relation_type = ?`,
		userID, otherID, string(kind))
	return err
}

func (s *Store) RelationsFor(ctx context.Context, userID int32) ([]relation.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT friend_id, relation_type, since FROM user_relationships WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: relations for %d: %w", userID, err)
	}
	defer rows.Close()

	var out []relation.Record
	for rows.Next() {
		var r relation.Record
		var kind string
		if err := rows.Scan(&r.OtherID, &kind, &r.Since); err != nil {
			return nil, fmt.Errorf("store: scan relation: %w", err)
		}
		r.UserID = userID
		r.Kind = relation.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ChannelRow is one persisted channel ACL row.
type ChannelRow struct {
	Name       string
	Topic      string
	WritePrivs model.Privilege
	ReadPrivs  model.Privilege
	AutoJoin   bool
}

// Channels loads every persisted channel row.
func (s *Store) Channels(ctx context.Context) ([]ChannelRow, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT name, topic, write_privs, read_privs, auto_join FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("store: channels: %w", err)
	}
	defer rows.Close()

	var out []ChannelRow
	for rows.Next() {
		var c ChannelRow
		var write, read uint32
		if err := rows.Scan(&c.Name, &c.Topic, &write, &read, &c.AutoJoin); err != nil {
			return nil, fmt.Errorf("store: scan channel: %w", err)
		}
		c.WritePrivs, c.ReadPrivs = model.Privilege(write), model.Privilege(read)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertChannel persists a channel ACL row.
func (s *Store) UpsertChannel(ctx context.Context, c ChannelRow) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO channels (name, topic, write_privs, read_privs, auto_join) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET topic=excluded.topic, write_privs=excluded.write_privs, read_privs=excluded.read_privs, auto_join=excluded.auto_join`,
		c.Name, c.Topic, uint32(c.WritePrivs), uint32(c.ReadPrivs), c.AutoJoin)
	return err
}

// DeleteChannel removes a persisted channel row.
func (s *Store) DeleteChannel(ctx context.Context, name string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, name)
	return err
}
