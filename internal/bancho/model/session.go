package model

import (
	"sync"
	"time"
)

// BotUserID is reserved for the built-in chat bot; it is an implicit
// friend of every human session and its outbound queue is a no-op.
const BotUserID = 1

// Geo is the geolocation attached to a session at login time.
type Geo struct {
	CountryAcronym string
	CountryCode    int32
	Lat            float32
	Lon            float32
}

// Session is one authenticated user's live connection state. It is
// safe for concurrent use: the outbound queue may be appended to from
// any goroutine handling another session's request, while the owning
// request drains it at the end of its own POST.
type Session struct {
	mu sync.Mutex

	UserID       int32
	Username     string
	UsernameSafe string
	Token        string

	OsuVersion string
	UTCOffset  int8
	PmPrivate  bool
	Privileges Privilege

	Geo Geo

	SilenceEnd int64
	LoginTime  time.Time
	LastActive time.Time

	Status Status
	Stats  map[Mode]*Stats

	Friends map[int32]struct{}
	Blocks  map[int32]struct{}

	Channels map[string]struct{}

	// WatchingHost is the user id of the session being spectated, or 0.
	WatchingHost int32
	// Watchers is the set of user ids spectating this session when it
	// is itself a watch-party host.
	Watchers map[int32]struct{}

	InLobby bool
	IsBot   bool

	outbound []byte
}

// NewSession constructs a session with empty relation/channel/stats sets.
func NewSession(userID int32, username, usernameSafe, token string) *Session {
	return &Session{
		UserID:       userID,
		Username:     username,
		UsernameSafe: usernameSafe,
		Token:        token,
		Stats:        NewStatsSet(),
		Friends:      make(map[int32]struct{}),
		Blocks:       make(map[int32]struct{}),
		Channels:     make(map[string]struct{}),
		Watchers:     make(map[int32]struct{}),
		LoginTime:    time.Now(),
		LastActive:   time.Now(),
	}
}

// NewBotSession constructs the singleton bot session.
func NewBotSession() *Session {
	s := NewSession(BotUserID, "onecho!", "onecho!", "")
	s.IsBot = true
	s.Privileges = PrivPlayer | PrivDeveloper
	return s
}

// Silenced reports whether the session is currently silenced.
func (s *Session) Silenced(now time.Time) bool {
	return now.Unix() < s.SilenceEnd
}

// Restricted reports whether the session is invisible to other users.
func (s *Session) Restricted() bool {
	return s.Privileges.Restricted()
}

// Enqueue appends raw frame bytes to the outbound buffer. The bot
// session overrides delivery as a no-op since it is never polled.
func (s *Session) Enqueue(frame []byte) {
	if s.IsBot {
		return
	}
	s.mu.Lock()
	s.outbound = append(s.outbound, frame...)
	s.mu.Unlock()
}

// Drain returns and clears the pending outbound bytes.
func (s *Session) Drain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outbound) == 0 {
		return nil
	}
	out := s.outbound
	s.outbound = nil
	return out
}

// IsFriendOf reports whether uid is in this session's friends set.
func (s *Session) IsFriendOf(uid int32) bool {
	_, ok := s.Friends[uid]
	return ok
}

// HasBlocked reports whether uid is in this session's blocks set.
func (s *Session) HasBlocked(uid int32) bool {
	_, ok := s.Blocks[uid]
	return ok
}
