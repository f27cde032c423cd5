// Package registry holds the process-wide token/user/name maps that
// bind a live Bancho session to its identity, mirroring the
// connection manager's map-of-trackers shape but storing live session
// pointers instead of stateless counters.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/onecho/banchod/internal/bancho/model"
)

// ErrDuplicateSession is returned by Register when user_id already has
// a live session; the caller must evict it first (logout semantics).
var ErrDuplicateSession = errors.New("registry: user already has a live session")

// ErrNameTaken is returned by Register when username_safe collides
// with a different user_id's live session.
var ErrNameTaken = errors.New("registry: username already registered to a different session")

// Registry is the process-wide session index. All mutating operations
// take the same lock; lookups share it for reads.
type Registry struct {
	mu       sync.RWMutex
	byToken  map[string]*model.Session
	byUserID map[int32]*model.Session
	byName   map[string]*model.Session
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		byToken:  make(map[string]*model.Session),
		byUserID: make(map[int32]*model.Session),
		byName:   make(map[string]*model.Session),
		logger:   logger,
	}
}

// Register atomically inserts s into all three maps.
func (r *Registry) Register(s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUserID[s.UserID]; ok {
		return ErrDuplicateSession
	}
	if existing, ok := r.byName[s.UsernameSafe]; ok && existing.UserID != s.UserID {
		return ErrNameTaken
	}

	r.byToken[s.Token] = s
	r.byUserID[s.UserID] = s
	r.byName[s.UsernameSafe] = s
	r.logger.Debug("session registered", "user_id", s.UserID, "username", s.Username)
	return nil
}

// Unregister removes s from all three maps.
func (r *Registry) Unregister(s *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byToken, s.Token)
	delete(r.byUserID, s.UserID)
	delete(r.byName, s.UsernameSafe)
	r.logger.Debug("session unregistered", "user_id", s.UserID, "username", s.Username)
}

func (r *Registry) ByToken(token string) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byToken[token]
	return s, ok
}

func (r *Registry) ByUserID(userID int32) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUserID[userID]
	return s, ok
}

func (r *Registry) ByName(usernameSafe string) (*model.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[usernameSafe]
	return s, ok
}

// All returns a snapshot slice of every live session.
func (r *Registry) All() []*model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Session, 0, len(r.byUserID))
	for _, s := range r.byUserID {
		out = append(out, s)
	}
	return out
}

// Broadcast appends frame to every registered non-restricted session's
// outbound queue, skipping any session whose user id is in exclude.
func (r *Registry) Broadcast(frame []byte, exclude map[int32]struct{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for uid, s := range r.byUserID {
		if _, skip := exclude[uid]; skip {
			continue
		}
		if s.Restricted() {
			continue
		}
		s.Enqueue(frame)
	}
}
