// Package ttyrec records a watch party's relayed spectator frames to
// disk in the classic ttyrec container format (timestamp header +
// raw chunk, one entry per frame), so a watched session can be played
// back later the same way a terminal ttyrec is.
package ttyrec

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/onecho/banchod/pkg/config"
)

// Recorder creates and appends to per-session ttyrec files under the
// configured directory.
type Recorder struct {
	cfg *config.TTYRecConfig
}

// Session is one open recording; StopRecording closes its file.
type Session struct {
	ID       string
	Username string
	GameID   string

	mu   sync.Mutex
	file *os.File
}

// NewRecorder creates a new TTY recorder rooted at cfg.Directory. The
// directory is created on first use, not here, so a disabled recorder
// never touches the filesystem.
func NewRecorder(cfg *config.TTYRecConfig) (*Recorder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("TTY recording configuration is required")
	}
	return &Recorder{cfg: cfg}, nil
}

// StartRecording opens sessionID's ttyrec file, named by host username
// and session id (the watch party's spectator channel name), truncating
// any prior recording with the same name.
func (r *Recorder) StartRecording(sessionID, username, gameID string) (*Session, error) {
	if !r.cfg.Enabled {
		return &Session{ID: sessionID, Username: username, GameID: gameID}, nil
	}

	if err := os.MkdirAll(r.cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("ttyrec: create directory: %w", err)
	}

	path := filepath.Join(r.cfg.Directory, fmt.Sprintf("%s-%s.ttyrec", username, sessionID))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ttyrec: create %s: %w", path, err)
	}

	return &Session{ID: sessionID, Username: username, GameID: gameID, file: f}, nil
}

// WriteFrame appends one spectator frame as a ttyrec entry: a 12-byte
// little-endian (sec, usec, len) header followed by the raw frame
// bytes. A Session with no open file (recording disabled) is a no-op.
func (s *Session) WriteFrame(frame []byte) error {
	if s.file == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header[0:4], uint32(now.Unix()))
	binary.LittleEndian.PutUint32(header[4:8], uint32(now.Nanosecond()/1000))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(frame)))

	if _, err := s.file.Write(header); err != nil {
		return fmt.Errorf("ttyrec: write header: %w", err)
	}
	if _, err := s.file.Write(frame); err != nil {
		return fmt.Errorf("ttyrec: write frame: %w", err)
	}
	return nil
}

// StopRecording closes sessionID's file.
func (r *Recorder) StopRecording(s *Session) error {
	if s == nil || s.file == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
