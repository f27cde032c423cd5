// Package spectate implements watch-party lifecycle: attaching a
// watcher to a host, fanning out frames, and tearing the party down
// when the last watcher leaves.
package spectate

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/onecho/banchod/internal/bancho/channel"
	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/packet"
	"github.com/onecho/banchod/pkg/ttyrec"
)

// Manager coordinates watch parties across the registry's sessions.
// Membership itself lives on the sessions (Session.WatchingHost,
// Session.Watchers) per the "no cross-owning pointers" design note;
// Manager only sequences the transitions and channel join/part calls.
// When a recorder is configured, each watch party's relayed frames are
// mirrored to a ttyrec file for later playback.
type Manager struct {
	mu        sync.Mutex
	channels  *channel.Table
	logger    *slog.Logger
	recorder  *ttyrec.Recorder
	recording map[int32]*ttyrec.Session // host user id -> open recording
}

func NewManager(channels *channel.Table, logger *slog.Logger) *Manager {
	return &Manager{channels: channels, logger: logger, recording: make(map[int32]*ttyrec.Session)}
}

// WithRecorder attaches a ttyrec recorder; watch parties started after
// this call are mirrored to disk.
func (m *Manager) WithRecorder(r *ttyrec.Recorder) *Manager {
	m.recorder = r
	return m
}

func specChannelName(hostID int32) string {
	return "#spec_" + strconv.Itoa(int(hostID))
}

// Start attaches watcher as a spectator of host. If the bot is the
// target, the requester is notified and the call aborts.
func (m *Manager) Start(watcher, host *model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if host.IsBot {
		watcher.Enqueue(packet.NewWriter().String("You can't spectate the bot.").Finish(packet.SRVNotification))
		watcher.Enqueue(packet.NewWriter().I32(watcher.UserID).Finish(packet.SRVFellowSpectatorLeft))
		return
	}

	name := specChannelName(host.UserID)
	c := m.channels.EnsureTemporary(name, "Spectator chat", model.PrivPlayer, model.PrivPlayer)

	firstWatcher := len(host.Watchers) == 0
	host.Watchers[watcher.UserID] = struct{}{}
	watcher.WatchingHost = host.UserID

	if firstWatcher {
		m.channels.Join(c, host)
		if m.recorder != nil {
			sess, err := m.recorder.StartRecording(name, host.Username, name)
			if err != nil {
				m.logger.Error("start ttyrec recording failed", "user_id", host.UserID, "error", err)
			} else {
				m.recording[host.UserID] = sess
			}
		}
	}
	m.channels.Join(c, watcher)

	host.Enqueue(packet.NewWriter().I32(watcher.UserID).Finish(packet.SRVFellowSpectatorJoined))
	// Both frames are emitted to the host per the observed wire
	// behaviour; see the open question in the design notes.
	host.Enqueue(packet.NewWriter().I32(watcher.UserID).Finish(packet.SRVSpectatorJoined))
}

// Stop detaches watcher from whatever host it is spectating.
func (m *Manager) Stop(watcher *model.Session, registryLookup func(int32) (*model.Session, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hostID := watcher.WatchingHost
	if hostID == 0 {
		m.logger.Error("stop-spectating with no active watch party", "user_id", watcher.UserID)
		return
	}
	host, ok := registryLookup(hostID)
	if !ok {
		watcher.WatchingHost = 0
		return
	}

	delete(host.Watchers, watcher.UserID)
	watcher.WatchingHost = 0

	name := specChannelName(host.UserID)
	if c, ok := m.channels.Get(name); ok {
		m.channels.Part(c, watcher)
		if len(host.Watchers) == 0 {
			m.channels.Part(c, host)
			m.channels.Remove(name)
			if rec, ok := m.recording[host.UserID]; ok {
				if err := m.recorder.StopRecording(rec); err != nil {
					m.logger.Error("stop ttyrec recording failed", "user_id", host.UserID, "error", err)
				}
				delete(m.recording, host.UserID)
			}
		}
	}

	host.Enqueue(packet.NewWriter().I32(watcher.UserID).Finish(packet.SRVFellowSpectatorLeft))
}

// RelayFrames fans frame bytes (already wrapped as SRV_SPECTATE_FRAMES)
// out to every watcher of host. Only the host may call this; callers
// are responsible for checking sender == host.
func (m *Manager) RelayFrames(host *model.Session, frame []byte, registryLookup func(int32) (*model.Session, bool)) {
	m.mu.Lock()
	watchers := make([]int32, 0, len(host.Watchers))
	for uid := range host.Watchers {
		watchers = append(watchers, uid)
	}
	rec := m.recording[host.UserID]
	m.mu.Unlock()

	if rec != nil {
		if err := rec.WriteFrame(frame); err != nil {
			m.logger.Error("write ttyrec frame failed", "user_id", host.UserID, "error", err)
		}
	}

	for _, uid := range watchers {
		if w, ok := registryLookup(uid); ok {
			w.Enqueue(frame)
		}
	}
}

// CantSpectate fans SRV_SPECTATOR_CANT_SPECTATE(sender) out to every
// watcher of sender (sender is itself a watch-party host here).
func (m *Manager) CantSpectate(sender *model.Session, registryLookup func(int32) (*model.Session, bool)) {
	frame := packet.NewWriter().I32(sender.UserID).Finish(packet.SRVSpectatorCantSpectate)
	m.RelayFrames(sender, frame, registryLookup)
}
