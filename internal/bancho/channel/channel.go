// Package channel implements the chat channel table: membership, ACL
// checks, and server-frame fan-out on join/part.
package channel

import (
	"strings"
	"sync"

	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/packet"
)

// Channel is one chat room. Users is keyed by user id for O(1)
// membership tests; it is the registry-side half of the
// user<->channel membership invariant (the session side is
// Session.Channels).
type Channel struct {
	mu sync.Mutex

	Name       string
	Topic      string
	ReadPrivs  model.Privilege
	WritePrivs model.Privilege
	AutoJoin   bool
	Temporary  bool
	Users      map[int32]struct{}
}

func newChannel(name, topic string, read, write model.Privilege, autoJoin, temporary bool) *Channel {
	return &Channel{
		Name:       name,
		Topic:      topic,
		ReadPrivs:  read,
		WritePrivs: write,
		AutoJoin:   autoJoin,
		Temporary:  temporary,
		Users:      make(map[int32]struct{}),
	}
}

func (c *Channel) userCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Users)
}

// Members returns a snapshot of the channel's current member user ids.
func (c *Channel) Members() []int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int32, 0, len(c.Users))
	for uid := range c.Users {
		out = append(out, uid)
	}
	return out
}

// CanRead reports whether privs intersects the channel's read bits.
func (c *Channel) CanRead(privs model.Privilege) bool {
	return privs&c.ReadPrivs != 0
}

// CanWrite reports whether privs intersects the channel's write bits.
func (c *Channel) CanWrite(privs model.Privilege) bool {
	return privs&c.WritePrivs != 0
}

// WireName rewrites temporary spectator/multiplayer channel names to
// the fixed names the client expects on the wire.
func (c *Channel) WireName() string {
	switch {
	case strings.HasPrefix(c.Name, "#spec_"):
		return "#spectator"
	case strings.HasPrefix(c.Name, "#multi_"):
		return "#multiplayer"
	default:
		return c.Name
	}
}

// EncodeInfo builds the SRV_CHANNEL_INFO frame advertising the
// channel's wire name, topic, and current member count.
func (c *Channel) EncodeInfo() []byte {
	c.mu.Lock()
	count := int16(len(c.Users))
	c.mu.Unlock()

	w := packet.NewWriter()
	w.String(c.WireName()).String(c.Topic).I16(count)
	return w.Finish(packet.SRVChannelInfo)
}

// Table is the process-wide set of channels, keyed by canonical name.
type Table struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

func NewTable() *Table {
	return &Table{channels: make(map[string]*Channel)}
}

// Ensure returns the named channel, creating a permanent one with the
// given ACL/topic if it doesn't exist yet. Used for statically
// configured channels such as #osu and #lobby.
func (t *Table) Ensure(name, topic string, read, write model.Privilege, autoJoin bool) *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.channels[name]; ok {
		return c
	}
	c := newChannel(name, topic, read, write, autoJoin, false)
	t.channels[name] = c
	return c
}

// EnsureTemporary returns or creates a temporary (watch-party) channel.
func (t *Table) EnsureTemporary(name, topic string, read, write model.Privilege) *Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.channels[name]; ok {
		return c
	}
	c := newChannel(name, topic, read, write, false, true)
	t.channels[name] = c
	return c
}

// All returns a snapshot slice of every channel currently in the table.
func (t *Table) All() []*Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Channel, 0, len(t.channels))
	for _, c := range t.channels {
		out = append(out, c)
	}
	return out
}

func (t *Table) Get(name string) (*Channel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.channels[name]
	return c, ok
}

// AutoJoinable returns every channel with auto_join set.
func (t *Table) AutoJoinable() []*Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Channel, 0, len(t.channels))
	for _, c := range t.channels {
		if c.AutoJoin {
			out = append(out, c)
		}
	}
	return out
}

// Join adds s to c's membership and records the channel on the
// session, preserving the channel<->session membership invariant.
func (t *Table) Join(c *Channel, s *model.Session) {
	c.mu.Lock()
	c.Users[s.UserID] = struct{}{}
	c.mu.Unlock()
	s.Channels[c.Name] = struct{}{}
}

// Part removes s from c's membership. If c is temporary and becomes
// empty it is deleted from the table.
func (t *Table) Part(c *Channel, s *model.Session) {
	c.mu.Lock()
	delete(c.Users, s.UserID)
	empty := c.Temporary && len(c.Users) == 0
	c.mu.Unlock()
	delete(s.Channels, c.Name)

	if empty {
		t.mu.Lock()
		delete(t.channels, c.Name)
		t.mu.Unlock()
	}
}

// Remove deletes a channel outright regardless of membership, used
// when a watch party host leaves their spectator room.
func (t *Table) Remove(name string) {
	t.mu.Lock()
	delete(t.channels, name)
	t.mu.Unlock()
}
