// Package dispatch implements the static packet-id -> handler table:
// restricted-user enforcement, unknown-id logging, and the per-packet
// mutation/fan-out logic for chat, spectate, presence, and
// friend/block requests.
package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/bot"
	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/packet"
	"github.com/onecho/banchod/internal/bancho/relation"
)

// Handler processes one decoded frame for sess, mutating state and
// enqueueing outbound frames as needed.
type Handler func(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader)

// table is the static packet id -> handler map, built once at
// package init since every handler is a pure function of its
// arguments.
var table = map[packet.ID]Handler{
	packet.OSUChangeAction:         handleChangeAction,
	packet.OSURequestStatusUpdate:  handleRequestStatusUpdate,
	packet.OSUHeartbeat:            handleHeartbeat,
	packet.OSUUserStatsRequest:     handleUserStatsRequest,
	packet.OSUSendPublicMessage:    handlePublicMessage,
	packet.OSUSendPrivateMessage:   handlePrivateMessage,
	packet.OSUChannelJoin:          handleChannelJoin,
	packet.OSUChannelPart:          handleChannelPart,
	packet.OSUJoinLobby:            handleJoinLobby,
	packet.OSUReceiveUpdates:       handleReceiveUpdates,
	packet.OSULogout:               handleLogout,
	packet.OSUStartSpectating:      handleStartSpectating,
	packet.OSUStopSpectating:       handleStopSpectating,
	packet.OSUSpectateFrames:       handleSpectateFrames,
	packet.OSUCantSpectate:         handleCantSpectate,
	packet.OSUFriendAdd:            handleFriendAdd,
	packet.OSUFriendRemove:         handleFriendRemove,
}

// Dispatch routes one decoded frame to its handler, enforcing the
// restricted-allowed whitelist and logging unknown ids at WARNING
// without aborting the rest of the stream.
func Dispatch(ctx context.Context, state *app.State, sess *model.Session, f packet.Frame) {
	handler, ok := table[f.ID]
	if !ok {
		state.Logger.Warn("unknown packet id", "id", f.ID, "user_id", sess.UserID)
		return
	}

	if sess.Restricted() && !packet.RestrictedAllowed(f.ID) {
		return
	}

	sess.LastActive = time.Now()
	if state.Metrics != nil {
		state.Metrics.Bancho.PacketsDispatched.WithLabelValues(packetNames[f.ID]).Inc()
	}
	handler(ctx, state, sess, packet.NewReader(f.Payload))
}

// packetNames labels dispatched-packet metrics; unlisted ids fall
// back to the zero value "".
var packetNames = map[packet.ID]string{
	packet.OSUChangeAction:        "change_action",
	packet.OSURequestStatusUpdate: "request_status_update",
	packet.OSUHeartbeat:           "heartbeat",
	packet.OSUUserStatsRequest:    "user_stats_request",
	packet.OSUSendPublicMessage:   "send_public_message",
	packet.OSUSendPrivateMessage:  "send_private_message",
	packet.OSUChannelJoin:         "channel_join",
	packet.OSUChannelPart:         "channel_part",
	packet.OSUJoinLobby:           "join_lobby",
	packet.OSUReceiveUpdates:      "receive_updates",
	packet.OSULogout:              "logout",
	packet.OSUStartSpectating:     "start_spectating",
	packet.OSUStopSpectating:      "stop_spectating",
	packet.OSUSpectateFrames:      "spectate_frames",
	packet.OSUCantSpectate:        "cant_spectate",
	packet.OSUFriendAdd:           "friend_add",
	packet.OSUFriendRemove:        "friend_remove",
}

func handleChangeAction(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	action, err := r.U8()
	if err != nil {
		return
	}
	actionText, err := r.String()
	if err != nil {
		return
	}
	beatmapMD5, err := r.String()
	if err != nil {
		return
	}
	mods, err := r.U32()
	if err != nil {
		return
	}
	mode, err := r.U8()
	if err != nil {
		return
	}
	beatmapID, err := r.I32()
	if err != nil {
		return
	}

	sess.Status = model.Status{
		Action:     model.Action(action),
		ActionText: actionText,
		BeatmapMD5: beatmapMD5,
		Mods:       mods,
		Mode:       model.Mode(mode),
		BeatmapID:  beatmapID,
	}

	if !sess.Restricted() {
		state.Registry.Broadcast(model.EncodeStats(sess), map[int32]struct{}{sess.UserID: {}})
	}
}

func handleRequestStatusUpdate(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	sess.Enqueue(model.EncodeStats(sess))
}

func handleHeartbeat(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	sess.Enqueue(packet.NewWriter().Finish(packet.SRVPong))
}

func handleUserStatsRequest(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	ids, err := r.IntList()
	if err != nil {
		return
	}
	for _, uid := range ids {
		other, ok := state.Registry.ByUserID(uid)
		if !ok || other.Restricted() {
			continue
		}
		sess.Enqueue(model.EncodePresence(other))
	}
}

func handleJoinLobby(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	sess.InLobby = true
}

func handleReceiveUpdates(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	// Consumed for protocol compliance; the server always streams full
	// presence/stats updates regardless of the requested filter level.
	_, _ = r.I32()
}

func handleChannelJoin(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	name, err := r.String()
	if err != nil {
		return
	}
	if name == "#lobby" && !sess.InLobby {
		return
	}

	c, ok := state.Channels.Get(name)
	if !ok || !c.CanRead(sess.Privileges) {
		return
	}

	state.Channels.Join(c, sess)
	sess.Enqueue(packet.NewWriter().String(c.WireName()).Finish(packet.SRVChannelJoinSuccess))
	state.Registry.Broadcast(c.EncodeInfo(), nil)
}

// ignoredChannels are parted as a no-op; the client sends PART for
// channels the server never modelled as real membership.
var ignoredChannels = map[string]bool{"#userlog": true}

func handleChannelPart(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	name, err := r.String()
	if err != nil {
		return
	}
	if ignoredChannels[name] {
		return
	}
	c, ok := state.Channels.Get(name)
	if !ok {
		return
	}
	state.Channels.Part(c, sess)
	if _, stillExists := state.Channels.Get(name); stillExists {
		state.Registry.Broadcast(c.EncodeInfo(), nil)
	}
}

func handleLogout(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	Logout(state, sess)
}

// Logout tears a session down: parts its channels, stops any watch,
// unregisters it and broadcasts its logout. The OSU_LOGOUT handler is
// its only caller; the transport layer does not call it.
func Logout(state *app.State, sess *model.Session) {
	for name := range sess.Channels {
		if c, ok := state.Channels.Get(name); ok {
			state.Channels.Part(c, sess)
		}
	}
	if sess.WatchingHost != 0 {
		state.Spectate.Stop(sess, state.Registry.ByUserID)
	}
	state.Registry.Unregister(sess)
	if !sess.Restricted() {
		state.Registry.Broadcast(packet.NewWriter().I32(sess.UserID).I32(0).Finish(packet.SRVUserLogout), nil)
	}
}

func handleStartSpectating(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	targetID, err := r.I32()
	if err != nil {
		return
	}
	host, ok := state.Registry.ByUserID(targetID)
	if !ok {
		return
	}
	state.Spectate.Start(sess, host)
}

func handleStopSpectating(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	state.Spectate.Stop(sess, state.Registry.ByUserID)
}

func handleSpectateFrames(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	if len(sess.Watchers) == 0 {
		state.Logger.Warn("spectate frames from non-host session", "user_id", sess.UserID)
		return
	}
	frame := packet.NewWriter().Bytes(r.ReadAll()).Finish(packet.SRVSpectateFrames)
	state.Spectate.RelayFrames(sess, frame, state.Registry.ByUserID)
}

func handleCantSpectate(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	state.Spectate.CantSpectate(sess, state.Registry.ByUserID)
}

func handleFriendAdd(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	uid, err := r.I32()
	if err != nil || uid == model.BotUserID || uid == sess.UserID {
		return
	}
	if sess.IsFriendOf(uid) {
		return
	}
	if err := relation.AddFriend(ctx, state.Store, sess.UserID, uid, time.Now()); err != nil {
		state.Logger.Error("add friend failed", "error", err)
		return
	}
	delete(sess.Blocks, uid)
	sess.Friends[uid] = struct{}{}
}

func handleFriendRemove(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	uid, err := r.I32()
	if err != nil || uid == model.BotUserID {
		return
	}
	if err := relation.RemoveFriend(ctx, state.Store, sess.UserID, uid); err != nil {
		state.Logger.Error("remove friend failed", "error", err)
		return
	}
	delete(sess.Friends, uid)
}

func handlePublicMessage(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	_, err := r.String() // sender, ignored: server trusts the session, not the claimed name
	if err != nil {
		return
	}
	body, err := r.String()
	if err != nil {
		return
	}
	target, err := r.String()
	if err != nil {
		return
	}
	if _, err := r.I32(); err != nil {
		return
	}

	if sess.Silenced(time.Now()) {
		return
	}
	body = truncateMessage(body)

	c, ok := state.Channels.Get(target)
	if !ok || !c.CanWrite(sess.Privileges) {
		return
	}

	if state.Metrics != nil {
		state.Metrics.Bancho.ChatMessagesTotal.WithLabelValues("public").Inc()
	}

	frame := packet.NewWriter().String(sess.Username).String(body).String(c.WireName()).I32(sess.UserID).Finish(packet.SRVSendMessage)
	for _, uid := range c.Members() {
		if uid == sess.UserID {
			continue
		}
		if member, ok := state.Registry.ByUserID(uid); ok {
			member.Enqueue(frame)
		}
	}

	if strings.HasPrefix(body, "!") {
		reply := bot.Handle(sess, body, lookupByUsernameSafe(state), rollDice)
		if reply.Visible {
			botFrame := packet.NewWriter().String(state.Bot.Username).String(reply.Text).String(c.WireName()).I32(model.BotUserID).Finish(packet.SRVSendMessage)
			for _, uid := range c.Members() {
				if member, ok := state.Registry.ByUserID(uid); ok {
					member.Enqueue(botFrame)
				}
			}
		} else {
			sess.Enqueue(packet.NewWriter().String(state.Bot.Username).String(reply.Text).String(c.WireName()).I32(model.BotUserID).Finish(packet.SRVSendMessage))
		}
	}
}

func handlePrivateMessage(ctx context.Context, state *app.State, sess *model.Session, r *packet.Reader) {
	if _, err := r.String(); err != nil { // claimed sender, ignored
		return
	}
	body, err := r.String()
	if err != nil {
		return
	}
	targetName, err := r.String()
	if err != nil {
		return
	}
	if _, err := r.I32(); err != nil {
		return
	}

	if sess.Silenced(time.Now()) {
		return
	}
	body = truncateMessage(body)

	if strings.ToLower(targetName) == state.Bot.UsernameSafe {
		reply := bot.Handle(sess, body, lookupByUsernameSafe(state), rollDice)
		sess.Enqueue(packet.NewWriter().String(state.Bot.Username).String(reply.Text).String(sess.UsernameSafe).I32(model.BotUserID).Finish(packet.SRVSendMessage))
		return
	}

	target, ok := lookupByUsernameSafe(state)(targetName)
	if !ok {
		return
	}
	if target.HasBlocked(sess.UserID) {
		sess.Enqueue(packet.NewWriter().String(targetName).Finish(packet.SRVUserDMBlocked))
		return
	}
	if target.PmPrivate && !target.IsFriendOf(sess.UserID) {
		sess.Enqueue(packet.NewWriter().String(targetName).Finish(packet.SRVUserDMBlocked))
		return
	}
	if target.Silenced(time.Now()) {
		sess.Enqueue(packet.NewWriter().String(targetName).Finish(packet.SRVTargetIsSilenced))
		return
	}

	if state.Metrics != nil {
		state.Metrics.Bancho.ChatMessagesTotal.WithLabelValues("private").Inc()
	}
	target.Enqueue(packet.NewWriter().String(sess.Username).String(body).String(target.UsernameSafe).I32(sess.UserID).Finish(packet.SRVSendMessage))
}

func truncateMessage(body string) string {
	const max = 2000
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}

func lookupByUsernameSafe(state *app.State) bot.Lookup {
	return func(usernameSafe string) (*model.Session, bool) {
		return state.Registry.ByName(usernameSafe)
	}
}

func rollDice(max int) int {
	if max <= 0 {
		return 0
	}
	return int(time.Now().UnixNano() % int64(max))
}
