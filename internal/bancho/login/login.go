// Package login implements the login pipeline: parsing the
// newline-delimited POST body, authenticating or registering the
// user, and building the burst of frames a freshly logged in client
// expects in reply.
package login

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/packet"
	"github.com/onecho/banchod/internal/bancho/relation"
	"github.com/onecho/banchod/internal/bancho/store"
	"github.com/onecho/banchod/pkg/encryption"
)

// InvalidPasswordToken is the sentinel "osu-token"/"cho-token" value a
// wrong-password reply carries instead of a real session token.
const InvalidPasswordToken = "invalid-password"

// Result is what the transport layer needs to finish the HTTP
// response: the token header value and the frame bytes to write.
type Result struct {
	Token    string
	Response []byte
}

// Service runs the login pipeline against one app.State.
type Service struct {
	state   *app.State
	crypt   *encryption.Encryptor
	geoip   *GeoIP
	limiter *RateLimiter
	lockout *Lockout
}

func NewService(state *app.State, crypt *encryption.Encryptor, geoip *GeoIP, limiter *RateLimiter, lockout *Lockout) *Service {
	return &Service{state: state, crypt: crypt, geoip: geoip, limiter: limiter, lockout: lockout}
}

// Authenticate runs the full login pipeline against body, a
// newline-delimited
// "username\npassword_md5\nversion|utc_offset|_|client_hashes|pm_private"
// POST body, and the request's remote IP.
func (s *Service) Authenticate(ctx context.Context, body []byte, remoteIP string) (*Result, error) {
	if !s.limiter.Allow(remoteIP) {
		return s.reject("Too many login attempts. Try again shortly.")
	}

	req, err := parseLoginBody(body)
	if err != nil {
		return s.reject("Malformed login request.")
	}

	usernameSafe := normalizeUsername(req.username)

	row, err := s.state.Store.UserByUsernameSafe(ctx, usernameSafe)
	isNewUser := false
	switch err {
	case store.ErrNotFound:
		isNewUser = true
		geo := s.geoip.Lookup(remoteIP)
		row, err = s.registerUser(ctx, req.username, usernameSafe, req.passwordMD5, geo, req.pmPrivate)
		if err != nil {
			return nil, fmt.Errorf("login: register: %w", err)
		}
	case nil:
		// existing row, fall through to password check
	default:
		return nil, fmt.Errorf("login: lookup user: %w", err)
	}

	if !isNewUser {
		if !s.lockout.Allowed(usernameSafe) {
			return s.reject("Account locked due to repeated failed logins. Try again later.")
		}
		ok, verr := s.crypt.Verify(req.passwordMD5, row.PasswordHash)
		if verr != nil || !ok {
			s.lockout.RecordFailure(usernameSafe)
			return s.reject(fmt.Sprintf("%s: Invalid password.", s.state.Bot.Username))
		}
		s.lockout.RecordSuccess(usernameSafe)

		if req.pmPrivate != row.PmPrivate {
			if err := s.state.Store.UpdatePmPrivate(ctx, row.ID, req.pmPrivate); err != nil {
				return nil, fmt.Errorf("login: update pm_private: %w", err)
			}
			row.PmPrivate = req.pmPrivate
		}
	}

	sess := model.NewSession(row.ID, req.username, usernameSafe, newToken())
	sess.Privileges = row.Privileges
	sess.SilenceEnd = row.SilenceEnd
	sess.PmPrivate = row.PmPrivate
	sess.OsuVersion = req.version
	sess.UTCOffset = req.utcOffset

	stats, err := s.state.Store.StatsFor(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("login: load stats: %w", err)
	}
	sess.Stats = stats

	friends, blocks, err := relation.Load(ctx, s.state.Store, row.ID, model.BotUserID)
	if err != nil {
		return nil, fmt.Errorf("login: load relations: %w", err)
	}
	sess.Friends, sess.Blocks = friends, blocks

	if isNewUser {
		for _, m := range model.AllModes {
			s.state.Boards.For(m).Upsert(row.ID, 0)
		}
	}
	for mode, st := range stats {
		st.Rank = s.state.Boards.For(mode).Rank(row.ID)
	}

	if existing, ok := s.state.Registry.ByUserID(row.ID); ok {
		s.state.Registry.Unregister(existing)
	}
	if err := s.state.Registry.Register(sess); err != nil {
		return nil, fmt.Errorf("login: register session: %w", err)
	}

	response := s.buildWelcome(sess)

	if err := s.state.Store.UpdateLatestActivity(ctx, row.ID); err != nil {
		return nil, fmt.Errorf("login: update activity: %w", err)
	}

	return &Result{Token: sess.Token, Response: response}, nil
}

// reject builds the two-packet invalid-password response.
func (s *Service) reject(message string) (*Result, error) {
	w := packet.NewWriter().I32(-1)
	resp := w.Finish(packet.SRVLoginReply)
	resp = append(resp, packet.NewWriter().String(message).Finish(packet.SRVNotification)...)
	return &Result{Token: InvalidPasswordToken, Response: resp}, nil
}

func (s *Service) registerUser(ctx context.Context, username, usernameSafe, passwordMD5 string, geo model.Geo, pmPrivate bool) (*store.UserRow, error) {
	hash, err := s.crypt.Hash(passwordMD5)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	privileges := model.PrivPlayer | model.PrivSupporter

	id, err := s.state.Store.CreateUser(ctx, username, usernameSafe, hash, geo.CountryAcronym, privileges, pmPrivate)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.state.Store.InitStats(ctx, id); err != nil {
		return nil, fmt.Errorf("init stats: %w", err)
	}

	return &store.UserRow{
		ID:           id,
		Username:     username,
		UsernameSafe: usernameSafe,
		PasswordHash: hash,
		Privileges:   privileges,
		Country:      geo.CountryAcronym,
		PmPrivate:    pmPrivate,
	}, nil
}

// buildWelcome assembles the full post-login frame burst in the fixed
// order the client expects: login reply, protocol version, channel
// joins, silence/privileges, every online user's presence and stats,
// the new session's own presence and stats, friends list, and a
// closing notification quote.
func (s *Service) buildWelcome(sess *model.Session) []byte {
	var out []byte
	out = append(out, packet.NewWriter().I32(sess.UserID).Finish(packet.SRVLoginReply)...)
	out = append(out, packet.NewWriter().I32(19).Finish(packet.SRVProtocolVersion)...)

	exclude := map[int32]struct{}{sess.UserID: {}}
	for _, c := range s.state.Channels.AutoJoinable() {
		if !c.CanRead(sess.Privileges) {
			continue
		}
		s.state.Channels.Join(c, sess)
		info := c.EncodeInfo()
		out = append(out, info...)
		s.state.Registry.Broadcast(info, exclude)
	}
	out = append(out, packet.NewWriter().I32(0).Finish(packet.SRVChannelInfoEnd)...)
	out = append(out, packet.NewWriter().I32(int32(sess.SilenceEnd)).Finish(packet.SRVSilenceEnd)...)
	out = append(out, packet.NewWriter().U32(uint32(sess.Privileges)).Finish(packet.SRVPrivileges)...)

	for _, other := range s.state.Registry.All() {
		if other.UserID == sess.UserID || other.Restricted() {
			continue
		}
		out = append(out, model.EncodePresence(other)...)
		out = append(out, model.EncodeStats(other)...)
	}
	out = append(out, model.EncodePresence(sess)...)
	out = append(out, model.EncodeStats(sess)...)

	out = append(out, packet.NewWriter().IntList(friendIDs(sess)).Finish(packet.SRVFriendsList)...)
	out = append(out, packet.NewWriter().String(randomQuote()).Finish(packet.SRVNotification)...)

	if !sess.Restricted() {
		broadcast := append(model.EncodePresence(sess), model.EncodeStats(sess)...)
		s.state.Registry.Broadcast(broadcast, exclude)
	}

	return out
}

func friendIDs(s *model.Session) []int32 {
	out := make([]int32, 0, len(s.Friends))
	for uid := range s.Friends {
		out = append(out, uid)
	}
	return out
}

func newToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// loginRequest is the parsed three-line login POST body.
type loginRequest struct {
	username    string
	passwordMD5 string
	version     string
	utcOffset   int8
	pmPrivate   bool
}

func parseLoginBody(body []byte) (*loginRequest, error) {
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("login: expected 3 lines, got %d", len(lines))
	}

	fields := strings.Split(lines[2], "|")
	if len(fields) < 5 {
		return nil, fmt.Errorf("login: malformed client info line")
	}

	offset, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("login: malformed utc offset: %w", err)
	}

	return &loginRequest{
		username:    lines[0],
		passwordMD5: lines[1],
		version:     fields[0],
		utcOffset:   int8(offset),
		pmPrivate:   fields[4] == "1",
	}, nil
}

func normalizeUsername(username string) string {
	return strings.ReplaceAll(strings.ToLower(username), " ", "_")
}
