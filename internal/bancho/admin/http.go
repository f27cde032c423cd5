package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/model"
	"github.com/onecho/banchod/internal/bancho/packet"
)

// HTTPServer exposes the operator-facing silence/notice/inspection
// actions the Bancho wire protocol itself has no room for, gated by a
// bearer JWT validated against TokenIssuer.
type HTTPServer struct {
	addr   string
	state  *app.State
	tokens *TokenIssuer
	server *http.Server
}

func NewHTTPServer(host string, port int, state *app.State, tokens *TokenIssuer) *HTTPServer {
	h := &HTTPServer{addr: fmt.Sprintf("%s:%d", host, port), state: state, tokens: tokens}

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/silence", h.auth(h.handleSilence))
	mux.HandleFunc("/admin/notice", h.auth(h.handleNotice))
	mux.HandleFunc("/admin/sessions", h.auth(h.handleSessions))
	mux.HandleFunc("/admin/channels", h.auth(h.handleChannels))
	mux.HandleFunc("/admin/leaderboard/", h.auth(h.handleLeaderboard))

	h.server = &http.Server{Addr: h.addr, Handler: mux}
	return h
}

func (h *HTTPServer) Start(ctx context.Context) error {
	h.state.Logger.Info("admin HTTP server starting", "address", h.addr)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.state.Logger.Error("admin HTTP server error", "error", err)
		}
	}()
	return nil
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	h.state.Logger.Info("admin HTTP server stopping")
	return h.server.Shutdown(ctx)
}

// auth strips and validates the "Bearer <jwt>" Authorization header
// before delegating to next.
func (h *HTTPServer) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(raw, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		admin, err := h.tokens.Validate(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		h.state.Logger.Info("admin action", "admin", admin, "path", r.URL.Path)
		next(w, r)
	}
}

type silenceRequest struct {
	UserID   int32 `json:"user_id"`
	Duration int64 `json:"duration_seconds"`
	Reason   string
}

func (h *HTTPServer) handleSilence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req silenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	silenceEnd := time.Now().Add(time.Duration(req.Duration) * time.Second).Unix()
	if err := h.state.Store.UpdateSilence(r.Context(), req.UserID, silenceEnd); err != nil {
		http.Error(w, "persist silence failed", http.StatusInternalServerError)
		return
	}
	if sess, ok := h.state.Registry.ByUserID(req.UserID); ok {
		sess.SilenceEnd = silenceEnd
		sess.Enqueue(packet.NewWriter().I32(int32(silenceEnd)).Finish(packet.SRVSilenceEnd))
		sess.Enqueue(packet.NewWriter().String("Silenced by a moderator.").Finish(packet.SRVNotification))
	}
	w.WriteHeader(http.StatusNoContent)
}

type noticeRequest struct {
	Message string `json:"message"`
}

func (h *HTTPServer) handleNotice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req noticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	frame := packet.NewWriter().String(req.Message).Finish(packet.SRVNotification)
	h.state.Registry.Broadcast(frame, nil)
	w.WriteHeader(http.StatusNoContent)
}

type sessionView struct {
	UserID     int32  `json:"user_id"`
	Username   string `json:"username"`
	Privileges uint32 `json:"privileges"`
	Restricted bool   `json:"restricted"`
	SilenceEnd int64  `json:"silence_end"`
}

func (h *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.state.Registry.All()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			UserID:     s.UserID,
			Username:   s.Username,
			Privileges: uint32(s.Privileges),
			Restricted: s.Restricted(),
			SilenceEnd: s.SilenceEnd,
		})
	}
	writeJSON(w, views)
}

type channelView struct {
	Name    string `json:"name"`
	Topic   string `json:"topic"`
	Members int    `json:"members"`
}

func (h *HTTPServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.state.Channels.All()
	views := make([]channelView, 0, len(channels))
	for _, c := range channels {
		views = append(views, channelView{Name: c.WireName(), Topic: c.Topic, Members: len(c.Members())})
	}
	writeJSON(w, views)
}

func (h *HTTPServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	modeParam := strings.TrimPrefix(r.URL.Path, "/admin/leaderboard/")
	mode, err := parseMode(modeParam)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.state.Boards.For(mode).Top(50))
}

func parseMode(s string) (model.Mode, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= len(model.AllModes) {
		return 0, fmt.Errorf("admin: unknown mode %q", s)
	}
	return model.Mode(n), nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
