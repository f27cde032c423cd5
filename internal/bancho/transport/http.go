// Package transport implements the Bancho HTTP surface: the POST
// login/session router, the GET landing page, and the avatar
// endpoint, using a ServeMux-plus-handler-methods shape.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/onecho/banchod/internal/bancho/app"
	"github.com/onecho/banchod/internal/bancho/dispatch"
	"github.com/onecho/banchod/internal/bancho/login"
	"github.com/onecho/banchod/internal/bancho/packet"
)

// Server is the Bancho HTTP listener.
type Server struct {
	config *ServerConfig
	state  *app.State
	login  *login.Service
	server *http.Server
	logger *slog.Logger
}

type ServerConfig struct {
	Host string
	Port int
}

func NewServer(cfg *ServerConfig, state *app.State, loginSvc *login.Service, logger *slog.Logger) *Server {
	s := &Server{config: cfg, state: state, login: loginSvc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/users/avatar/", s.handleAvatar)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("transport: listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("bancho HTTP server starting", "address", s.server.Addr)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("bancho HTTP server error", "error", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("bancho HTTP server stopping")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	defer s.recoverPanic(w)

	if r.Method != http.MethodPost || r.Header.Get("User-Agent") != "osu!" {
		s.handleLandingPage(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	token := r.Header.Get("osu-token")
	if token == "" {
		s.handleLogin(w, r, body)
		return
	}
	s.handleSession(w, r, token, body)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, body []byte) {
	ip := clientIP(r)
	result, err := s.login.Authenticate(r.Context(), body, ip)
	if err != nil {
		s.logger.Error("login pipeline failed", "error", err, "ip", ip)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("cho-token", result.Token)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Response)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, token string, body []byte) {
	sess, ok := s.state.Registry.ByToken(token)
	if !ok {
		restart := packet.NewWriter().String("Server has restarted!").Finish(packet.SRVNotification)
		restart = append(restart, packet.NewWriter().Finish(packet.SRVRestart)...)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(restart)
		return
	}

	frames, err := packet.SplitFrames(body)
	if err != nil {
		s.logger.Warn("truncated packet stream", "error", err, "user_id", sess.UserID)
	}
	for _, f := range frames {
		dispatch.Dispatch(r.Context(), s.state, sess, f)
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sess.Drain())
}

func (s *Server) handleLandingPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<html><head><title>%s</title></head><body><h1>Welcome to %s</h1></body></html>",
		s.state.Config.Server.MainDomain, s.state.Config.Server.MainDomain)
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	// Avatar storage is out of scope; an empty 204 response keeps the
	// endpoint present for clients that probe it during login.
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recoverPanic(w http.ResponseWriter) {
	if rec := recover(); rec != nil {
		s.logger.Error("handler panic", "panic", rec)
		http.Error(w, fmt.Sprintf("internal error: %v", rec), http.StatusInternalServerError)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
