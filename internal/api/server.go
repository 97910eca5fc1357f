package api

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.io/infrasutra/chainmail/internal/app"
	"github.io/infrasutra/chainmail/internal/auth"
	"github.io/infrasutra/chainmail/internal/config"
	"github.io/infrasutra/chainmail/internal/kvstore"
	"github.io/infrasutra/chainmail/internal/logger"
	"github.io/infrasutra/chainmail/internal/sse"
	"github.io/infrasutra/chainmail/internal/store"
	webassets "github.io/infrasutra/chainmail/web"
)

// TransactionLog lists journaled transactions; store.Store implements it.
type TransactionLog interface {
	ListTransactions(ctx context.Context, account string, limit int) ([]store.Transaction, error)
}

type Server struct {
	cfg       config.Config
	base      string
	connector app.Connector
	journal   TransactionLog
	auth      *auth.Manager
	hub       *sse.Hub
	logger    *slog.Logger
	sessions  *kvstore.KVStore[string, *app.Controller]
	templates *template.Template
	handler   http.Handler
}

// NewServer builds the HTTP front end. journal may be nil.
func NewServer(cfg config.Config, connector app.Connector, journal TransactionLog, authManager *auth.Manager, hub *sse.Hub, l *slog.Logger) (*Server, error) {
	templatesFS, err := webassets.Templates()
	if err != nil {
		return nil, fmt.Errorf("ui templates: %w", err)
	}
	staticFS, err := webassets.Static()
	if err != nil {
		return nil, fmt.Errorf("ui assets: %w", err)
	}
	tmpl, err := template.New("index.html").Funcs(templateFuncs).ParseFS(templatesFS, "index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	server := &Server{
		cfg:       cfg,
		base:      cfg.BasePath,
		connector: connector,
		journal:   journal,
		auth:      authManager,
		hub:       hub,
		logger:    l,
		sessions:  kvstore.New[string, *app.Controller](),
		templates: tmpl,
	}
	if server.base == "" {
		server.base = "/"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", server.handleIndex)
	mux.HandleFunc("POST /connect", server.handleConnect)
	mux.HandleFunc("POST /tab", server.handleTab)
	mux.HandleFunc("POST /compose", server.handleCompose)
	mux.HandleFunc("POST /emails/{id}/read", server.handleMarkRead)
	mux.HandleFunc("POST /emails/{id}/delete", server.handleDelete)
	mux.HandleFunc("POST /refresh", server.handleRefresh)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))
	mux.HandleFunc("GET /health", server.handleHealth)
	mux.HandleFunc("GET /ready", server.handleReady)

	mux.HandleFunc("GET /api/me", server.handleMe)
	mux.HandleFunc("POST /api/connect", server.handleAPIConnect)
	mux.HandleFunc("GET /api/emails", server.handleEmails)
	mux.HandleFunc("GET /api/emails/{id}", server.handleEmailDetails)
	mux.HandleFunc("DELETE /api/emails/{id}", server.handleAPIDelete)
	mux.HandleFunc("POST /api/emails/{id}/read", server.handleAPIMarkRead)
	mux.HandleFunc("POST /api/send", server.handleSend)
	mux.HandleFunc("GET /api/total", server.handleTotal)
	mux.HandleFunc("GET /api/transactions", server.handleTransactions)
	mux.HandleFunc("GET /api/stream", server.handleStream)

	server.handler = withRequestID(http.StripPrefix(strings.TrimSuffix(server.base, "/"), mux))
	return server, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.base != "/" && (r.URL.Path == "/" || r.URL.Path == strings.TrimSuffix(s.base, "/")) {
		http.Redirect(w, r, s.base, http.StatusFound)
		return
	}
	s.handler.ServeHTTP(w, r)
}

// ExpireSessions drops idle browser sessions every interval until ctx ends.
func (s *Server) ExpireSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Expire(s.auth.MaxAge()); n > 0 {
				s.logger.Debug("expired sessions", "count", n, "active", s.sessions.Len())
			}
		}
	}
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logger.WithAttrs(r.Context(), slog.String("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// session returns the caller's controller, starting a new session and
// setting its cookie when the request carries no valid one. The returned
// context carries the connected account for logging.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*app.Controller, context.Context) {
	now := time.Now()
	var id string
	if cookie, err := r.Cookie(s.auth.CookieName()); err == nil {
		id, _ = s.auth.Parse(cookie.Value, now)
	}
	if id == "" {
		id = auth.NewSessionID()
		token, err := s.auth.Issue(id, now)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "issue session", "error", err)
		} else {
			s.setSessionCookie(w, token, now)
		}
	}
	ctrl := s.sessions.GetOrCreate(id, func() *app.Controller {
		return app.NewController(s.logger)
	})

	ctx := r.Context()
	if account := ctrl.Snapshot().Account; account != "" {
		ctx = logger.WithAttrs(ctx, slog.String("account", account))
	}
	return ctrl, ctx
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, now time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.auth.CookieName(),
		Value:    value,
		Path:     s.base,
		MaxAge:   int(s.auth.MaxAge().Seconds()),
		Expires:  now.Add(s.auth.MaxAge()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.respondText(w, http.StatusOK, "ready")
}

func (s *Server) respondText(w http.ResponseWriter, status int, payload string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}
