// Package api exposes the HTTP surface: routing, the authentication
// middleware, the login/logout and user handlers, and operational endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/example/hoaxify/internal/apperr"
	"github.com/example/hoaxify/internal/store"
	"github.com/example/hoaxify/internal/token"
	"github.com/example/hoaxify/internal/user"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const apiPrefix = "/api/1.0"

var errRateLimited = apperr.RateLimited()

// Tokens is the part of the token service the HTTP layer uses.
type Tokens interface {
	CreateToken(ctx context.Context, userID int64) (string, error)
	Verify(ctx context.Context, raw string) (*token.Identity, error)
	Revoke(ctx context.Context, raw string) error
}

// Users is the part of the user service the HTTP layer uses.
type Users interface {
	Register(ctx context.Context, in user.RegisterInput) error
	Activate(ctx context.Context, activationToken string) error
	Authenticate(ctx context.Context, email, password string) (*store.User, error)
	List(ctx context.Context, excludeID int64, page, size int) (*user.Page, error)
	Get(ctx context.Context, id int64) (*user.Profile, error)
	Update(ctx context.Context, callerID, id int64, in user.UpdateInput) (*user.Profile, error)
	Delete(ctx context.Context, callerID, id int64) error
}

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// LoginRatePerMinute caps login attempts per client IP; 0 disables.
	LoginRatePerMinute int
	// Registry receives the metrics and backs /metrics. A fresh registry is
	// used when nil.
	Registry *prometheus.Registry
	Now      func() time.Time
}

type Server struct {
	users   Users
	tokens  Tokens
	store   Pinger
	metrics *Metrics
	limiter *RateLimiter
	gather  prometheus.Gatherer
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewServer(users Users, tokens Tokens, st Pinger, opts Options, log logrus.FieldLogger) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		users:   users,
		tokens:  tokens,
		store:   st,
		metrics: NewMetrics(reg),
		limiter: NewRateLimiter(opts.LoginRatePerMinute),
		gather:  reg,
		now:     now,
		log:     log.WithField("component", "api"),
	}
}

// Metrics exposes the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Router builds the HTTP handler. Identity resolution wraps the whole router
// so that every request bearing a token refreshes it, matched route or not.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(s.metrics.Middleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix(apiPrefix).Subrouter()

	v1.Handle("/auth", s.RateLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	v1.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	v1.HandleFunc("/users", s.handleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	v1.HandleFunc("/users/token/{token}", s.handleActivate).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id:[0-9]+}", s.handleGetUser).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id:[0-9]+}", s.handleUpdateUser).Methods(http.MethodPut)
	v1.HandleFunc("/users/{id:[0-9]+}", s.handleDeleteUser).Methods(http.MethodDelete)

	return SecurityHeaders(RequestID(s.Logging(s.Authenticate(r))))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.log, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.requestLog(r).WithError(err).Warn("store not ready")
		writeJSON(w, s.log, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, s.log, http.StatusOK, map[string]bool{"ready": true})
}
