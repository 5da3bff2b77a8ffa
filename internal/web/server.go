// Package web provides the HTTP server and JSON API handlers.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"gradebook/internal/auth"
	"gradebook/internal/config"
	"gradebook/internal/reconcile"
	"gradebook/internal/store"
	"gradebook/internal/web/middleware"
)

// Server is the HTTP server for the gradebook API.
type Server struct {
	store    *store.Store
	pipeline *reconcile.Pipeline
	issuer   *auth.TokenIssuer
	validate *validator.Validate
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires the API over the given store, reconciliation pipeline and
// token issuer.
func NewServer(cfg *config.Config, st *store.Store, pipeline *reconcile.Pipeline, issuer *auth.TokenIssuer) *Server {
	s := &Server{
		store:    st,
		pipeline: pipeline,
		issuer:   issuer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes. Each role's routes live under a
// separate subtree behind the matching role gate.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Authenticator(s.issuer))
			r.Use(middleware.RequireRole(store.RoleAdmin))

			r.Post("/users", s.handleCreateUser)
			r.Get("/classes", s.handleAdminListClasses)
			r.Post("/classes", s.handleCreateClass)
			r.Post("/subjects", s.handleCreateSubject)
			r.Post("/exams", s.handleCreateExam)
			r.Post("/exams/{examID}/publish", s.handleAdminPublishExam)
			r.Post("/assignments/teacher", s.handleAssignTeacher)
			r.Post("/assignments/student", s.handleAssignStudent)
		})

		r.Route("/teacher", func(r chi.Router) {
			r.Use(middleware.Authenticator(s.issuer))
			r.Use(middleware.RequireRole(store.RoleTeacher))

			r.Get("/classes", s.handleTeacherClasses)
			r.Get("/classes/{classID}/exams", s.handleTeacherClassExams)
			r.Post("/classes/{classID}/exams/{examID}/marks", s.handleUploadMarks)
			r.Post("/exams/{examID}/publish", s.handleTeacherPublishExam)
		})

		r.Route("/student", func(r chi.Router) {
			r.Use(middleware.Authenticator(s.issuer))
			r.Use(middleware.RequireRole(store.RoleStudent))

			r.Get("/profile", s.handleStudentProfile)
			r.Get("/exams", s.handleStudentExams)
			r.Get("/exams/{examID}/results", s.handleStudentExamResults)
		})
	})
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "DB_UNREACHABLE", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON-only API: nothing here should ever render as a page
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1,
			lastReset: time.Now(),
		}
		return true
	}

	// Reset tokens if window has passed
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP. It runs
// after TrustedRealIP, so RemoteAddr is already the real client address.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
