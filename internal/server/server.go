package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/draft"
	"github.com/jonathan/shortlist/internal/server/middleware"
	"github.com/jonathan/shortlist/internal/server/ratelimit"
	"github.com/jonathan/shortlist/internal/types"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Store       Store
	Pipeline    Submitter
	Drafts      *draft.Cache
	Users       *UserService
	JWT         *JWTService
	Webhook     http.Handler
	RateLimiter *ratelimit.Limiter
	Import      csvimport.Options
	// Close runs on shutdown after the HTTP server stops.
	Close func()
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	store       Store
	pipeline    Submitter
	drafts      *draft.Cache
	users       *UserService
	jwtService  *JWTService
	authHandler *AuthHandler
	webhook     http.Handler
	rateLimiter *ratelimit.Limiter
	importOpts  csvimport.Options
	validator   *validator.Validate
	now         func() time.Time
	close       func()
}

// New creates a server listening on port.
func New(port int, deps Deps) *Server {
	s := &Server{
		store:       deps.Store,
		pipeline:    deps.Pipeline,
		drafts:      deps.Drafts,
		users:       deps.Users,
		jwtService:  deps.JWT,
		authHandler: NewAuthHandler(deps.Users, deps.JWT),
		webhook:     deps.Webhook,
		rateLimiter: deps.RateLimiter,
		importOpts:  deps.Import,
		validator:   validator.New(),
		now:         time.Now,
		close:       deps.Close,
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(&ratelimit.Config{Enabled: false})
	}
	if s.importOpts.MaxRows == 0 {
		s.importOpts = csvimport.DefaultOptions()
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // scraping and scoring a full batch
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authed := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	anyRole := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(s.users)(h))
	}
	client := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(s.users, types.RoleClient, types.RoleAdmin)(h))
	}
	sourcer := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(s.users, types.RoleSourcer, types.RoleAdmin)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(s.users, types.RoleAdmin)(h))
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/tiers", s.handleListTiers)
	if s.webhook != nil {
		mux.Handle("POST /v1/webhooks/stripe", s.webhook)
	}

	// Auth and account
	mux.HandleFunc("POST /v1/auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", s.authHandler.Login)
	mux.Handle("PUT /v1/auth/password", anyRole(s.authHandler.UpdatePassword))
	mux.Handle("GET /v1/users/me", anyRole(s.handleMe))
	mux.Handle("GET /v1/users/me/usage", anyRole(s.handleUsage))

	// Jobs
	mux.Handle("POST /v1/jobs", client(s.handleCreateJob))
	mux.Handle("GET /v1/jobs", anyRole(s.handleListJobs))
	mux.Handle("GET /v1/jobs/{id}", anyRole(s.handleGetJob))
	mux.Handle("POST /v1/jobs/{id}/claim", sourcer(s.handleClaimJob))
	mux.Handle("GET /v1/jobs/{id}/candidates", anyRole(s.handleListCandidates))

	// Submissions
	mux.Handle("POST /v1/jobs/{id}/submissions", sourcer(s.handleSubmit))
	mux.Handle("POST /v1/jobs/{id}/submissions/upload", sourcer(s.handleSubmitUpload))
	mux.Handle("POST /v1/jobs/{id}/submissions/stream", sourcer(s.handleSubmitStream))
	mux.Handle("GET /v1/jobs/{id}/draft", sourcer(s.handleGetDraft))
	mux.Handle("DELETE /v1/jobs/{id}/draft", sourcer(s.handleClearDraft))
	mux.Handle("DELETE /v1/jobs/{id}/draft/{temp_id}", sourcer(s.handleRemoveDraftCandidate))
	mux.Handle("POST /v1/jobs/{id}/complete", sourcer(s.handleCompleteSubmission))

	// Admin
	mux.Handle("GET /v1/admin/users", admin(s.handleAdminListUsers))
	mux.Handle("POST /v1/admin/users/{id}/promote", admin(s.handleAdminPromote))
	mux.Handle("POST /v1/admin/users/{id}/demote", admin(s.handleAdminDemote))
	mux.Handle("PUT /v1/admin/jobs/{id}/assign", admin(s.handleAdminAssignJob))
	mux.Handle("POST /v1/admin/jobs/{id}/complete", admin(s.handleAdminCompleteJob))
	mux.Handle("DELETE /v1/admin/jobs/{id}", admin(s.handleAdminDeleteJob))
	mux.Handle("DELETE /v1/admin/candidates/{id}", admin(s.handleAdminDeleteCandidate))
	mux.Handle("GET /v1/admin/leaderboard", admin(s.handleAdminLeaderboard))
	mux.Handle("GET /v1/admin/jobs/export.xlsx", admin(s.handleAdminExportJobs))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdownDeps()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.shutdownDeps()
	log.Println("Server stopped")
	return nil
}

func (s *Server) shutdownDeps() {
	s.rateLimiter.Stop()
	if s.close != nil {
		s.close()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientIP(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %d in %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the logging wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := s.store.ListTiers(r.Context())
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"tiers": tiers})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFrom maps err to a status. Internal errors are logged and hidden.
func (s *Server) errorFrom(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[server] %v", err)
		s.errorResponse(w, status, "internal server error")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ErrValidation{Message: "invalid request body"}
	}
	if err := s.validator.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// clientIP uses RemoteAddr; forwarded headers are not trusted.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":   "rate_limit_exceeded",
		"message": "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}
	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Reset=%s", info.Limit, info.ResetTime.Format(time.RFC3339))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
