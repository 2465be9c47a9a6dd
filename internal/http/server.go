package http

import (
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/gorilla/sessions"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mangorocketofficial/tech-blog/internal/blog"
	"github.com/mangorocketofficial/tech-blog/internal/storage"
)

// Options configures the HTTP server wiring.
type Options struct {
	Blog        *blog.Service
	Uploader    *storage.Uploader
	Database    *gorm.DB
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	Auth        AuthSettings
	SiteURL     string
	UploadDir   string
	RateLimiter RateLimiterSettings
}

// AuthSettings configures administrator authentication.
type AuthSettings struct {
	Email         string
	Password      string
	SecretKey     string
	SessionSecret string
	CookieSecure  bool
	// OpenAccess grants admin rights to every request. Only meant for local
	// development without any credentials configured.
	OpenAccess bool
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma and html templates.
type Server struct {
	api          huma.API
	mux          *stdhttp.ServeMux
	blog         *blog.Service
	uploader     *storage.Uploader
	logger       *logrus.Logger
	sentry       *sentry.Hub
	db           *gorm.DB
	sessions     *sessions.CookieStore
	auth         AuthSettings
	siteURL      string
	uploadDir    string
	rateLimiter  *RateLimiter
	loginLimiter *RateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Blog == nil {
		return nil, eris.New("blog service is required")
	}
	if opts.Database == nil {
		return nil, eris.New("database is required")
	}
	if opts.SiteURL == "" {
		return nil, eris.New("site url is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	store, err := newSessionStore(opts.Auth.SessionSecret, opts.Auth.CookieSecure)
	if err != nil {
		return nil, err
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("Tech Blog", "1.0.0")

	api := humago.New(mux, config)

	srv := &Server{
		api:          api,
		mux:          mux,
		blog:         opts.Blog,
		uploader:     opts.Uploader,
		logger:       opts.Logger,
		sentry:       opts.SentryHub,
		db:           opts.Database,
		sessions:     store,
		auth:         opts.Auth,
		siteURL:      opts.SiteURL,
		uploadDir:    opts.UploadDir,
		rateLimiter:  NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
		loginLimiter: NewRateLimiter(loginAttempts, loginRefillPerSecond, time.Hour),
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.rateLimiter.Close()
	s.loginLimiter.Close()
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.adminMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
		s.notFoundMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /favicon.ico", faviconHandler)
	s.mux.HandleFunc("HEAD /favicon.ico", faviconHandler)
	s.mux.Handle("GET /static/", staticHandler())
	if s.uploadDir != "" {
		s.mux.Handle("GET /uploads/", s.wrapRaw(uploadsHandler(s.uploadDir)))
	}

	s.registerAPIRoutes()
	s.registerRawAPIRoutes()
	s.registerPageRoutes()
	s.registerFeedRoutes()
	s.registerAdminRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
