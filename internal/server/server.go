package server

import (
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"github.com/dukerupert/sovaehr/internal/auth"
	"github.com/dukerupert/sovaehr/internal/authclient"
	"github.com/dukerupert/sovaehr/internal/guard"
	"github.com/dukerupert/sovaehr/internal/handler"
	"github.com/dukerupert/sovaehr/internal/middleware"
	"github.com/dukerupert/sovaehr/internal/notify"
	"github.com/dukerupert/sovaehr/internal/session"
	"github.com/dukerupert/sovaehr/internal/view"
	ws "github.com/dukerupert/sovaehr/internal/websocket"
)

// rateLimiterIdle is how long an idle per-IP limiter is kept.
const rateLimiterIdle = 10 * time.Minute

// legacyPaths maps the old static page names to their routes.
var legacyPaths = map[string]string{
	"/index.html":     "/",
	"/signin.html":    "/signin",
	"/signup.html":    "/signup",
	"/dashboard.html": "/dashboard",
}

type Server struct {
	hub         *ws.Hub
	sessions    *session.Provider
	guard       *guard.Guard
	toasts      *notify.Center
	marketingH  *handler.MarketingHandler
	authH       *handler.AuthHandler
	dashboardH  *handler.DashboardHandler
	notifyH     *handler.NotificationHandler
	rateLimiter *middleware.RateLimiter
	inFlight    *middleware.InFlightGuard
	static      fs.FS
	cfg         Config
	logger      *slog.Logger
}

// Deps are the components the routes call into.
type Deps struct {
	Templates map[string]*template.Template
	Sessions  *session.Provider
	Guard     *guard.Guard
	Auth      *authclient.Client
	Toasts    *notify.Center
	Hub       *ws.Hub
	Source    view.Source
	Views     *view.Renderer
}

type Config struct {
	Static         fs.FS
	Redirects      handler.Redirects
	SecureCookies  bool
	CSRFKey        []byte
	OriginPatterns []string
	RatePerSecond  float64
	RateBurst      int
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		hub:         deps.Hub,
		sessions:    deps.Sessions,
		guard:       deps.Guard,
		toasts:      deps.Toasts,
		marketingH:  handler.NewMarketingHandler(deps.Templates, deps.Toasts, deps.Sessions, deps.Source, deps.Views, logger.With("component", "marketing")),
		authH:       handler.NewAuthHandler(deps.Templates, deps.Toasts, deps.Sessions, deps.Auth, cfg.Redirects, logger.With("component", "auth")),
		dashboardH:  handler.NewDashboardHandler(deps.Templates, deps.Toasts, deps.Sessions, deps.Source, deps.Views, logger.With("component", "dashboard")),
		notifyH:     handler.NewNotificationHandler(deps.Toasts, logger.With("component", "notification")),
		rateLimiter: middleware.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst, rateLimiterIdle),
		inFlight:    middleware.NewInFlightGuard(),
		static:      cfg.Static,
		cfg:         cfg,
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Marketing
	mux.HandleFunc("GET /{$}", s.marketingH.LandingPage)
	mux.HandleFunc("POST /demo-request", s.rateLimitedHandler(s.marketingH.RequestDemo))
	mux.HandleFunc("GET /forgot-password", s.marketingH.ForgotPassword)

	// Auth forms
	mux.HandleFunc("GET /signin", s.authH.SignInPage)
	mux.HandleFunc("POST /signin", s.submitHandler(s.authH.SignIn))
	mux.HandleFunc("GET /signup", s.authH.SignUpPage)
	mux.HandleFunc("POST /signup", s.submitHandler(s.authH.SignUp))
	mux.HandleFunc("POST /signout", s.authH.SignOut)

	// Protected pages
	requireSession := middleware.RequireSession(s.sessions, s.guard)
	mux.Handle("GET /dashboard", requireSession(http.HandlerFunc(s.dashboardH.Dashboard)))

	// Live toasts
	mux.HandleFunc("POST /notifications/{id}/dismiss", s.notifyH.Dismiss)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, func(r *http.Request) string {
		return auth.ClientID(r.Context())
	}, s.cfg.OriginPatterns, s.logger.With("component", "websocket")))

	for legacy, canonical := range legacyPaths {
		mux.Handle("GET "+legacy, http.RedirectHandler(canonical, http.StatusMovedPermanently))
	}

	if s.static != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))
	}
	mux.HandleFunc("GET /health", s.healthHandler)

	var h http.Handler = mux
	if len(s.cfg.CSRFKey) > 0 {
		h = csrf.Protect(s.cfg.CSRFKey,
			csrf.Secure(s.cfg.SecureCookies),
			csrf.Path("/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
		)(h)
	}
	h = middleware.ClientID(s.cfg.SecureCookies)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"))(h)
	return middleware.RequestID(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("csrf check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
	http.Error(w, "Forbidden - invalid or missing form token", http.StatusForbidden)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// submitHandler rate-limits a form POST and refuses a second submission
// from the same browser while the first is in flight.
func (s *Server) submitHandler(h http.HandlerFunc) http.HandlerFunc {
	return s.rateLimitedHandler(middleware.InFlight(s.inFlight)(h).ServeHTTP)
}
