package http

import (
	"context"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"hearth/internal/cache"
	"hearth/internal/core"
	"hearth/internal/identity"
	"hearth/internal/middleware/ratelimit"
	"hearth/internal/middleware/security"
	"hearth/internal/middleware/trace"
	"hearth/internal/services"
	appweb "hearth/web"
)

// ProfileStore lists the members of a workspace for the profile switcher.
type ProfileStore interface {
	WorkspaceProfiles(ctx context.Context, workspaceID int64) ([]core.Profile, error)
}

// Options carries everything the server needs beyond its address.
type Options struct {
	Budget   *services.BudgetService
	Bills    *services.BillService
	Wishlist *services.WishlistService
	Sessions *identity.SessionProvider
	Profiles ProfileStore

	RecentLimit int
}

type Server struct {
	http.Server
	templates *template.Template

	budget   *services.BudgetService
	bills    *services.BillService
	wishlist *services.WishlistService
	sessions *identity.SessionProvider
	profiles ProfileStore

	recentLimit int

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	detector    *security.Detector

	// Month summaries are recomputed on every dashboard render otherwise;
	// entries are invalidated on transaction writes.
	summaryCache *cache.LRUCache[core.MonthTotals]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	mux := http.NewServeMux()

	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 20
	}

	detector := security.NewDetector()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: nil, // set below, after the middleware chain is built
		},
		budget:       opts.Budget,
		bills:        opts.Bills,
		wishlist:     opts.Wishlist,
		sessions:     opts.Sessions,
		profiles:     opts.Profiles,
		recentLimit:  opts.RecentLimit,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:       trace.NewMiddleware(detector.ExtractClientIP),
		detector:     detector,
		summaryCache: cache.NewLRUCache[core.MonthTotals](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/", s.requireIdentity(s.handleIndex))
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.HandleFunc("/budget", s.requireIdentity(s.handleBudgetPage))
	mux.HandleFunc("/budget/summary", s.requireIdentity(s.handleMonthSummary))
	mux.HandleFunc("/budget/transactions", s.requireIdentity(s.handleCreateTransaction))
	mux.HandleFunc("/budget/transactions/update", s.requireIdentity(s.handleUpdateTransaction))
	mux.HandleFunc("/budget/transactions/archive", s.requireIdentity(s.handleArchiveTransaction))
	mux.HandleFunc("/budget/categories", s.requireIdentity(s.handleCreateCategory))
	mux.HandleFunc("/budget/categories/rename", s.requireIdentity(s.handleRenameCategory))
	mux.HandleFunc("/budget/categories/archive", s.requireIdentity(s.handleArchiveCategory))

	mux.HandleFunc("/calendar", s.requireIdentity(s.handleCalendarPage))
	mux.HandleFunc("/calendar/bills", s.requireIdentity(s.handleCreateBill))
	mux.HandleFunc("/calendar/bills/pay", s.requireIdentity(s.handleMarkBillPaid))

	mux.HandleFunc("/wishlist", s.requireIdentity(s.handleWishlistPage))
	mux.HandleFunc("/wishlist/items", s.requireIdentity(s.handleAddWishlistItem))
	mux.HandleFunc("/wishlist/items/delete", s.requireIdentity(s.handleDeleteWishlistItem))
	mux.HandleFunc("/wishlist/reorder", s.requireIdentity(s.handleReorderWishlist))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, nil)

	var handler http.Handler = mux
	handler = headers.Middleware(handler)
	handler = s.postOnlyRateLimit(limited)(handler)
	handler = s.flagSuspicious(handler)
	handler = s.tracer.Middleware(handler)
	s.Server.Handler = handler

	return s
}

// flagSuspicious logs requests matching known probe patterns. Requests
// still pass through; the signal feeds operator triage, not blocking.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// postOnlyRateLimit applies the limiter to mutating requests only; page
// loads and partial refreshes stay unthrottled.
func (s *Server) postOnlyRateLimit(limited func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		throttled := limited(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodDelete {
				throttled.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes process counters as JSON for scraping.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.tracer.GetMetrics()
	detectionMetrics := s.detector.GetMetrics()
	limiterMetrics := s.rateLimiter.GetMetrics()

	payload := map[string]any{
		"requests_total":        traceMetrics.TotalRequests,
		"avg_response_time_us":  traceMetrics.AverageResponseTime,
		"suspicious_requests":   detectionMetrics.SuspiciousRequests,
		"invalid_ip_attempts":   detectionMetrics.InvalidIPAttempts,
		"rate_limited_clients":  limiterMetrics.ClientCount,
		"summary_cache_entries": s.summaryCache.Size(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "Metrics encoding failed", "error", err)
	}
}

// render executes a named template, degrading to a 500 when templates
// failed to parse at startup.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", name)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/budget", http.StatusSeeOther)
}
