package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	apicomplaints "complaintdesk/api/complaints"
	"complaintdesk/config"
	"complaintdesk/core/auth"
	"complaintdesk/core/complaints"
	"complaintdesk/core/directory"
	"complaintdesk/core/metrics"
	"complaintdesk/core/notify"
	"complaintdesk/core/rbac"
	"complaintdesk/core/routing"
	"complaintdesk/core/store"
	"complaintdesk/core/utils"

	"github.com/go-chi/chi/v5"
)

// BackgroundWorker is started with the server and stopped on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Directory  *directory.Directory
	Resolver   *routing.Resolver
	Complaints *complaints.Service
	Outbox     store.OutboxStore
	Audits     store.AuditStore
	Auth       *auth.Provider
	Policy     *rbac.Policy
	Metrics    *metrics.Metrics
	Workers    []BackgroundWorker
}

type Server struct {
	cfg        *config.AppConfig
	logger     *utils.Logger
	people     *directory.Directory
	resolver   *routing.Resolver
	complaints *complaints.Service
	outbox     store.OutboxStore
	audits     store.AuditStore
	auth       *auth.Provider
	policy     *rbac.Policy
	metrics    *metrics.Metrics
	workers    []BackgroundWorker

	loginLimiter *requestLimiter
	httpServer   *http.Server
	mu           sync.Mutex
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:          cfg,
		logger:       logger,
		people:       deps.Directory,
		resolver:     deps.Resolver,
		complaints:   deps.Complaints,
		outbox:       deps.Outbox,
		audits:       deps.Audits,
		auth:         deps.Auth,
		policy:       deps.Policy,
		metrics:      deps.Metrics,
		workers:      deps.Workers,
		loginLimiter: newLimiter(loginLimiterCapacity, loginLimiterRefill),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler())
	}

	r.Route("/api", func(api chi.Router) {
		api.MethodFunc(http.MethodPost, "/auth/login", s.rateLimitMiddleware(s.login))
		api.MethodFunc(http.MethodGet, "/me", s.withSession(s.me))
		api.MethodFunc(http.MethodGet, "/people/{id}", s.withSession(s.requirePermission(rbac.PermPeopleRead)(s.getPerson)))
		api.MethodFunc(http.MethodGet, "/people/{id}/chain", s.withSession(s.requirePermission(rbac.PermPeopleRead)(s.chain)))
		api.MethodFunc(http.MethodGet, "/notifications", s.withSession(s.inbox))
		api.MethodFunc(http.MethodGet, "/audit", s.withSession(s.requirePermission(rbac.PermAuditRead)(s.listAudit)))
		api.Mount("/", apicomplaints.RegisterRoutes(apicomplaints.RouteDeps{
			WithSession:       s.withSession,
			RequirePermission: s.requirePermission,
			Handler:           apicomplaints.NewHandler(s.complaints, s.logger),
		}))
	})
	return r
}

// metricsHandler refreshes the per-status gauge before every scrape.
func (s *Server) metricsHandler() http.Handler {
	h := s.metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.complaints != nil {
			if items, err := s.complaints.List(r.Context()); err == nil {
				s.metrics.SetSummary(complaints.Summarize(items))
			} else {
				s.logger.Errorf("metrics summary: %v", err)
			}
		}
		h.ServeHTTP(w, r)
	})
}

// Run serves until ctx is cancelled, then drains requests and stops workers.
func (s *Server) Run(ctx context.Context) error {
	for _, w := range s.workers {
		w.StartWithContext(ctx)
	}
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("http shutdown: %v", err)
	}
	for i := len(s.workers) - 1; i >= 0; i-- {
		if err := s.workers[i].StopWithContext(shutdownCtx); err != nil {
			s.logger.Errorf("stop worker: %v", err)
		}
	}
	return serveErr
}

var _ BackgroundWorker = (*notify.Dispatcher)(nil)
