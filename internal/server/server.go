// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/catalog-api/internal/catalog"
	"github.com/vyrodovalexey/catalog-api/internal/config"
	"github.com/vyrodovalexey/catalog-api/internal/handler"
	"github.com/vyrodovalexey/catalog-api/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	httpServer  *http.Server
	probeServer *http.Server
	router      *mux.Router
	probeRouter *mux.Router
	config      *config.Config
	logger      *zap.Logger
	services    map[string]*catalog.Service
	hubs        []*handler.EventHub
}

// New creates a new Server serving every configured domain from the data
// directory.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		router:      mux.NewRouter(),
		probeRouter: mux.NewRouter(),
		config:      cfg,
		logger:      logger,
		services:    make(map[string]*catalog.Service, len(cfg.Domains)),
	}

	s.router.NotFoundHandler = handler.NotFound(logger)
	s.router.MethodNotAllowedHandler = handler.MethodNotAllowed(logger)

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	s.setupProbeRoutes()
	s.setupHTTPServer()

	return s, nil
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		middleware.RequestIDHeader,
	}

	// First applied is outermost.
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(s.config.CORSOrigins, allowedMethods, allowedHeaders)))
}

// setupRoutes configures the catalog, event and static routes.
func (s *Server) setupRoutes() error {
	var writeLimit func(http.Handler) http.Handler
	if s.config.ReviewRateLimit > 0 {
		limiter := middleware.NewRateLimiter(s.config.ReviewRateLimit, s.config.ReviewRateBurst, s.logger)
		writeLimit = limiter.Middleware
	}

	for _, name := range s.config.Domains {
		domain, err := catalog.LookupDomain(name)
		if err != nil {
			return fmt.Errorf("configuring routes: %w", err)
		}

		var opts []catalog.Option
		if s.config.EventsEnabled {
			hub := handler.NewEventHub(domain.Name, s.logger)
			hub.RegisterRoutes(s.router)
			s.hubs = append(s.hubs, hub)
			opts = append(opts, catalog.WithEventPublisher(hub))
		}

		store := catalog.NewFileStore(domain.DocumentPath(s.config.DataDir))
		service := catalog.NewService(domain, store, s.logger, opts...)
		s.services[domain.Name] = service

		handler.NewRESTHandler(service, s.logger).RegisterRoutes(s.router, writeLimit)

		s.logger.Info("catalog domain registered",
			zap.String("domain", domain.Name),
			zap.String("document", store.Path()),
		)
	}

	handler.NewProbeHandler(s.readinessCheckers(), s.logger).RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	if s.config.StaticDir != "" {
		s.setupStaticRoutes()
	}

	// Router middleware only runs for matched routes, so OPTIONS requests
	// need a route of their own to reach CORS. A method matcher would turn
	// every unknown path into a 405.
	s.router.MatcherFunc(isOptions).HandlerFunc(allowMethods)

	return nil
}

func isOptions(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions
}

// allowMethods answers OPTIONS requests that are not CORS preflights.
func allowMethods(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", "GET, POST, DELETE, OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

// setupStaticRoutes serves the front-end from the static directory.
func (s *Server) setupStaticRoutes() {
	dir := s.config.StaticDir
	index := filepath.Join(dir, "index.html")

	s.router.PathPrefix("/static/").
		Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))).
		Methods(http.MethodGet)
	s.router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, index)
	}).Methods(http.MethodGet)
}

// setupProbeRoutes configures the probe router. It is always built so the
// probe endpoints can be exercised without a listener.
func (s *Server) setupProbeRoutes() {
	s.probeRouter.NotFoundHandler = handler.NotFound(s.logger)

	handler.NewProbeHandler(s.readinessCheckers(), s.logger).RegisterRoutes(s.probeRouter)

	if s.config.MetricsEnabled {
		s.probeRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) readinessCheckers() map[string]handler.ReadinessChecker {
	checkers := make(map[string]handler.ReadinessChecker, len(s.services))
	for name, service := range s.services {
		checkers[name] = service
	}
	return checkers
}

// setupHTTPServer configures the API and probe HTTP servers.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	if s.config.ProbePort == 0 {
		return
	}

	s.probeServer = &http.Server{
		Addr:              s.config.ProbeAddress(),
		Handler:           s.probeRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Run serves until ctx is cancelled or a listener fails, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Strings("domains", s.config.Domains),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("events_enabled", s.config.EventsEnabled),
	)
	g.Go(func() error {
		return listen(s.httpServer, "server")
	})

	if s.probeServer != nil {
		s.logger.Info("starting probe server", zap.String("address", s.config.ProbeAddress()))
		g.Go(func() error {
			return listen(s.probeServer, "probe server")
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		//nolint:contextcheck // shutdown must outlive the cancelled run context
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func listen(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listen and serve: %w", name, err)
	}
	return nil
}

// Shutdown gracefully shuts down the servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Event streams are hijacked connections that http.Server.Shutdown does not track.
	for _, hub := range s.hubs {
		hub.CloseAllConnections()
	}

	var errs []error
	if s.probeServer != nil {
		if err := s.probeServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("probe server shutdown: %w", err))
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ProbeRouter returns the probe router for testing purposes.
func (s *Server) ProbeRouter() *mux.Router {
	return s.probeRouter
}

// EventClients returns the number of connected event stream clients.
func (s *Server) EventClients() int {
	n := 0
	for _, hub := range s.hubs {
		n += hub.ClientCount()
	}
	return n
}

// Service returns the catalog service of the named domain.
func (s *Server) Service(name string) (*catalog.Service, bool) {
	service, ok := s.services[name]
	return service, ok
}
