// Package rest exposes a graph view over HTTP: the layout frame, pointer
// input, selection and the add and delete flows.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"graphmind/internal/application/services"
	"graphmind/internal/config"
	"graphmind/internal/infrastructure/observability"
)

// Router creates and configures the HTTP router.
type Router struct {
	service   *services.GraphViewService
	cfg       *config.Config
	collector *observability.Collector
	logger    *zap.Logger
}

// NewRouter creates a router. collector may be nil.
func NewRouter(
	service *services.GraphViewService,
	cfg *config.Config,
	collector *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		service:   service,
		cfg:       cfg,
		collector: collector,
		logger:    logger,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))
	if rt.collector != nil {
		router.Use(metrics(rt.collector))
	}

	origins := rt.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.healthCheck)
	if rt.collector != nil {
		router.Method(http.MethodGet, rt.metricsPath(), rt.collector.Handler())
	}

	h := &handler{service: rt.service, cfg: rt.cfg, logger: rt.logger}
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/graph", h.getGraph)
		r.Post("/graph/refresh", h.refresh)

		r.Get("/frame", h.getFrame)
		r.Get("/frame.svg", h.getFrameSVG)

		r.Post("/pointer", h.pointer)

		r.Get("/selection", h.getSelection)
		r.Put("/selection", h.putSelection)
		r.Delete("/selection", h.closeSelection)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", h.addNode)
			r.Get("/{nodeID}/neighbors", h.neighbors)
			r.Delete("/{nodeID}", h.deleteNode)
		})
		r.Delete("/links/{linkID}", h.deleteLink)
	})

	return router
}

func (rt *Router) metricsPath() string {
	if rt.cfg.Metrics.Path != "" {
		return rt.cfg.Metrics.Path
	}
	return "/metrics"
}

// healthCheck reports whether a snapshot has been loaded.
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	nodes, links := rt.service.Model().Len()
	respondJSON(w, rt.logger, http.StatusOK, map[string]any{
		"status":  "healthy",
		"loaded":  rt.service.Loaded(),
		"nodes":   nodes,
		"links":   links,
		"running": rt.service.Simulation().Running(),
	})
}

// requestLogger logs every request once it completes.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

// metrics records request counts by route pattern.
func metrics(c *observability.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			c.ObserveHTTP(r.Method, route, status, time.Since(start))
		})
	}
}
