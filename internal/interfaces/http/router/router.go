// Package router assembles the gin engine: middleware chain, route table,
// and the HTTP server lifecycle.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcs-platform/mcs-gateway/internal/config"
	"github.com/mcs-platform/mcs-gateway/internal/infrastructure/monitoring"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/handlers"
	"github.com/mcs-platform/mcs-gateway/internal/interfaces/http/middleware"
	"github.com/mcs-platform/mcs-gateway/pkg/constants"
	"github.com/mcs-platform/mcs-gateway/pkg/errors"
	"github.com/mcs-platform/mcs-gateway/pkg/logger"
)

// Router owns the gin engine and the HTTP server.
type Router struct {
	engine *gin.Engine
	config *config.Config
	logger logger.Logger
	server *http.Server

	health         *handlers.HealthHandler
	orchestrations *handlers.OrchestrationsHandler
	platform       *handlers.PlatformHandler
	auth           *middleware.Authenticator
	tracer         trace.Tracer
	metrics        *monitoring.Metrics
}

func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	health *handlers.HealthHandler,
	orchestrations *handlers.OrchestrationsHandler,
	platform *handlers.PlatformHandler,
	auth *middleware.Authenticator,
	tracer trace.Tracer,
	metrics *monitoring.Metrics,
) *Router {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Router{
		engine:         gin.New(),
		config:         cfg,
		logger:         log.WithComponent("router"),
		health:         health,
		orchestrations: orchestrations,
		platform:       platform,
		auth:           auth,
		tracer:         tracer,
		metrics:        metrics,
	}
}

// SetupRoutes installs the middleware chain and the route table.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(r.tracer, r.metrics))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Authorization",
			constants.HeaderRequestID, constants.HeaderGraphVersion, constants.HeaderTraceparent,
		},
		ExposeHeaders: []string{
			constants.HeaderRequestID,
			constants.HeaderRateLimitLimit,
			constants.HeaderRateLimitRemaining,
			constants.HeaderRateLimitReset,
			"Retry-After",
		},
		MaxAge: 12 * time.Hour,
	}))

	// Liveness probe is unauthenticated.
	r.engine.GET("/healthz", r.health.Check)

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !r.config.IsProduction() {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group(constants.APIPrefix)
	v1.Use(r.auth.Handler())
	{
		orchestrations := v1.Group("/orchestrations/:graph")
		{
			orchestrations.POST("/run", r.orchestrations.Run)
			orchestrations.POST("/replay", r.orchestrations.Replay)
			orchestrations.POST("/manual-review/submit", r.orchestrations.SubmitManualReview)
		}
		platform := v1.Group("/platform")
		{
			platform.GET("/graphs", r.platform.Graphs)
			platform.GET("/graphs/:graph", r.platform.Graph)
			platform.GET("/graphs/:graph/:version/schema", r.platform.GraphSchema)
			platform.GET("/tools", r.platform.Tools)
			platform.GET("/tools/:tool", r.platform.Tool)
			platform.GET("/tools/:tool/:version/schema", r.platform.ToolSchema)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		handlers.RespondError(c, errors.ErrNotFound("route not found"))
	})
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully. Returns when the server has fully stopped.
func (r *Router) Start(ctx context.Context) error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info(ctx, "Starting HTTP server", logger.String("address", addr))
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.logger.Info(context.Background(), "Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}

// Engine exposes the underlying gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
