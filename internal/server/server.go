// Package server exposes the generator, the archive codec and the local store
// as a JSON API for the browser UI.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/saeedalam/stackforge/internal/archive"
	"github.com/saeedalam/stackforge/internal/blueprint"
	"github.com/saeedalam/stackforge/internal/config"
	"github.com/saeedalam/stackforge/internal/logger"
	"github.com/saeedalam/stackforge/internal/storage"
	"github.com/saeedalam/stackforge/pkg/types"
)

// Deps are the collaborators served by the API
type Deps struct {
	Generator *blueprint.Generator
	Store     *storage.Store
	Decoder   *archive.Decoder
	// Seed fills credentials missing from stored settings
	Seed     func(types.Settings) types.Settings
	Registry *prometheus.Registry
	Log      *logger.Logger
	Version  string
}

// Server is the local HTTP API
type Server struct {
	engine *gin.Engine
	cfg    config.ServerConfig
	deps   Deps
	log    *logger.Logger
}

// New builds the router
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Seed == nil {
		deps.Seed = func(s types.Settings) types.Settings { return s }
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Decoder == nil {
		deps.Decoder = archive.NewDecoder(deps.Log)
	}

	s := &Server{
		engine: gin.New(),
		cfg:    cfg,
		deps:   deps,
		log:    deps.Log,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Engine returns the gin engine
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) setupMiddleware() {
	s.engine.Use(recovery(s.log))
	s.engine.Use(requestLogger(s.log))
	s.engine.Use(corsMiddleware(s.cfg.AllowedOrigins))
	s.engine.Use(newHTTPMetrics(s.deps.Registry).middleware())
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	{
		api.POST("/generate", s.generate)
		api.POST("/enhance", s.enhance)

		api.POST("/archive/encode", s.encodeArchive)
		api.POST("/archive/decode", s.decodeArchive)

		api.GET("/history", s.listHistory)
		api.DELETE("/history", s.clearHistory)
		api.GET("/history/:id", s.getHistory)
		api.DELETE("/history/:id", s.deleteHistory)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings", s.putSettings)

		api.GET("/stacks", s.listStacks)
	}
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("api listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("api shutting down", "cause", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
