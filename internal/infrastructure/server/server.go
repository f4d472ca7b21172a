// Package server assembles the service: storage, generation pipeline, deploy
// pipeline and the HTTP surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/sitesmith/backend/internal/api/http"
	"github.com/sitesmith/backend/internal/api/middleware"
	"github.com/sitesmith/backend/internal/api/ws"
	"github.com/sitesmith/backend/internal/domain/app"
	"github.com/sitesmith/backend/internal/domain/artifact"
	"github.com/sitesmith/backend/internal/domain/chat"
	"github.com/sitesmith/backend/internal/domain/deploy"
	"github.com/sitesmith/backend/internal/domain/generate"
	"github.com/sitesmith/backend/internal/domain/session"
	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/genai/openai"
	"github.com/sitesmith/backend/internal/infrastructure/config"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/monitoring"
	"github.com/sitesmith/backend/internal/infrastructure/persistence"
)

// Server wraps the HTTP server and its long-lived dependencies.
type Server struct {
	httpServer *http.Server
	cache      *session.Cache
	metrics    *monitoring.Metrics
	log        *logging.Logger
}

// New builds the whole service from configuration.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Server, error) {
	db, err := persistence.Open(
		persistence.Config{Path: cfg.Database.Path},
		&app.Application{}, &chat.Message{}, &deploy.Record{},
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	metrics := monitoring.NewMetrics()

	apps := app.NewService(app.NewStore(db), generate.ClassifyMode, log)
	chats := chat.NewService(chat.NewStore(db), log)

	provider, err := openai.NewProvider(ctx, openai.Config{
		APIKey:       cfg.AI.APIKey,
		BaseURL:      cfg.AI.BaseURL,
		Model:        cfg.AI.Model,
		ProjectModel: cfg.AI.ProjectModel,
		OutputRoot:   cfg.Generation.OutputRoot,
		WindowSize:   cfg.Generation.HistoryWindow,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create generation provider: %w", err)
	}

	history := func(appID uint64, max int) []genai.Message {
		var out []genai.Message
		for _, m := range chats.Context(appID, max) {
			out = append(out, genai.Message{Role: m.Role, Content: m.Content})
		}
		return out
	}
	cache := session.NewCache(session.Config{
		Capacity: cfg.Generation.CacheCapacity,
		WriteTTL: cfg.Generation.CacheWriteTTL,
		IdleTTL:  cfg.Generation.CacheIdleTTL,
		Window:   cfg.Generation.HistoryWindow,
	}, provider, history, log)

	saver := artifact.NewSaver(cfg.Generation.OutputRoot, log)
	router := generate.NewRouter(apps, chats, cache, saver, metrics, log)

	builder := deploy.NewBuilder(cfg.Deploy.BuildCommand, cfg.Deploy.BuildTimeout, log)
	capturer := deploy.NewCapturer(
		cfg.Screenshot.ServiceURL, cfg.Screenshot.CoverRoot, cfg.Screenshot.Timeout,
		apps.Store(), metrics, log,
	)
	deploys := deploy.NewService(deploy.Config{
		Root:       cfg.Deploy.Root,
		Domain:     cfg.Deploy.Domain,
		OutputRoot: cfg.Generation.OutputRoot,
	}, apps, deploy.NewStore(db), builder, capturer, metrics, log)

	handlers := apihttp.NewHandlers(apps, chats, router, deploys, cache, metrics, log)
	wsHandler := ws.NewHandler(router, metrics, log)

	engine := buildEngine(cfg, metrics, handlers, wsHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: engine,
		},
		cache:   cache,
		metrics: metrics,
		log:     log,
	}, nil
}

func buildEngine(cfg *config.Config, metrics *monitoring.Metrics, handlers *apihttp.Handlers, wsHandler *ws.Handler) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	engine.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	engine.GET("/health", handlers.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", wsHandler.HandleConnection)

	api := engine.Group("/api")
	{
		api.POST("/apps", handlers.CreateApp)
		api.GET("/apps/:id", handlers.GetApp)
		api.POST("/apps/:id/generate", handlers.Generate)
		api.POST("/apps/:id/deploy", handlers.Deploy)
		api.GET("/apps/:id/history", handlers.History)
		api.GET("/apps/:id/deployments", handlers.Deployments)
		api.POST("/messages/:id/retry", handlers.Retry)

		api.GET("/cache/stats", handlers.CacheStats)
		api.POST("/cache/evict", handlers.CacheEvict)
		api.POST("/cache/warm", handlers.CacheWarm)
	}

	// Deployed sites are served straight from the deploy root; a fronting
	// web server can take this over in production.
	engine.Static("/sites", cfg.Deploy.Root)

	return engine
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.cache.Close()
	s.metrics.Close()
	return err
}
