package deploy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/domain/app"
	"github.com/sitesmith/backend/internal/domain/artifact"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/monitoring"
	"github.com/sitesmith/backend/internal/shared/errs"
)

// Config holds deploy pipeline settings.
type Config struct {
	// Root is the directory the static file server serves; each deployment
	// lives under Root/<key>.
	Root string
	// Domain is the public base URL, e.g. "https://apps.example.com".
	Domain string
	// OutputRoot is where generation artifacts live.
	OutputRoot string
}

// Result describes a finished deployment.
type Result struct {
	Key        string    `json:"deployKey"`
	URL        string    `json:"url"`
	DeployedAt time.Time `json:"deployedAt"`
}

// Service runs the deploy pipeline.
type Service struct {
	cfg     Config
	apps    *app.Service
	store   *Store
	builder *Builder
	capture *Capturer
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewService wires the deploy pipeline.
func NewService(cfg Config, apps *app.Service, store *Store, builder *Builder, capture *Capturer, metrics *monitoring.Metrics, log *logging.Logger) *Service {
	return &Service{
		cfg:     cfg,
		apps:    apps,
		store:   store,
		builder: builder,
		capture: capture,
		metrics: metrics,
		log:     log,
	}
}

// Deploy publishes an application's latest artifact. Text modes are copied
// as-is; project modes are built first and their dist/ output is published.
// An application keeps its key across redeploys, so the URL is stable.
func (s *Service) Deploy(ctx context.Context, appID, userID uint64) (*Result, error) {
	start := time.Now()
	res, err := s.deploy(ctx, appID, userID)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordDeploy(status, time.Since(start))
	}
	return res, err
}

func (s *Service) deploy(ctx context.Context, appID, userID uint64) (*Result, error) {
	a, err := s.apps.Get(appID, userID)
	if err != nil {
		return nil, err
	}
	mode := s.apps.Mode(a)

	src := artifact.OutputDir(s.cfg.OutputRoot, mode, appID)
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return nil, errs.New(errs.KindValidation, "application has no generated output to deploy")
	}

	if mode.Buildable() {
		if src, err = s.builder.Build(ctx, src); err != nil {
			return nil, err
		}
	}

	key, err := s.resolveKey(a)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(s.cfg.Root, key)
	if err := copyDirectory(src, target); err != nil {
		return nil, errs.Deploy("publish deployment directory", err)
	}

	now := time.Now().UTC()
	if err := s.apps.Store().UpdateDeploy(a.ID, key, now); err != nil {
		return nil, err
	}
	url := s.urlFor(key)
	if err := s.store.Insert(&Record{
		AppID:      a.ID,
		DeployKey:  key,
		Mode:       mode.String(),
		URL:        url,
		DeployedAt: now,
	}); err != nil {
		return nil, err
	}

	if s.capture != nil {
		go s.capture.Capture(a.ID, url)
	}

	s.log.Info("application deployed",
		zap.Uint64("app_id", a.ID),
		zap.String("mode", mode.String()),
		zap.String("key", key),
		zap.String("url", url),
	)
	return &Result{Key: key, URL: url, DeployedAt: now}, nil
}

// resolveKey reuses the application's existing key or allocates one that is
// unused by both applications and past records.
func (s *Service) resolveKey(a *app.Application) (string, error) {
	if a.DeployKey != nil && *a.DeployKey != "" {
		return *a.DeployKey, nil
	}
	return allocateKey(func(key string) (bool, error) {
		if exists, err := s.apps.Store().DeployKeyExists(key); err != nil || exists {
			return exists, err
		}
		return s.store.KeyExists(key)
	})
}

// History lists an application's deployments, newest first.
func (s *Service) History(appID, userID uint64, limit int) ([]Record, error) {
	if _, err := s.apps.Get(appID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	return s.store.History(appID, limit)
}

func (s *Service) urlFor(key string) string {
	return strings.TrimRight(s.cfg.Domain, "/") + "/" + key
}
