package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/domain/app"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/monitoring"
)

// Capturer fetches a cover screenshot of a freshly deployed site from the
// external screenshot service and stores it as the application cover.
// Capture failures never fail a deploy.
type Capturer struct {
	client    *resty.Client
	coverRoot string
	apps      *app.Store
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// NewCapturer creates a capturer. An empty serviceURL disables capturing.
func NewCapturer(serviceURL, coverRoot string, timeout time.Duration, apps *app.Store, metrics *monitoring.Metrics, log *logging.Logger) *Capturer {
	var client *resty.Client
	if serviceURL != "" {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = resty.New().
			SetBaseURL(serviceURL).
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second)
	}
	return &Capturer{
		client:    client,
		coverRoot: coverRoot,
		apps:      apps,
		metrics:   metrics,
		log:       log,
	}
}

// Capture grabs a screenshot of url and records it as the app cover. Meant
// to run on its own goroutine after a deploy; errors are logged only.
func (c *Capturer) Capture(appID uint64, url string) {
	if c.client == nil {
		return
	}
	if err := c.capture(appID, url); err != nil {
		if c.metrics != nil {
			c.metrics.ScreenshotFailures.Inc()
		}
		c.log.Warn("cover capture failed",
			zap.Uint64("app_id", appID),
			zap.String("url", url),
			zap.Error(err),
		)
	}
}

func (c *Capturer) capture(appID uint64, url string) error {
	resp, err := c.client.R().
		SetQueryParam("url", url).
		Get("/screenshot")
	if err != nil {
		return fmt.Errorf("request screenshot: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("screenshot service returned %s", resp.Status())
	}

	if err := os.MkdirAll(c.coverRoot, 0o755); err != nil {
		return fmt.Errorf("create cover root: %w", err)
	}
	cover := filepath.Join(c.coverRoot, fmt.Sprintf("app_%d.png", appID))
	if err := os.WriteFile(cover, resp.Body(), 0o644); err != nil {
		return fmt.Errorf("write cover: %w", err)
	}

	if err := c.apps.UpdateCover(appID, cover); err != nil {
		return fmt.Errorf("record cover: %w", err)
	}
	c.log.Info("cover captured", zap.Uint64("app_id", appID), zap.String("cover", cover))
	return nil
}
