package deploy

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/shared/errs"
)

const distDir = "dist"

// Builder runs the external build step for project-mode applications.
type Builder struct {
	command string
	timeout time.Duration
	log     *logging.Logger
}

// NewBuilder creates a builder. The command runs through the shell in the
// project directory and must leave its output in dist/.
func NewBuilder(command string, timeout time.Duration, log *logging.Logger) *Builder {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Builder{command: command, timeout: timeout, log: log}
}

// Build runs the build command and returns the dist directory path. A
// command that exits zero without producing dist/ still fails.
func (b *Builder) Build(ctx context.Context, projectDir string) (string, error) {
	if _, err := os.Stat(projectDir); err != nil {
		return "", errs.Build("project directory missing", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", b.command)
	cmd.Dir = projectDir

	start := time.Now()
	out, err := cmd.CombinedOutput()
	if err != nil {
		b.log.Warn("build command failed",
			zap.String("dir", projectDir),
			zap.Duration("took", time.Since(start)),
			zap.ByteString("output", tail(out, 4096)),
			zap.Error(err),
		)
		if ctx.Err() == context.DeadlineExceeded {
			return "", errs.Build("build timed out", ctx.Err())
		}
		return "", errs.Build("build command failed", err)
	}

	dist := filepath.Join(projectDir, distDir)
	info, err := os.Stat(dist)
	if err != nil || !info.IsDir() {
		return "", errs.New(errs.KindBuild, "build produced no dist directory")
	}

	b.log.Info("build completed",
		zap.String("dir", projectDir),
		zap.Duration("took", time.Since(start)),
	)
	return dist, nil
}

// tail keeps the last n bytes of build output for the log.
func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
