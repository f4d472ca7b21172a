package generate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/domain/app"
	"github.com/sitesmith/backend/internal/domain/artifact"
	"github.com/sitesmith/backend/internal/domain/chat"
	"github.com/sitesmith/backend/internal/domain/session"
	"github.com/sitesmith/backend/internal/domain/stream"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/monitoring"
	"github.com/sitesmith/backend/internal/shared/errs"
	"github.com/sitesmith/backend/internal/shared/types"
)

// Router runs generation turns. One turn per application at a time; a second
// dispatch while a turn is in flight is rejected as busy.
type Router struct {
	apps    *app.Service
	chats   *chat.Service
	cache   *session.Cache
	saver   *artifact.Saver
	metrics *monitoring.Metrics
	log     *logging.Logger

	mu   sync.Mutex
	busy map[uint64]bool
}

// NewRouter wires the generation pipeline.
func NewRouter(apps *app.Service, chats *chat.Service, cache *session.Cache, saver *artifact.Saver, metrics *monitoring.Metrics, log *logging.Logger) *Router {
	return &Router{
		apps:    apps,
		chats:   chats,
		cache:   cache,
		saver:   saver,
		metrics: metrics,
		log:     log,
		busy:    make(map[uint64]bool),
	}
}

// Dispatch starts a generation turn for a new user prompt. The returned
// channel carries the normalized event stream and closes after its single
// terminal event.
func (r *Router) Dispatch(ctx context.Context, appID, userID uint64, prompt string) (<-chan types.StreamEvent, error) {
	if prompt == "" {
		return nil, errs.Validation("prompt must not be empty")
	}

	a, err := r.apps.Get(appID, userID)
	if err != nil {
		return nil, err
	}
	mode := r.apps.Mode(a)

	if !r.acquire(appID) {
		return nil, errs.New(errs.KindBusy, "generation already in progress for this application")
	}

	parentID, err := r.chats.AddMessage(appID, userID, chat.RoleUser, prompt, nil)
	if err != nil {
		r.release(appID)
		return nil, err
	}

	return r.run(ctx, a, mode, prompt, parentID, userID)
}

// Retry regenerates the reply of an earlier user message. Previous ai
// replies of that message are deleted first, so the replacement keeps the
// same parent and the log stays a clean request/reply tree.
func (r *Router) Retry(ctx context.Context, messageID, userID uint64) (<-chan types.StreamEvent, error) {
	msg, err := r.chats.Get(messageID)
	if err != nil {
		return nil, err
	}
	if msg.Role == chat.RoleAI {
		if msg.ParentID == nil {
			return nil, errs.Validation("message has no retryable parent")
		}
		if msg, err = r.chats.Get(*msg.ParentID); err != nil {
			return nil, err
		}
	}

	a, err := r.apps.Get(msg.AppID, userID)
	if err != nil {
		return nil, err
	}
	mode := r.apps.Mode(a)

	if !r.acquire(a.ID) {
		return nil, errs.New(errs.KindBusy, "generation already in progress for this application")
	}

	if err := r.chats.DeleteAIChildren(msg.ID); err != nil {
		r.release(a.ID)
		return nil, err
	}
	// The handle's window now disagrees with the persisted log; rebuild it.
	r.cache.EvictApp(a.ID)

	return r.run(ctx, a, mode, msg.Content, msg.ID, userID)
}

// run resolves the session handle and starts the normalized stream with
// persistence hooks attached.
func (r *Router) run(ctx context.Context, a *app.Application, mode types.GenMode, prompt string, parentID, userID uint64) (<-chan types.StreamEvent, error) {
	handle, err := r.cache.Get(ctx, a.ID, mode)
	if err != nil {
		r.release(a.ID)
		return nil, errs.Generation("acquire generation session", err)
	}

	start := time.Now()
	var failed atomic.Bool

	hooks := stream.Hooks{
		OnComplete: func(ctx context.Context, text string, files []string) error {
			art, err := artifact.Parse(mode, text, files)
			if err != nil {
				return err
			}
			dir, err := r.saver.Save(a.ID, art)
			if err != nil {
				return err
			}
			if _, err := r.chats.AddMessage(a.ID, userID, chat.RoleAI, summarize(text, files), &parentID); err != nil {
				return err
			}
			r.log.Info("generation completed",
				zap.Uint64("app_id", a.ID),
				zap.String("mode", mode.String()),
				zap.String("output_dir", dir),
				zap.Duration("took", time.Since(start)),
			)
			return nil
		},
		OnFailure: func(ctx context.Context, cause error) {
			failed.Store(true)
			r.log.Warn("generation failed",
				zap.Uint64("app_id", a.ID),
				zap.String("mode", mode.String()),
				zap.Error(cause),
			)
			// Persist a diagnostic reply so the conversation records the
			// failure. Best effort; the stream already carries the error.
			diag := "generation failed: " + cause.Error()
			if _, err := r.chats.AddMessage(a.ID, userID, chat.RoleAI, diag, &parentID); err != nil {
				r.log.Warn("failed to persist diagnostic message",
					zap.Uint64("app_id", a.ID),
					zap.Error(err),
				)
			}
		},
		OnDone: func() {
			status := "success"
			if failed.Load() {
				status = "error"
			}
			if r.metrics != nil {
				r.metrics.RecordGeneration(mode.String(), status, time.Since(start))
			}
			r.release(a.ID)
		},
	}

	return stream.Run(ctx, handle, prompt, hooks), nil
}

// summarize picks the transcript entry for a completed turn. Tool-driven
// modes can finish with file writes and no assistant prose; the written file
// list stands in so the reply is never empty.
func summarize(text string, files []string) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	return "generated files:\n" + strings.Join(files, "\n")
}

func (r *Router) acquire(appID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy[appID] {
		return false
	}
	r.busy[appID] = true
	return true
}

func (r *Router) release(appID uint64) {
	r.mu.Lock()
	delete(r.busy, appID)
	r.mu.Unlock()
}

// Busy reports whether a generation turn is in flight for the application.
func (r *Router) Busy(appID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy[appID]
}
