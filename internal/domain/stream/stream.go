// Package stream normalizes provider callbacks into one ordered, cancellable
// event channel. The relay guarantees exactly one terminal event per run, in
// emission order, with all post-terminal provider noise dropped, and runs the
// completion hooks before the terminal event is published so consumers
// observing "complete" can rely on persisted results.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/shared/types"
)

const eventBuffer = 64

// Hooks run at stream completion, before the terminal event is emitted.
type Hooks struct {
	// OnComplete receives the accumulated text and the relative paths of
	// tool-written files. A non-nil error converts the stream outcome into a
	// failure.
	OnComplete func(ctx context.Context, text string, files []string) error

	// OnFailure observes the cause of a failing stream.
	OnFailure func(ctx context.Context, cause error)

	// OnDone always runs last, after the terminal event is queued. Used to
	// release per-application generation locks.
	OnDone func()
}

// Run executes one generation turn and returns its normalized event channel.
// The channel is closed after the single terminal event. Cancelling ctx
// aborts provider work and terminates the stream with an error event.
func Run(ctx context.Context, handle genai.Handle, prompt string, hooks Hooks) <-chan types.StreamEvent {
	r := &relay{
		ctx:    ctx,
		events: make(chan types.StreamEvent, eventBuffer),
		hooks:  hooks,
	}
	go r.run(handle, prompt)
	return r.events
}

// relay serializes provider callbacks onto the event channel and enforces
// the single-terminal invariant.
type relay struct {
	ctx    context.Context
	events chan types.StreamEvent
	hooks  Hooks

	mu       sync.Mutex
	terminal bool
	text     strings.Builder
	files    []string

	sendMu sync.Mutex
	closed bool
}

func (r *relay) run(handle genai.Handle, prompt string) {
	defer func() {
		if r.hooks.OnDone != nil {
			r.hooks.OnDone()
		}
	}()

	cb := genai.Callbacks{
		OnChunk: func(text string) {
			r.mu.Lock()
			if !r.terminal {
				r.text.WriteString(text)
			}
			r.mu.Unlock()
			r.emit(types.Chunk(text))
		},
		OnToolRequest: func(name, args string, index int) {
			r.emit(types.ToolRequested(name, args, index))
		},
		OnToolResult: func(result string) {
			r.mu.Lock()
			if !r.terminal {
				r.files = append(r.files, result)
			}
			r.mu.Unlock()
			r.emit(types.ToolCompleted(result))
		},
		OnComplete: func() {
			r.finish(nil)
		},
		OnError: func(err error) {
			if err == nil {
				err = errors.New("generation failed")
			}
			r.finish(err)
		},
	}

	handle.Generate(r.ctx, prompt, cb)

	// A well-behaved handle emits a terminal callback before returning. If it
	// did not, surface that instead of leaving the channel open.
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		r.finish(ctxErr)
	} else {
		r.finish(errors.New("generation ended without a result"))
	}
}

// finish runs the hooks and publishes the terminal event. Only the first
// call has any effect.
func (r *relay) finish(cause error) {
	r.mu.Lock()
	if r.terminal {
		r.mu.Unlock()
		return
	}
	r.terminal = true
	text := r.text.String()
	files := r.files
	r.mu.Unlock()

	if cause == nil && r.hooks.OnComplete != nil {
		cause = r.hooks.OnComplete(r.ctx, text, files)
	}

	if cause != nil {
		if r.hooks.OnFailure != nil {
			r.hooks.OnFailure(r.ctx, cause)
		}
		r.publish(types.Failed(cause), true)
	} else {
		r.publish(types.Completed(), true)
	}
}

// emit forwards a non-terminal event, dropping it once the stream has
// terminated.
func (r *relay) emit(ev types.StreamEvent) {
	r.mu.Lock()
	done := r.terminal
	r.mu.Unlock()
	if done {
		return
	}
	r.publish(ev, false)
}

// publish serializes channel sends so a straggling provider callback can
// never hit the channel after the terminal close.
func (r *relay) publish(ev types.StreamEvent, terminal bool) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
		if !terminal {
			return
		}
		// Still deliver or drop the terminal, but always close.
		select {
		case r.events <- ev:
		default:
		}
	}
	if terminal {
		r.closed = true
		close(r.events)
	}
}
