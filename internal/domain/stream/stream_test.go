package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesmith/backend/internal/genai"
	"github.com/sitesmith/backend/internal/shared/types"
)

// scriptedHandle replays a fixed callback sequence.
type scriptedHandle struct {
	script func(ctx context.Context, cb genai.Callbacks)
}

func (s *scriptedHandle) Generate(ctx context.Context, prompt string, cb genai.Callbacks) {
	s.script(ctx, cb)
}

func collect(t *testing.T, ch <-chan types.StreamEvent) []types.StreamEvent {
	t.Helper()
	var out []types.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestRunOrdersEventsAndCompletesOnce(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnChunk("<html>")
		cb.OnChunk("</html>")
		cb.OnComplete()
	}}

	var gotText string
	hooks := Hooks{
		OnComplete: func(ctx context.Context, text string, files []string) error {
			gotText = text
			assert.Empty(t, files)
			return nil
		},
	}

	events := collect(t, Run(context.Background(), h, "a site", hooks))

	require.Len(t, events, 3)
	assert.Equal(t, types.EventChunk, events[0].Kind)
	assert.Equal(t, "<html>", events[0].Content)
	assert.Equal(t, types.EventChunk, events[1].Kind)
	assert.Equal(t, types.EventComplete, events[2].Kind)
	assert.Equal(t, "<html></html>", gotText)
}

func TestRunRelaysToolEventsAndCollectsFiles(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnToolRequest("write_file", `{"file_path":"src/App.vue"}`, 0)
		cb.OnToolResult("src/App.vue")
		cb.OnToolRequest("write_file", `{"file_path":"package.json"}`, 1)
		cb.OnToolResult("package.json")
		cb.OnChunk("done")
		cb.OnComplete()
	}}

	var gotFiles []string
	hooks := Hooks{
		OnComplete: func(ctx context.Context, text string, files []string) error {
			gotFiles = files
			return nil
		},
	}

	events := collect(t, Run(context.Background(), h, "a vue app", hooks))

	require.Len(t, events, 6)
	assert.Equal(t, types.EventToolRequest, events[0].Kind)
	assert.Equal(t, "write_file", events[0].Tool)
	assert.Equal(t, types.EventToolResult, events[1].Kind)
	assert.Equal(t, "src/App.vue", events[1].Result)
	assert.Equal(t, types.EventComplete, events[5].Kind)
	assert.Equal(t, []string{"src/App.vue", "package.json"}, gotFiles)
}

func TestRunSingleTerminalDropsPostTerminalNoise(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnChunk("x")
		cb.OnComplete()
		cb.OnChunk("late")
		cb.OnError(errors.New("late failure"))
		cb.OnComplete()
	}}

	events := collect(t, Run(context.Background(), h, "p", Hooks{}))

	require.Len(t, events, 2)
	assert.Equal(t, types.EventChunk, events[0].Kind)
	assert.Equal(t, types.EventComplete, events[1].Kind)
}

func TestRunProviderErrorBecomesErrorEvent(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnChunk("partial")
		cb.OnError(errors.New("model unavailable"))
	}}

	var failure error
	completeRan := false
	hooks := Hooks{
		OnComplete: func(ctx context.Context, text string, files []string) error {
			completeRan = true
			return nil
		},
		OnFailure: func(ctx context.Context, cause error) { failure = cause },
	}

	events := collect(t, Run(context.Background(), h, "p", hooks))

	require.Len(t, events, 2)
	assert.Equal(t, types.EventError, events[1].Kind)
	assert.Contains(t, events[1].Error, "model unavailable")
	assert.False(t, completeRan)
	require.Error(t, failure)
}

func TestRunCompletionHookFailureTurnsIntoError(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnChunk("ok")
		cb.OnComplete()
	}}

	hooks := Hooks{
		OnComplete: func(ctx context.Context, text string, files []string) error {
			return errors.New("persist failed")
		},
	}

	events := collect(t, Run(context.Background(), h, "p", hooks))

	last := events[len(events)-1]
	assert.Equal(t, types.EventError, last.Kind)
	assert.Contains(t, last.Error, "persist failed")
}

func TestRunHandleReturningWithoutTerminalFails(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnChunk("half")
	}}

	events := collect(t, Run(context.Background(), h, "p", Hooks{}))

	last := events[len(events)-1]
	assert.Equal(t, types.EventError, last.Kind)
	assert.Contains(t, last.Error, "without a result")
}

func TestRunCancellationTerminatesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnChunk("start")
		<-ctx.Done()
	}}

	doneReleased := make(chan struct{})
	hooks := Hooks{
		OnDone: func() { close(doneReleased) },
	}

	ch := Run(ctx, h, "p", hooks)
	ev := <-ch
	assert.Equal(t, types.EventChunk, ev.Kind)

	cancel()

	select {
	case <-doneReleased:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDone not called after cancellation")
	}
	for range ch {
	}
}

func TestRunAlwaysCallsOnDone(t *testing.T) {
	h := &scriptedHandle{script: func(ctx context.Context, cb genai.Callbacks) {
		cb.OnError(errors.New("boom"))
	}}

	done := make(chan struct{})
	collect(t, Run(context.Background(), h, "p", Hooks{OnDone: func() { close(done) }}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnDone not called")
	}
}
