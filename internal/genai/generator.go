// Package genai defines the boundary to the AI generation capability. The
// provider is a black box: given a conversation handle and a prompt it emits
// callback-style events on its own goroutines. The stream package normalizes
// those callbacks into one ordered, cancellable event sequence.
package genai

import (
	"context"

	"github.com/sitesmith/backend/internal/shared/types"
)

// Message is one entry of the seeded conversation window.
type Message struct {
	Role    string
	Content string
}

// Callbacks receives provider events. All callbacks for one Generate call
// are serialized by the consumer, but may arrive on provider goroutines.
// Exactly one of OnComplete or OnError is invoked last.
type Callbacks struct {
	OnChunk       func(text string)
	OnToolRequest func(name, args string, index int)
	OnToolResult  func(result string)
	OnComplete    func()
	OnError       func(err error)
}

// Handle is a provider-bound conversation for one (application, mode) pair.
// Implementations keep a bounded message window across turns; the handle is
// cheap to rebuild from persisted history after cache eviction.
type Handle interface {
	// Generate runs one generation turn. It blocks until the turn reaches a
	// terminal state and honors ctx cancellation by stopping provider work.
	Generate(ctx context.Context, prompt string, cb Callbacks)
}

// Provider constructs conversation handles.
type Provider interface {
	NewHandle(ctx context.Context, appID uint64, mode types.GenMode, history []Message) (Handle, error)
}
