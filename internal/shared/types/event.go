package types

// EventKind discriminates stream events.
type EventKind string

const (
	EventChunk       EventKind = "chunk"
	EventToolRequest EventKind = "tool_request"
	EventToolResult  EventKind = "tool_result"
	EventComplete    EventKind = "complete"
	EventError       EventKind = "error"
)

// StreamEvent is one element of a normalized generation stream. Exactly one
// terminal event (complete or error) ends a stream; every chunk and tool
// event precedes it in provider emission order.
type StreamEvent struct {
	Kind    EventKind `json:"kind"`
	Content string    `json:"content,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Args    string    `json:"args,omitempty"`
	Index   int       `json:"index,omitempty"`
	Result  string    `json:"result,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == EventComplete || e.Kind == EventError
}

// Chunk wraps a piece of generated text.
func Chunk(text string) StreamEvent {
	return StreamEvent{Kind: EventChunk, Content: text}
}

// ToolRequested records a model-initiated tool invocation.
func ToolRequested(name, args string, index int) StreamEvent {
	return StreamEvent{Kind: EventToolRequest, Tool: name, Args: args, Index: index}
}

// ToolCompleted records the result of a tool invocation.
func ToolCompleted(result string) StreamEvent {
	return StreamEvent{Kind: EventToolResult, Result: result}
}

// Completed is the successful terminal event.
func Completed() StreamEvent {
	return StreamEvent{Kind: EventComplete}
}

// Failed is the failing terminal event.
func Failed(err error) StreamEvent {
	ev := StreamEvent{Kind: EventError}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
