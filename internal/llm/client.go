package llm

import "context"

// Client is a chat-completion backend. Both calls send the full message list
// and tool catalog with deterministic sampling; tool use is left to the model.
type Client interface {
	// Complete performs one completion round trip and returns the
	// assistant's message, including any tool calls it declared.
	Complete(ctx context.Context, messages []Message, tools []Tool) (Message, error)

	// StreamComplete opens a token stream for one completion. The caller
	// must drain the stream and Close it.
	StreamComplete(ctx context.Context, messages []Message, tools []Tool) (CompletionStream, error)
}

// CompletionStream is a pull-based sequence of model increments. Next blocks
// on the network read; after it returns false, Err reports whether the stream
// ended normally.
type CompletionStream interface {
	Next() bool
	Current() Delta
	Err() error
	Close() error
}

// Delta is one streamed increment: a text fragment, indexed tool-call
// fragments, or both.
type Delta struct {
	Content   string
	ToolCalls []ToolCallDelta
}

// ToolCallDelta is a fragment of a tool call, keyed by the call's position in
// the declaring message. Any field may be absent; Arguments fragments are
// concatenated across deltas, not replaced.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}
