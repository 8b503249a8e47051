package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/parley/internal/llm"
)

// StreamChunk is one pull from a streaming turn: a wire-format SSE frame, or
// a terminal error.
type StreamChunk struct {
	Data string
	Err  error
}

// StreamRespond runs the loop in streaming mode. Frames arrive on the
// returned unbuffered channel as the model produces tokens, so the producer
// suspends until the consumer pulls. Text fragments are emitted immediately;
// tool-call fragments are accumulated, reassembled when the round's stream
// ends, and executed before the next round. Only the final call-free round
// emits the stop frame and [DONE] sentinel; a failed turn yields one chunk
// with Err set instead. messages is appended to in place; drain the channel
// before reading the transcript.
func (d *Driver) StreamRespond(ctx context.Context, messages *[]llm.Message) <-chan StreamChunk {
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		if err := d.streamRounds(ctx, messages, out); err != nil {
			select {
			case out <- StreamChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func (d *Driver) streamRounds(ctx context.Context, messages *[]llm.Message, out chan<- StreamChunk) error {
	tools := d.registry.Tools()
	budget := d.messageBudget(tools)

	for round := 0; round < maxToolRounds; round++ {
		trimmed := llm.TrimMessages(*messages, budget)

		stream, err := d.client.StreamComplete(ctx, trimmed, tools)
		if err != nil {
			return fmt.Errorf("completion stream: %w", err)
		}

		var content strings.Builder
		var deltas []llm.ToolCallDelta
		for stream.Next() {
			delta := stream.Current()
			if delta.Content != "" {
				if !emit(ctx, out, llm.ContentFrame(delta.Content)) {
					stream.Close()
					return ctx.Err()
				}
				content.WriteString(delta.Content)
			}
			deltas = append(deltas, delta.ToolCalls...)
		}
		err = stream.Err()
		stream.Close()
		if err != nil {
			return fmt.Errorf("completion stream: %w", err)
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Content: content.String()}

		if len(deltas) == 0 {
			*messages = append(*messages, assistant)
			if !emit(ctx, out, llm.StopFrame()) {
				return ctx.Err()
			}
			if !emit(ctx, out, llm.DoneFrame) {
				return ctx.Err()
			}
			return nil
		}

		assistant.ToolCalls = llm.CollectToolCalls(deltas)
		*messages = append(*messages, assistant)
		if err := d.executeToolCalls(ctx, assistant, messages); err != nil {
			return err
		}
	}

	return fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

func emit(ctx context.Context, out chan<- StreamChunk, data string) bool {
	select {
	case out <- StreamChunk{Data: data}:
		return true
	case <-ctx.Done():
		return false
	}
}
