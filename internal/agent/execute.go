package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/chris/parley/internal/llm"
)

// ErrMalformedToolCall reports unparsable tool-call arguments from the model.
// It fails the whole turn: there is no recovery without model cooperation.
var ErrMalformedToolCall = errors.New("malformed tool call arguments")

// executeToolCalls runs every tool call on the assistant message in declared
// order and appends one tool message per call, immediately after the
// assistant message and in the same order — the model requires a response for
// every declared call before it accepts the next turn. Unknown tools and
// provider failures become tool-message data so the model can react.
func (d *Driver) executeToolCalls(ctx context.Context, assistant llm.Message, messages *[]llm.Message) error {
	for _, call := range assistant.ToolCalls {
		var args map[string]any
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return fmt.Errorf("tool %s: %w: %v", call.Name, ErrMalformedToolCall, err)
			}
		}

		result := d.callTool(ctx, call.Name, args)
		log.Printf("tool %s → %s", call.Name, truncate(result, 200))

		*messages = append(*messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    result,
			Name:       call.Name,
			ToolCallID: call.ID,
		})
	}
	return nil
}

func (d *Driver) callTool(ctx context.Context, name string, args map[string]any) string {
	provider, ok := d.registry.Provider(name)
	if !ok {
		return fmt.Sprintf("unknown tool: %s", name)
	}
	result, err := provider.CallTool(ctx, name, args)
	if err != nil {
		return fmt.Sprintf("tool %s failed: %v", name, err)
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
