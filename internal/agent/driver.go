package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/chris/parley/internal/llm"
	"github.com/chris/parley/internal/mcp"
)

// maxToolRounds caps the model/tool ping-pong within a single turn.
const maxToolRounds = 10

// Driver owns the tool-augmented completion loop: ask the model, execute the
// tool calls it declares, re-ask with the results, until it answers in plain
// text.
type Driver struct {
	client   llm.Client
	registry *mcp.Registry

	// MaxContextTokens is the budget for the request payload; transcripts
	// that outgrow it are trimmed per request, never in storage.
	MaxContextTokens int
}

func New(client llm.Client, registry *mcp.Registry, maxContextTokens int) *Driver {
	return &Driver{client: client, registry: registry, MaxContextTokens: maxContextTokens}
}

// Respond runs the loop to completion and returns the final assistant
// message. messages is shared with the caller and appended to in place across
// every round; the caller reads it back for the full transcript.
func (d *Driver) Respond(ctx context.Context, messages *[]llm.Message) (llm.Message, error) {
	tools := d.registry.Tools()
	budget := d.messageBudget(tools)

	for round := 0; round < maxToolRounds; round++ {
		trimmed := llm.TrimMessages(*messages, budget)
		if len(trimmed) < len(*messages) {
			log.Printf("context trimmed: %d → %d messages", len(*messages), len(trimmed))
		}

		resp, err := d.client.Complete(ctx, trimmed, tools)
		if err != nil {
			return llm.Message{}, fmt.Errorf("completion: %w", err)
		}

		*messages = append(*messages, resp)

		// No tool calls — we have a final answer.
		if len(resp.ToolCalls) == 0 {
			return resp, nil
		}

		if err := d.executeToolCalls(ctx, resp, messages); err != nil {
			return llm.Message{}, err
		}
	}

	return llm.Message{}, fmt.Errorf("tool loop exceeded %d rounds", maxToolRounds)
}

func (d *Driver) messageBudget(tools []llm.Tool) int {
	budget := d.MaxContextTokens - llm.EstimateToolsTokens(tools)
	if budget < 1000 {
		budget = 1000 // floor so we always have room for the current turn
	}
	return budget
}
