package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

// OpenAIConfig configures the completion endpoint. BaseURL points at any
// OpenAI-compatible server; AzureEndpoint switches to Azure-style routing
// (the DIAL proxy speaks this dialect).
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string
	Model           string
}

type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.AzureEndpoint != "" {
		opts = append(opts, azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion))
	} else if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, tools []Tool) (Message, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages, tools))
	if err != nil {
		return Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Message{Role: RoleAssistant}, nil
	}

	choice := resp.Choices[0]
	msg := Message{Role: RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		ftc := tc.AsFunction()
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        ftc.ID,
			Name:      ftc.Function.Name,
			Arguments: ftc.Function.Arguments,
		})
	}
	return msg, nil
}

func (c *OpenAIClient) StreamComplete(ctx context.Context, messages []Message, tools []Tool) (CompletionStream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages, tools))
	return &openaiStream{stream: stream}, nil
}

func (c *OpenAIClient) params(messages []Message, tools []Tool) openai.ChatCompletionNewParams {
	oaiMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		oaiMsgs = append(oaiMsgs, toOpenAIMessage(m))
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    oaiMsgs,
		Temperature: openai.Float(0),
	}
	if len(tools) > 0 {
		oaiTools := make([]openai.ChatCompletionToolUnionParam, len(tools))
		for i, t := range tools {
			oaiTools[i] = openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			})
		}
		params.Tools = oaiTools
	}
	return params
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Content)
	case RoleTool:
		return openai.ToolMessage(m.Content, m.ToolCallID)
	case RoleAssistant:
		if len(m.ToolCalls) == 0 {
			return openai.AssistantMessage(m.Content)
		}
		toolCalls := make([]openai.ChatCompletionMessageToolCallUnionParam, len(m.ToolCalls))
		for j, tc := range m.ToolCalls {
			toolCalls[j] = openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				},
			}
		}
		asst := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
		if m.Content != "" {
			asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: param.NewOpt(m.Content),
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
	default:
		return openai.UserMessage(m.Content)
	}
}

// openaiStream adapts the SDK's SSE stream to CompletionStream, skipping
// chunks that carry neither text nor tool-call fragments.
type openaiStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current Delta
}

func (s *openaiStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		cur := Delta{Content: delta.Content}
		for _, tc := range delta.ToolCalls {
			cur.ToolCalls = append(cur.ToolCalls, ToolCallDelta{
				Index:     int(tc.Index),
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if cur.Content == "" && len(cur.ToolCalls) == 0 {
			continue
		}
		s.current = cur
		return true
	}
	return false
}

func (s *openaiStream) Current() Delta { return s.current }
func (s *openaiStream) Err() error     { return s.stream.Err() }
func (s *openaiStream) Close() error   { return s.stream.Close() }
