package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chris/parley/internal/llm"
)

// ErrNotConnected reports use of a provider whose handshake has not
// completed, or whose connection has since dropped.
var ErrNotConnected = errors.New("mcp provider not connected")

// callTimeout bounds a single tool invocation.
const callTimeout = 30 * time.Second

// Provider is the capability a tool provider exposes to the completion loop,
// independent of transport: connect once, list tools, invoke tools.
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	ListTools(ctx context.Context) ([]llm.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// session holds the connected mcp-go client shared by both transports and
// implements the tool operations over it.
type session struct {
	name   string
	client *mcpclient.Client // nil until Connect succeeds
}

func (s *session) Name() string { return s.name }

func (s *session) ListTools(ctx context.Context) ([]llm.Tool, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%s: %w", s.name, ErrNotConnected)
	}
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("listing tools from %s: %w", s.name, err)
	}
	tools := make([]llm.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		params, err := schemaToMap(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s from %s: %w", t.Name, s.name, err)
		}
		tools = append(tools, llm.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return tools, nil
}

func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("%s: %w", s.name, ErrNotConnected)
	}
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	log.Printf("mcp %s: calling tool %s", s.name, name)
	result, err := s.client.CallTool(callCtx, req)
	if err != nil {
		return "", fmt.Errorf("calling %s on %s: %w", name, s.name, err)
	}
	return flattenResult(result), nil
}

func (s *session) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// initialize performs the MCP handshake and logs the server's declared
// capabilities. The capabilities are not otherwise acted on.
func (s *session) initialize(ctx context.Context, c *mcpclient.Client) error {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "parley", Version: "0.1.0"}

	res, err := c.Initialize(ctx, initReq)
	if err != nil {
		return fmt.Errorf("initializing %s: %w", s.name, err)
	}
	caps, _ := json.Marshal(res.Capabilities)
	log.Printf("mcp %s: connected to %s %s, capabilities %s",
		s.name, res.ServerInfo.Name, res.ServerInfo.Version, caps)
	return nil
}

// schemaToMap converts an MCP input schema into the JSON-Schema map shape the
// completion API expects. Schemas with no properties get an empty object so
// the model API accepts them.
func schemaToMap(schema mcp.ToolInputSchema) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling input schema: %w", err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("decoding input schema: %w", err)
	}
	if params["properties"] == nil {
		params["properties"] = map[string]any{}
	}
	return params, nil
}

// flattenResult returns the first content part of a tool result, preferring
// textual content over other kinds. Provider-side execution errors arrive as
// content and are returned as data, not as Go errors.
func flattenResult(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			return tc.Text
		case *mcp.TextContent:
			return tc.Text
		}
	}
	b, _ := json.Marshal(result.Content[0])
	return string(b)
}
