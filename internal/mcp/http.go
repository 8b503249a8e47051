package mcp

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
)

// HTTPProvider reaches a network-hosted MCP server over the streamable-HTTP
// transport. Construct it, then Connect before use.
type HTTPProvider struct {
	session
	url string
}

func NewHTTPProvider(name, url string) *HTTPProvider {
	return &HTTPProvider{session: session{name: name}, url: url}
}

func (p *HTTPProvider) Connect(ctx context.Context) error {
	t, err := transport.NewStreamableHTTP(p.url)
	if err != nil {
		return fmt.Errorf("creating transport for %s: %w", p.name, err)
	}
	c := mcpclient.NewClient(t)
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("starting client for %s: %w", p.name, err)
	}
	if err := p.initialize(ctx, c); err != nil {
		c.Close()
		return err
	}
	p.client = c
	return nil
}
