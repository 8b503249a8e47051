package mcp

import (
	"context"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
)

// StdioProvider spawns a subprocess and speaks MCP over its stdin/stdout.
// Construct it, then Connect before use.
type StdioProvider struct {
	session
	command string
	args    []string
}

func NewStdioProvider(name, command string, args ...string) *StdioProvider {
	return &StdioProvider{session: session{name: name}, command: command, args: args}
}

// NewDockerProvider runs an MCP server image in a disposable container,
// attached over stdio.
func NewDockerProvider(name, image string) *StdioProvider {
	return NewStdioProvider(name, "docker", "run", "--rm", "-i", image)
}

func (p *StdioProvider) Connect(ctx context.Context) error {
	c, err := mcpclient.NewStdioMCPClient(p.command, nil, p.args...)
	if err != nil {
		return fmt.Errorf("spawning %s: %w", p.name, err)
	}
	if err := p.initialize(ctx, c); err != nil {
		c.Close()
		return err
	}
	p.client = c
	return nil
}
