package mcp

import (
	"context"
	"fmt"
	"log"

	"github.com/chris/parley/internal/llm"
)

// Registry maps tool names to the provider that owns them. It is built once
// at startup; the merged catalog is fixed for the process lifetime.
type Registry struct {
	tools     []llm.Tool
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register discovers a provider's tools and merges them into the catalog.
// A tool name already claimed by another provider is a configuration error:
// startup fails loudly instead of silently shadowing a tool.
func (r *Registry) Register(ctx context.Context, p Provider) error {
	tools, err := p.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("registering %s: %w", p.Name(), err)
	}
	for _, t := range tools {
		if owner, exists := r.providers[t.Name]; exists {
			return fmt.Errorf("registering %s: tool %q already provided by %s",
				p.Name(), t.Name, owner.Name())
		}
		r.providers[t.Name] = p
		r.tools = append(r.tools, t)
	}
	log.Printf("mcp %s: registered %d tools", p.Name(), len(tools))
	return nil
}

// Tools returns the merged catalog in registration order.
func (r *Registry) Tools() []llm.Tool {
	return r.tools
}

// Provider returns the provider owning the named tool.
func (r *Registry) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
