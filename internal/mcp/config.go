package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ServerConfig is one entry in the mcpServers config file. Exactly one of
// URL (streamable HTTP), Image (docker stdio), or Command (generic stdio)
// must be set.
type ServerConfig struct {
	URL     string   `json:"url,omitempty"`
	Image   string   `json:"image,omitempty"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

type serversFile struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// LoadProviders reads an mcpServers config file and constructs one provider
// per entry, in name order so the tool catalog is deterministic. The
// providers are not yet connected.
func LoadProviders(path string) ([]Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mcp config: %w", err)
	}
	var cfg serversFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing mcp config %s: %w", path, err)
	}

	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		entry := cfg.MCPServers[name]
		switch {
		case entry.URL != "":
			providers = append(providers, NewHTTPProvider(name, entry.URL))
		case entry.Image != "":
			providers = append(providers, NewDockerProvider(name, entry.Image))
		case entry.Command != "":
			providers = append(providers, NewStdioProvider(name, entry.Command, entry.Args...))
		default:
			return nil, fmt.Errorf("mcp server %s: needs url, image, or command", name)
		}
	}
	return providers, nil
}
