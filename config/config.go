package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr             string
	OpenAIKey        string
	OpenAIBaseURL    string // OpenAI-compatible endpoint (proxies, local models)
	AzureEndpoint    string // set for Azure OpenAI deployments
	AzureAPIVersion  string
	LLMModel         string
	DatabasePath     string
	MCPConfigPath    string
	MaxContextTokens int
}

func Load() *Config {
	_ = godotenv.Load() // ignore error if no .env

	return &Config{
		Addr:             envOr("ADDR", ":8011"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		AzureEndpoint:    os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIVersion:  envOr("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		DatabasePath:     envOr("DATABASE_PATH", "./data.db"),
		MCPConfigPath:    envOr("MCP_CONFIG_PATH", "./mcp.json"),
		MaxContextTokens: envIntOr("MAX_CONTEXT_TOKENS", 100000),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
