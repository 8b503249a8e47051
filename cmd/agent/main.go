package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/parley/config"
	"github.com/chris/parley/internal/agent"
	"github.com/chris/parley/internal/chat"
	"github.com/chris/parley/internal/llm"
	"github.com/chris/parley/internal/mcp"
	"github.com/chris/parley/internal/server"
	"github.com/chris/parley/internal/store"
)

func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	registry := mcp.NewRegistry()
	providers, err := mcp.LoadProviders(cfg.MCPConfigPath)
	if err != nil {
		log.Fatalf("failed to load MCP config: %v", err)
	}
	for _, p := range providers {
		if err := p.Connect(ctx); err != nil {
			log.Fatalf("failed to connect MCP provider %s: %v", p.Name(), err)
		}
		defer p.Close()
		if err := registry.Register(ctx, p); err != nil {
			log.Fatalf("failed to register MCP provider %s: %v", p.Name(), err)
		}
		log.Printf("connected MCP provider %s", p.Name())
	}
	log.Printf("tool catalog: %d tools from %d providers", len(registry.Tools()), len(providers))

	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:          cfg.OpenAIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		AzureEndpoint:   cfg.AzureEndpoint,
		AzureAPIVersion: cfg.AzureAPIVersion,
		Model:           cfg.LLMModel,
	})

	driver := agent.New(client, registry, cfg.MaxContextTokens)
	manager := chat.NewManager(st, driver)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(manager).Handler(),
	}

	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
