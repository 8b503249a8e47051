package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chris/parley/internal/agent"
	"github.com/chris/parley/internal/chat"
	"github.com/chris/parley/internal/llm"
	"github.com/chris/parley/internal/mcp"
	"github.com/chris/parley/internal/store"
)

// cannedClient answers every completion with a fixed message, or streams it
// as a single delta.
type cannedClient struct {
	reply string
}

func (c *cannedClient) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Message, error) {
	return llm.Message{Role: llm.RoleAssistant, Content: c.reply}, nil
}

func (c *cannedClient) StreamComplete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.CompletionStream, error) {
	return &cannedStream{content: c.reply}, nil
}

type cannedStream struct {
	content string
	done    bool
}

func (s *cannedStream) Next() bool {
	if s.done {
		return false
	}
	s.done = true
	return true
}

func (s *cannedStream) Current() llm.Delta { return llm.Delta{Content: s.content} }
func (s *cannedStream) Err() error         { return nil }
func (s *cannedStream) Close() error       { return nil }

func testHandler(t *testing.T, reply string) (http.Handler, *chat.Manager) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	driver := agent.New(&cannedClient{reply: reply}, mcp.NewRegistry(), 100000)
	manager := chat.NewManager(st, driver)
	return New(manager).Handler(), manager
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := testHandler(t, "ok")
	rec := doJSON(t, h, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" || body["conversation_manager_initialized"] != true {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestHealthWithoutManager(t *testing.T) {
	h := New(nil).Handler()
	rec := doJSON(t, h, "GET", "/health", "")
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["conversation_manager_initialized"] != false {
		t.Errorf("expected conversation_manager_initialized=false, got %v", body)
	}

	rec = doJSON(t, h, "GET", "/conversations", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("conversation routes without a manager should 503, got %d", rec.Code)
	}
}

func TestConversationLifecycle(t *testing.T) {
	h, _ := testHandler(t, "ok")

	rec := doJSON(t, h, "POST", "/conversations", `{"title":"support"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var conv store.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("invalid conversation JSON: %v", err)
	}
	if conv.ID == "" || conv.Title != "support" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	rec = doJSON(t, h, "GET", "/conversations", "")
	var list struct {
		Conversations []store.Summary `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid list JSON: %v", err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].ID != conv.ID {
		t.Errorf("unexpected list: %+v", list)
	}

	rec = doJSON(t, h, "GET", "/conversations/"+conv.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}

	rec = doJSON(t, h, "DELETE", "/conversations/"+conv.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/conversations/"+conv.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete should 404, got %d", rec.Code)
	}
	rec = doJSON(t, h, "DELETE", "/conversations/"+conv.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete should 404, got %d", rec.Code)
	}
}

func TestChatNonStreaming(t *testing.T) {
	h, manager := testHandler(t, "hello back")

	conv, err := manager.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := doJSON(t, h, "POST", "/conversations/"+conv.ID+"/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body.String())
	}
	var result chat.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid result JSON: %v", err)
	}
	if result.Content != "hello back" || result.ConversationID != conv.ID {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestChatStreaming(t *testing.T) {
	h, manager := testHandler(t, "streamed reply")

	conv, err := manager.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := doJSON(t, h, "POST", "/conversations/"+conv.ID+"/chat", `{"message":"hello","stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	wantPrefix := llm.ConversationFrame(conv.ID)
	if !strings.HasPrefix(body, wantPrefix) {
		t.Errorf("stream must open with the conversation frame, got %q", body)
	}
	if !strings.Contains(body, "streamed reply") {
		t.Errorf("stream missing content: %q", body)
	}
	if !strings.HasSuffix(body, llm.DoneFrame) {
		t.Errorf("stream must end with [DONE], got %q", body)
	}
}

func TestChatValidation(t *testing.T) {
	h, manager := testHandler(t, "ok")

	conv, err := manager.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := doJSON(t, h, "POST", "/conversations/"+conv.ID+"/chat", `{"message":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank message should 400, got %d", rec.Code)
	}
	rec = doJSON(t, h, "POST", "/conversations/"+conv.ID+"/chat", `{bad json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON should 400, got %d", rec.Code)
	}
	rec = doJSON(t, h, "POST", "/conversations/missing-id/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("chat to missing conversation should 404, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := testHandler(t, "ok")
	rec := doJSON(t, h, "OPTIONS", "/conversations", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing allow-all CORS header")
	}
}
