package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chris/parley/internal/agent"
	"github.com/chris/parley/internal/llm"
	"github.com/chris/parley/internal/mcp"
	"github.com/chris/parley/internal/store"
)

// scriptedClient replays canned completions, one per model call.
type scriptedClient struct {
	responses []llm.Message
	streams   [][]llm.Delta
	streamErr error

	completeCalls int
	streamCalls   int
}

func (c *scriptedClient) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Message, error) {
	if c.completeCalls >= len(c.responses) {
		return llm.Message{}, fmt.Errorf("unscripted completion call %d", c.completeCalls)
	}
	resp := c.responses[c.completeCalls]
	c.completeCalls++
	return resp, nil
}

func (c *scriptedClient) StreamComplete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.CompletionStream, error) {
	if c.streamCalls >= len(c.streams) {
		return nil, fmt.Errorf("unscripted stream call %d", c.streamCalls)
	}
	deltas := c.streams[c.streamCalls]
	c.streamCalls++
	return &scriptedStream{deltas: deltas, err: c.streamErr}, nil
}

type scriptedStream struct {
	deltas []llm.Delta
	pos    int
	err    error
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.deltas) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Current() llm.Delta { return s.deltas[s.pos-1] }
func (s *scriptedStream) Err() error         { return s.err }
func (s *scriptedStream) Close() error       { return nil }

func testManager(t *testing.T, client llm.Client) *Manager {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	driver := agent.New(client, mcp.NewRegistry(), 100000)
	return NewManager(st, driver)
}

func userMsg(text string) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: text}
}

func TestChat_FirstTurn(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		{Role: llm.RoleAssistant, Content: "hi!"},
	}}
	m := testManager(t, client)

	conv, err := m.Create("greetings")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := m.Chat(context.Background(), conv.ID, userMsg("hello"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Content != "hi!" {
		t.Errorf("content = %q, want hi!", result.Content)
	}
	if result.ConversationID != conv.ID {
		t.Errorf("conversation_id = %q, want %q", result.ConversationID, conv.ID)
	}

	// The persisted transcript is [system, user, assistant].
	saved, err := m.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(saved.Messages) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d: %+v", len(saved.Messages), saved.Messages)
	}
	if saved.Messages[0].Role != llm.RoleSystem || saved.Messages[0].Content != llm.SystemPrompt {
		t.Error("first turn must persist the system prompt at position 0")
	}
	if saved.Messages[1].Content != "hello" || saved.Messages[2].Content != "hi!" {
		t.Errorf("transcript mismatch: %+v", saved.Messages)
	}
}

func TestChat_SecondTurnKeepsOneSystemPrompt(t *testing.T) {
	client := &scriptedClient{responses: []llm.Message{
		{Role: llm.RoleAssistant, Content: "hi!"},
		{Role: llm.RoleAssistant, Content: "still here"},
	}}
	m := testManager(t, client)

	conv, err := m.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ctx := context.Background()
	if _, err := m.Chat(ctx, conv.ID, userMsg("hello")); err != nil {
		t.Fatalf("first Chat: %v", err)
	}
	if _, err := m.Chat(ctx, conv.ID, userMsg("you there?")); err != nil {
		t.Fatalf("second Chat: %v", err)
	}

	saved, err := m.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	systems := 0
	for _, msg := range saved.Messages {
		if msg.Role == llm.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("expected exactly 1 system message, got %d", systems)
	}
	if len(saved.Messages) != 5 {
		t.Errorf("expected 5 persisted messages, got %d", len(saved.Messages))
	}
}

func TestChat_MissingConversation(t *testing.T) {
	m := testManager(t, &scriptedClient{})

	_, err := m.Chat(context.Background(), "nope", userMsg("hello"))
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestChat_FailedTurnNotPersisted(t *testing.T) {
	// No scripted responses, so the model call fails.
	m := testManager(t, &scriptedClient{})

	conv, err := m.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Chat(context.Background(), conv.ID, userMsg("hello")); err == nil {
		t.Fatal("expected the turn to fail")
	}

	saved, err := m.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(saved.Messages) != 0 {
		t.Errorf("failed turn must not persist, found %d messages", len(saved.Messages))
	}
}

func TestChatStream_FrameOrder(t *testing.T) {
	client := &scriptedClient{streams: [][]llm.Delta{
		{{Content: "hi"}, {Content: "!"}},
	}}
	m := testManager(t, client)

	conv, err := m.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	frames, err := m.ChatStream(context.Background(), conv.ID, userMsg("hello"))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var got []string
	for f := range frames {
		got = append(got, f)
	}

	want := []string{
		llm.ConversationFrame(conv.ID),
		llm.ContentFrame("hi"),
		llm.ContentFrame("!"),
		llm.StopFrame(),
		llm.DoneFrame,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d frames, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}

	// The transcript is persisted once the stream drains.
	saved, err := m.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(saved.Messages) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d", len(saved.Messages))
	}
	if saved.Messages[2].Content != "hi!" {
		t.Errorf("assistant content = %q, want hi!", saved.Messages[2].Content)
	}
}

func TestChatStream_MissingConversation(t *testing.T) {
	m := testManager(t, &scriptedClient{})

	_, err := m.ChatStream(context.Background(), "nope", userMsg("hello"))
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound before streaming, got %v", err)
	}
}

func TestChatStream_FailureEmitsErrorFrameAndSkipsSave(t *testing.T) {
	client := &scriptedClient{
		streams:   [][]llm.Delta{{{Content: "part"}}},
		streamErr: errors.New("upstream gone"),
	}
	m := testManager(t, client)

	conv, err := m.Create("")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	frames, err := m.ChatStream(context.Background(), conv.ID, userMsg("hello"))
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var got []string
	for f := range frames {
		got = append(got, f)
	}

	if len(got) < 2 {
		t.Fatalf("expected at least error + done frames, got %v", got)
	}
	last, secondLast := got[len(got)-1], got[len(got)-2]
	if last != llm.DoneFrame {
		t.Errorf("stream must end with [DONE], got %q", last)
	}
	if !strings.Contains(secondLast, `"error"`) {
		t.Errorf("expected an error frame before [DONE], got %q", secondLast)
	}

	saved, err := m.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(saved.Messages) != 0 {
		t.Errorf("failed stream must not persist, found %d messages", len(saved.Messages))
	}
}
