package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/chris/parley/internal/agent"
	"github.com/chris/parley/internal/llm"
	"github.com/chris/parley/internal/store"
)

// ErrConversationNotFound reports a chat turn against a conversation id that
// does not exist. Turns never create conversations implicitly.
var ErrConversationNotFound = errors.New("conversation not found")

// Manager composes the conversation store and the completion driver for one
// chat turn: load history, inject the system prompt on the first turn, run
// the tool loop, persist the grown transcript.
type Manager struct {
	store  *store.Store
	driver *agent.Driver
}

func NewManager(st *store.Store, driver *agent.Driver) *Manager {
	return &Manager{store: st, driver: driver}
}

// Result is the outcome of a non-streaming turn.
type Result struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id"`
}

func (m *Manager) Create(title string) (*store.Conversation, error) { return m.store.Create(title) }
func (m *Manager) List() ([]store.Summary, error)                   { return m.store.List() }
func (m *Manager) Get(id string) (*store.Conversation, error)       { return m.store.Get(id) }
func (m *Manager) Delete(id string) (bool, error)                   { return m.store.Delete(id) }

// loadTurn reconstructs the in-memory message list for a turn: the persisted
// transcript, the system prompt if the transcript is empty (first turn only),
// then the user message.
func (m *Manager) loadTurn(conversationID string, userMessage llm.Message) ([]llm.Message, error) {
	conv, err := m.store.Get(conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	messages := conv.Messages
	if len(messages) == 0 {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: llm.SystemPrompt})
	}
	return append(messages, userMessage), nil
}

// Chat runs one non-streaming turn, persists the full transcript, and
// returns the final content. A failed turn is not persisted.
func (m *Manager) Chat(ctx context.Context, conversationID string, userMessage llm.Message) (*Result, error) {
	messages, err := m.loadTurn(conversationID, userMessage)
	if err != nil {
		return nil, err
	}
	reply, err := m.driver.Respond(ctx, &messages)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(conversationID, messages); err != nil {
		return nil, err
	}
	return &Result{Content: reply.Content, ConversationID: conversationID}, nil
}

// ChatStream runs one streaming turn. The conversation is resolved before
// the stream starts, so a missing id fails here, not mid-stream. The
// returned channel yields wire frames: the conversation-id frame first, then
// the driver's frames; the transcript is persisted after the stream drains.
// A failed turn emits an error frame plus the [DONE] sentinel and skips the
// save.
func (m *Manager) ChatStream(ctx context.Context, conversationID string, userMessage llm.Message) (<-chan string, error) {
	messages, err := m.loadTurn(conversationID, userMessage)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		send := func(frame string) bool {
			select {
			case out <- frame:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(llm.ConversationFrame(conversationID)) {
			return
		}
		for chunk := range m.driver.StreamRespond(ctx, &messages) {
			if chunk.Err != nil {
				log.Printf("streaming turn for %s failed: %v", conversationID, chunk.Err)
				if send(llm.ErrorFrame(chunk.Err.Error())) {
					send(llm.DoneFrame)
				}
				return
			}
			if !send(chunk.Data) {
				return
			}
		}
		if err := m.store.Save(conversationID, messages); err != nil {
			log.Printf("saving conversation %s: %v", conversationID, err)
		}
	}()
	return out, nil
}
