package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chris/parley/internal/llm"
)

// Conversation is one persisted transcript.
type Conversation struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Messages  []llm.Message `json:"messages"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

// Summary is the listing view of a conversation.
type Summary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

// now returns the current UTC time as an RFC3339 string for display and a
// nanosecond count for the recency index.
func now() (iso string, unix int64) {
	t := time.Now().UTC()
	return t.Format(time.RFC3339), t.UnixNano()
}

// Create persists a new conversation with an empty transcript.
func (s *Store) Create(title string) (*Conversation, error) {
	id := uuid.NewString()
	iso, unix := now()
	_, err := s.conn.Exec(
		"INSERT INTO conversations (id, title, messages, created_at, updated_at, updated_unix) VALUES (?, ?, '[]', ?, ?, ?)",
		id, title, iso, iso, unix,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &Conversation{ID: id, Title: title, Messages: []llm.Message{}, CreatedAt: iso, UpdatedAt: iso}, nil
}

// List returns conversation summaries, most recently updated first. A record
// whose payload cannot be decoded is skipped rather than failing the listing.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.conn.Query("SELECT id, title, messages, created_at, updated_at FROM conversations ORDER BY updated_unix DESC")
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var messagesJSON string
		if err := rows.Scan(&sum.ID, &sum.Title, &messagesJSON, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		var msgs []llm.Message
		if err := json.Unmarshal([]byte(messagesJSON), &msgs); err != nil {
			continue
		}
		sum.MessageCount = len(msgs)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Get returns a conversation, or nil without error when it does not exist.
// Callers must check for nil.
func (s *Store) Get(id string) (*Conversation, error) {
	var c Conversation
	var messagesJSON string
	err := s.conn.QueryRow("SELECT id, title, messages, created_at, updated_at FROM conversations WHERE id = ?", id).
		Scan(&c.ID, &c.Title, &messagesJSON, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &c.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages for %s: %w", id, err)
	}
	return &c, nil
}

// Delete removes a conversation and reports whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	res, err := s.conn.Exec("DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Save replaces the conversation's message list wholesale and bumps its
// recency. This is the only mutation path, so the persisted state is always
// a complete, self-consistent snapshot.
func (s *Store) Save(id string, messages []llm.Message) error {
	b, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	iso, unix := now()
	res, err := s.conn.Exec(
		"UPDATE conversations SET messages = ?, updated_at = ?, updated_unix = ? WHERE id = ?",
		string(b), iso, unix, id,
	)
	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("conversation %s not found", id)
	}
	return nil
}
