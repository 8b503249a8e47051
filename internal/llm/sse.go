package llm

import "encoding/json"

// Server-sent-event frames for the streaming chat endpoint. The payload
// shapes follow the chat-completions chunk format the front end already
// parses: a content delta per text fragment, one stop chunk, then a literal
// [DONE] sentinel.

// DoneFrame is the end-of-stream sentinel, emitted last on every stream.
const DoneFrame = "data: [DONE]\n\n"

type chunkPayload struct {
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Delta        chunkDelta `json:"delta"`
	Index        int        `json:"index"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content string `json:"content,omitempty"`
}

// ContentFrame wraps one streamed text fragment.
func ContentFrame(text string) string {
	return frame(chunkPayload{Choices: []chunkChoice{{Delta: chunkDelta{Content: text}}}})
}

// StopFrame signals normal completion of the stream.
func StopFrame() string {
	stop := "stop"
	return frame(chunkPayload{Choices: []chunkChoice{{FinishReason: &stop}}})
}

// ConversationFrame announces the conversation id; it is the first frame of
// every stream.
func ConversationFrame(id string) string {
	return frame(map[string]string{"conversation_id": id})
}

// ErrorFrame reports a mid-stream failure. It is followed by DoneFrame so
// clients dismantle the connection the same way on success and failure.
func ErrorFrame(msg string) string {
	return frame(map[string]string{"error": msg})
}

func frame(v any) string {
	b, _ := json.Marshal(v) // fixed payload shapes; marshal cannot fail
	return "data: " + string(b) + "\n\n"
}
