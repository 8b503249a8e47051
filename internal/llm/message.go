package llm

// Message roles as they appear on the wire and in persisted transcripts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is the single unit exchanged with the model and persisted in a
// conversation transcript. Absent fields are omitted from JSON rather than
// sent as empty values.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments is the raw JSON argument payload as the model emitted it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool describes one callable tool offered to the model: name, description,
// and a JSON-Schema parameters object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
