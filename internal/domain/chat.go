package domain

// Turn roles understood by the model adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// orchestrator and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Citation is a reference parsed from a model reply.
type Citation struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Email is a plain-text transactional message.
type Email struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}
