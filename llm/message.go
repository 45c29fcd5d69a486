package llm

// Role of a message author.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)

// Message is a single text message in a conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewUserTextMessage creates a new user message with the given text.
func NewUserTextMessage(text string) *Message {
	return &Message{Role: User, Text: text}
}

// NewAssistantTextMessage creates a new assistant message with the given text.
func NewAssistantTextMessage(text string) *Message {
	return &Message{Role: Assistant, Text: text}
}
