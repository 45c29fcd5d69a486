package openaicompletions

// Message is one entry in a Chat Completions request or response.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the Chat Completions request body.
type Request struct {
	Model       string     `json:"model"`
	Messages    []*Message `json:"messages"`
	MaxTokens   int        `json:"max_completion_tokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the Chat Completions response body.
type Response struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []*Choice `json:"choices"`
	Usage   Usage     `json:"usage"`
}
