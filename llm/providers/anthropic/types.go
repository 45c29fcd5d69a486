package anthropic

// Message is one entry in a Messages API request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the Messages API request body.
type Request struct {
	Model       string     `json:"model"`
	MaxTokens   int        `json:"max_tokens"`
	System      string     `json:"system,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	Messages    []*Message `json:"messages"`
}

// ContentBlock is one block in a Messages API response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the Messages API response body.
type Response struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []*ContentBlock `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
}
