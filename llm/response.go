package llm

import "strings"

// Usage reports token consumption for one generation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a completion provider's reply to a generation request.
type Response struct {
	ID         string `json:"id,omitempty"`
	Model      string `json:"model,omitempty"`
	Content    string `json:"content"`
	StopReason string `json:"stop_reason,omitempty"`
	Usage      Usage  `json:"usage"`
}

// Text returns the trimmed text content of the response.
func (r *Response) Text() string {
	return strings.TrimSpace(r.Content)
}
