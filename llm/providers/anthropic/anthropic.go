// Package anthropic implements the llm.LLM interface against the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/undertow/llm/providers"
	"github.com/deepnoodle-ai/wonton/retry"
)

var (
	DefaultModel         = "claude-sonnet-4-20250514"
	DefaultEndpoint      = "https://api.anthropic.com/v1/messages"
	DefaultVersion       = "2023-06-01"
	DefaultMaxTokens     = 4096
	DefaultClient        = &http.Client{Timeout: 300 * time.Second}
	DefaultMaxRetries    = 6
	DefaultRetryBaseWait = 2 * time.Second
)

var _ llm.LLM = &Provider{}

type Provider struct {
	client        *http.Client
	apiKey        string
	endpoint      string
	version       string
	model         string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
}

func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:        os.Getenv("ANTHROPIC_API_KEY"),
		endpoint:      DefaultEndpoint,
		version:       DefaultVersion,
		client:        DefaultClient,
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	request := Request{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    config.SystemPrompt,
	}
	if config.Model != "" {
		request.Model = config.Model
	}
	if config.MaxTokens > 0 {
		request.MaxTokens = config.MaxTokens
	}
	if config.Temperature != nil {
		request.Temperature = config.Temperature
	}
	if len(config.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	for _, message := range config.Messages {
		request.Messages = append(request.Messages, &Message{
			Role:    string(message.Role),
			Content: message.Text,
		})
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	var result Response
	err = retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("x-api-key", p.apiKey)
		req.Header.Set("anthropic-version", p.version)

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("error making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return providers.NewError(resp.StatusCode, string(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))

	if err != nil {
		return nil, err
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from anthropic api")
	}
	return &llm.Response{
		ID:         result.ID,
		Model:      result.Model,
		Content:    text,
		StopReason: result.StopReason,
		Usage: llm.Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}, nil
}
