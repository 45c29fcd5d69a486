// Package openaicompletions implements the llm.LLM interface against the
// OpenAI Chat Completions API and compatible endpoints.
package openaicompletions

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
	DefaultModel         = "gpt-4o"
	DefaultEndpoint      = "https://api.openai.com/v1/chat/completions"
	DefaultMaxTokens     = 4096
	DefaultSystemRole    = "developer"
	DefaultClient        = &http.Client{Timeout: 300 * time.Second}
	DefaultMaxRetries    = 6
	DefaultRetryBaseWait = 2 * time.Second
)

var _ llm.LLM = &Provider{}

type Provider struct {
	client        *http.Client
	apiKey        string
	endpoint      string
	model         string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
	systemRole    string
}

func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:        os.Getenv("OPENAI_API_KEY"),
		endpoint:      DefaultEndpoint,
		client:        DefaultClient,
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
		systemRole:    DefaultSystemRole,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return "openai-completions"
}

func (p *Provider) Generate(ctx context.Context, opts ...llm.Option) (*llm.Response, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	request := Request{
		Model:     p.model,
		MaxTokens: p.maxTokens,
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
	if config.SystemPrompt != "" {
		request.Messages = append(request.Messages, &Message{
			Role:    p.systemRole,
			Content: config.SystemPrompt,
		})
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
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty response from openai api")
	}
	choice := result.Choices[0]
	return &llm.Response{
		ID:         result.ID,
		Model:      result.Model,
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: llm.Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
	}, nil
}
