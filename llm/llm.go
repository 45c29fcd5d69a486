// Package llm defines the completion provider port used by the planner and
// executor, along with the option types shared by provider implementations.
package llm

import (
	"context"
)

// LLM is implemented by completion providers. Errors returned by Generate
// carry enough information for callers to classify them as transient or
// permanent (see the providers package).
type LLM interface {

	// Name identifies the provider ("anthropic", "openai-completions", ...).
	Name() string

	// Generate a response for the configured messages.
	Generate(ctx context.Context, opts ...Option) (*Response, error)
}

// Config holds the parameters for one generation request.
type Config struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
	Messages     []*Message
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Option is a function that configures a generation request.
type Option func(*Config)

// WithModel sets the model for the generation.
func WithModel(model string) Option {
	return func(config *Config) {
		config.Model = model
	}
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(systemPrompt string) Option {
	return func(config *Config) {
		config.SystemPrompt = systemPrompt
	}
}

// WithMaxTokens sets the max tokens.
func WithMaxTokens(maxTokens int) Option {
	return func(config *Config) {
		config.MaxTokens = maxTokens
	}
}

// WithTemperature sets the temperature.
func WithTemperature(temperature float64) Option {
	return func(config *Config) {
		config.Temperature = &temperature
	}
}

// WithMessages sets the messages for the generation.
func WithMessages(messages ...*Message) Option {
	return func(config *Config) {
		config.Messages = messages
	}
}

// WithUserTextMessage appends a user message containing the given text.
func WithUserTextMessage(text string) Option {
	return func(config *Config) {
		config.Messages = append(config.Messages, NewUserTextMessage(text))
	}
}
