package config

import (
	"fmt"
	"path/filepath"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/undertow/breaker"
	"github.com/deepnoodle-ai/undertow/fallback"
	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/undertow/llm/providers/anthropic"
	"github.com/deepnoodle-ai/undertow/llm/providers/openaicompletions"
	"github.com/deepnoodle-ai/undertow/reporter"
	"github.com/deepnoodle-ai/undertow/slogger"
	"github.com/deepnoodle-ai/undertow/store"
	"github.com/deepnoodle-ai/undertow/toolkit"
)

// BuildLogger creates a logger at the configured level.
func (c *Config) BuildLogger() slogger.Logger {
	level := c.LogLevel
	if level == "" {
		level = "info"
	}
	return slogger.New(slogger.LevelFromString(level))
}

// BuildProvider creates the completion provider, wrapped with the rate-limit
// fallback selector when a fallback provider is configured.
func (c *Config) BuildProvider(logger slogger.Logger) (llm.LLM, error) {
	primary, err := buildOneProvider(c.Provider)
	if err != nil {
		return nil, err
	}
	if c.Fallback.Provider.Name == "" {
		return primary, nil
	}
	secondary, err := buildOneProvider(c.Fallback.Provider)
	if err != nil {
		return nil, fmt.Errorf("error building fallback provider: %w", err)
	}
	selector, err := fallback.New(fallback.Options{
		Primary:          primary,
		Secondary:        secondary,
		FailureThreshold: c.Fallback.FailureThreshold,
		Cooldown:         c.Fallback.Cooldown.Duration(),
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	return selector, nil
}

func buildOneProvider(cfg ProviderConfig) (llm.LLM, error) {
	switch cfg.Name {
	case "", "anthropic":
		var opts []anthropic.Option
		if key := cfg.resolveAPIKey(); key != "" {
			opts = append(opts, anthropic.WithAPIKey(key))
		}
		if cfg.Model != "" {
			opts = append(opts, anthropic.WithModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, anthropic.WithMaxTokens(cfg.MaxTokens))
		}
		return anthropic.New(opts...), nil
	case "openai":
		var opts []openaicompletions.Option
		if key := cfg.resolveAPIKey(); key != "" {
			opts = append(opts, openaicompletions.WithAPIKey(key))
		}
		if cfg.Model != "" {
			opts = append(opts, openaicompletions.WithModel(cfg.Model))
		}
		if cfg.MaxTokens > 0 {
			opts = append(opts, openaicompletions.WithMaxTokens(cfg.MaxTokens))
		}
		return openaicompletions.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// BuildRepository creates the workflow store: file-backed when a storage
// directory is configured, in-memory otherwise.
func (c *Config) BuildRepository() undertow.WorkflowRepository {
	if c.Storage.Directory == "" {
		return store.NewMemoryRepository()
	}
	return store.NewFileRepository(filepath.Join(c.Storage.Directory, "workflows.json"))
}

// BuildReporter creates the session status log alongside the repository.
func (c *Config) BuildReporter() undertow.StatusReporter {
	if c.Storage.Directory == "" {
		return reporter.NewMemoryReporter()
	}
	return reporter.NewFileReporter(filepath.Join(c.Storage.Directory, "sessions"))
}

// BuildBreaker creates the circuit breaker, or nil when disabled.
func (c *Config) BuildBreaker(logger slogger.Logger) *breaker.Breaker {
	if !c.Breaker.Enabled {
		return nil
	}
	return breaker.New(breaker.Options{
		FailureThreshold: c.Breaker.FailureThreshold,
		SuccessThreshold: c.Breaker.SuccessThreshold,
		Timeout:          c.Breaker.Timeout.Duration(),
		TTL:              c.Breaker.TTL.Duration(),
		Logger:           logger,
	})
}

// BuildTools registers the built-in tools plus any extras the caller
// provides, e.g. a mailer-backed email tool.
func (c *Config) BuildTools(extras ...undertow.Tool) (*undertow.ToolRegistry, error) {
	registry := undertow.NewToolRegistry()
	fetch := toolkit.NewFetchTool(toolkit.FetchToolOptions{
		Timeout:    c.Tools.Fetch.Timeout.Duration(),
		MaxSize:    c.Tools.Fetch.MaxSize,
		MaxRetries: c.Tools.Fetch.MaxRetries,
	})
	if err := registry.Register(fetch); err != nil {
		return nil, err
	}
	wait := toolkit.NewWaitTool(toolkit.WaitToolOptions{
		MaxDuration: c.Tools.Wait.MaxDuration.Duration(),
	})
	if err := registry.Register(wait); err != nil {
		return nil, err
	}
	for _, tool := range extras {
		if err := registry.Register(tool); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
