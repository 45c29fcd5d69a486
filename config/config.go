// Package config defines the engine's file configuration and builds the
// runtime components from it.
package config

import (
	"fmt"
	"os"
	"time"
)

// Duration wraps time.Duration so config files can say "30s" or "5m".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(data []byte) error {
	return d.parse(string(data))
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	return d.parse(string(data))
}

func (d *Duration) parse(raw string) error {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if raw == "" || raw == "null" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the root of the engine configuration file.
type Config struct {
	LogLevel string         `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty" json:"storage,omitempty"`
	Provider ProviderConfig `yaml:"provider,omitempty" json:"provider,omitempty"`
	Fallback FallbackConfig `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Planner  PlannerConfig  `yaml:"planner,omitempty" json:"planner,omitempty"`
	Executor ExecutorConfig `yaml:"executor,omitempty" json:"executor,omitempty"`
	Breaker  BreakerConfig  `yaml:"breaker,omitempty" json:"breaker,omitempty"`
	Tools    ToolsConfig    `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// StorageConfig selects where workflow and session state live. With an empty
// directory everything stays in memory.
type StorageConfig struct {
	Directory string `yaml:"directory,omitempty" json:"directory,omitempty"`
}

// ProviderConfig names a completion provider. APIKey supports ${ENV_VAR}
// expansion.
type ProviderConfig struct {
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	Model     string `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey    string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// FallbackConfig configures the secondary provider used when the primary is
// rate limited.
type FallbackConfig struct {
	Provider         ProviderConfig `yaml:"provider,omitempty" json:"provider,omitempty"`
	FailureThreshold int            `yaml:"failure_threshold,omitempty" json:"failure_threshold,omitempty"`
	Cooldown         Duration       `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

type PlannerConfig struct {
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
	MaxSteps int    `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`
}

type ExecutorConfig struct {
	StepDelay     Duration `yaml:"step_delay,omitempty" json:"step_delay,omitempty"`
	MaxAttempts   int      `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	RetryBaseWait Duration `yaml:"retry_base_wait,omitempty" json:"retry_base_wait,omitempty"`
	RetryMaxWait  Duration `yaml:"retry_max_wait,omitempty" json:"retry_max_wait,omitempty"`
}

type BreakerConfig struct {
	Enabled          bool     `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	FailureThreshold int      `yaml:"failure_threshold,omitempty" json:"failure_threshold,omitempty"`
	SuccessThreshold int      `yaml:"success_threshold,omitempty" json:"success_threshold,omitempty"`
	Timeout          Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	TTL              Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

type ToolsConfig struct {
	Fetch FetchToolConfig `yaml:"fetch,omitempty" json:"fetch,omitempty"`
	Wait  WaitToolConfig  `yaml:"wait,omitempty" json:"wait,omitempty"`
}

type FetchToolConfig struct {
	Timeout    Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxSize    int      `yaml:"max_size,omitempty" json:"max_size,omitempty"`
	MaxRetries int      `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

type WaitToolConfig struct {
	MaxDuration Duration `yaml:"max_duration,omitempty" json:"max_duration,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Provider: ProviderConfig{
			Name:   "anthropic",
			APIKey: "${ANTHROPIC_API_KEY}",
		},
	}
}

// Validate checks cross-field constraints that the YAML schema cannot.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	switch c.Fallback.Provider.Name {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown fallback provider %q", c.Fallback.Provider.Name)
	}
	if c.LogLevel != "" && !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// resolveAPIKey expands ${ENV_VAR} references in the configured key.
func (p ProviderConfig) resolveAPIKey() string {
	return os.ExpandEnv(p.APIKey)
}
