// Package toolkit provides the built-in tools a workflow plan can call.
package toolkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deepnoodle-ai/undertow"
	"github.com/deepnoodle-ai/wonton/retry"
)

const (
	DefaultFetchMaxSize    = 1024 * 500 // 500k runes
	DefaultFetchMaxRetries = 1
	DefaultFetchTimeout    = 15 * time.Second
)

var _ undertow.Tool = &FetchTool{}

// FetchTool retrieves the contents of a URL over HTTP.
type FetchTool struct {
	client     *http.Client
	maxSize    int
	maxRetries int
	timeout    time.Duration
}

type FetchToolOptions struct {
	Client     *http.Client
	MaxSize    int
	MaxRetries int
	Timeout    time.Duration
}

func NewFetchTool(options FetchToolOptions) *FetchTool {
	if options.Client == nil {
		options.Client = http.DefaultClient
	}
	if options.MaxSize <= 0 {
		options.MaxSize = DefaultFetchMaxSize
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = DefaultFetchMaxRetries
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultFetchTimeout
	}
	return &FetchTool{
		client:     options.Client,
		maxSize:    options.MaxSize,
		maxRetries: options.MaxRetries,
		timeout:    options.Timeout,
	}
}

func (t *FetchTool) Definition() *undertow.ToolDefinition {
	return &undertow.ToolDefinition{
		Name:        "fetch",
		Description: "Retrieves the contents of the webpage at the given URL.",
		Parameters: map[string]string{
			"url": "The URL of the webpage to retrieve, e.g. 'https://www.example.com'",
		},
	}
}

func (t *FetchTool) Call(ctx context.Context, params map[string]any) (any, error) {
	url, _ := params["url"].(string)
	if url == "" {
		return nil, fmt.Errorf("url parameter is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	var body string
	var status int
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.MarkPermanent(err)
		}
		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxSize)*4))
		if err != nil {
			return err
		}
		status = resp.StatusCode
		body = string(data)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("fetch failed with status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return retry.MarkPermanent(fmt.Errorf("fetch failed with status %d", resp.StatusCode))
		}
		return nil
	}, retry.WithMaxRetries(t.maxRetries))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"url":     url,
		"status":  status,
		"content": truncateText(body, t.maxSize),
	}, nil
}

func truncateText(text string, maxSize int) string {
	runes := []rune(text)
	if len(runes) <= maxSize {
		return text
	}
	return string(runes[:maxSize]) + "..."
}
