package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/wonton/assert"
)

func TestGenerate(t *testing.T) {
	var gotRequest Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		err := json.NewDecoder(r.Body).Decode(&gotRequest)
		assert.NoError(t, err)
		json.NewEncoder(w).Encode(Response{
			ID:         "msg_1",
			Model:      "claude-sonnet-4-20250514",
			Content:    []*ContentBlock{{Type: "text", Text: "hello"}},
			StopReason: "end_turn",
			Usage:      Usage{InputTokens: 10, OutputTokens: 2},
		})
	}))
	defer server.Close()

	provider := New(
		WithAPIKey("test-key"),
		WithEndpoint(server.URL),
	)
	response, err := provider.Generate(context.Background(),
		llm.WithUserTextMessage("say hello"),
		llm.WithSystemPrompt("be brief"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", response.Text())
	assert.Equal(t, "be brief", gotRequest.System)
	assert.Equal(t, 10, response.Usage.InputTokens)
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	provider := New(
		WithAPIKey("bad-key"),
		WithEndpoint(server.URL),
		WithMaxRetries(1),
		WithRetryBaseWait(time.Millisecond),
	)
	_, err := provider.Generate(context.Background(), llm.WithUserTextMessage("hi"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGenerateRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
			return
		}
		json.NewEncoder(w).Encode(Response{
			Content: []*ContentBlock{{Type: "text", Text: "ok"}},
		})
	}))
	defer server.Close()

	provider := New(
		WithAPIKey("test-key"),
		WithEndpoint(server.URL),
		WithMaxRetries(3),
		WithRetryBaseWait(time.Millisecond),
	)
	response, err := provider.Generate(context.Background(), llm.WithUserTextMessage("hi"))
	assert.NoError(t, err)
	assert.Equal(t, "ok", response.Text())
	assert.Equal(t, 2, attempts)
}

func TestGenerateRequiresMessages(t *testing.T) {
	provider := New(WithAPIKey("test-key"))
	_, err := provider.Generate(context.Background())
	assert.Error(t, err)
}
