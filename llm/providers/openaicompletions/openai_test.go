package openaicompletions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deepnoodle-ai/undertow/llm"
	"github.com/deepnoodle-ai/wonton/assert"
)

func TestGenerate(t *testing.T) {
	var gotRequest Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		err := json.NewDecoder(r.Body).Decode(&gotRequest)
		assert.NoError(t, err)
		json.NewEncoder(w).Encode(Response{
			ID:    "chatcmpl-1",
			Model: "gpt-4o",
			Choices: []*Choice{{
				Message:      Message{Role: "assistant", Content: "hello"},
				FinishReason: "stop",
			}},
			Usage: Usage{PromptTokens: 12, CompletionTokens: 2},
		})
	}))
	defer server.Close()

	provider := New(
		WithAPIKey("test-key"),
		WithEndpoint(server.URL),
	)
	response, err := provider.Generate(context.Background(),
		llm.WithSystemPrompt("be brief"),
		llm.WithUserTextMessage("say hello"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", response.Text())

	// System prompt becomes the first message with the configured role
	assert.Equal(t, "developer", gotRequest.Messages[0].Role)
	assert.Equal(t, "be brief", gotRequest.Messages[0].Content)
	assert.Equal(t, "user", gotRequest.Messages[1].Role)
}

func TestGenerateEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Response{})
	}))
	defer server.Close()

	provider := New(WithAPIKey("test-key"), WithEndpoint(server.URL))
	_, err := provider.Generate(context.Background(), llm.WithUserTextMessage("hi"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
