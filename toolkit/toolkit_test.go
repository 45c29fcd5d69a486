package toolkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/deepnoodle-ai/undertow"
	"github.com/stretchr/testify/require"
)

func TestFetchTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from the server"))
	}))
	defer server.Close()

	tool := NewFetchTool(FetchToolOptions{})
	result, err := tool.Call(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)

	out, ok := result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 200, out["status"])
	require.Equal(t, "hello from the server", out["content"])
}

func TestFetchToolRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tool := NewFetchTool(FetchToolOptions{MaxRetries: 2})
	result, err := tool.Call(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)
	require.Equal(t, int64(2), calls.Load())

	out := result.(map[string]any)
	require.Equal(t, "ok", out["content"])
}

func TestFetchToolRejectsBadInput(t *testing.T) {
	tool := NewFetchTool(FetchToolOptions{})

	_, err := tool.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	_, err = tool.Call(context.Background(), map[string]any{"url": "ftp://example.com"})
	require.Error(t, err)
}

func TestFetchToolTruncatesLongContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for range 100 {
			w.Write([]byte("0123456789"))
		}
	}))
	defer server.Close()

	tool := NewFetchTool(FetchToolOptions{MaxSize: 50})
	result, err := tool.Call(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)

	out := result.(map[string]any)
	require.Len(t, out["content"], 53) // 50 runes plus the ellipsis
}

type fakeMailer struct {
	sent []*undertow.EmailMessage
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, message *undertow.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, message)
	return nil
}

func TestEmailToolPrepareStagesPayload(t *testing.T) {
	mailer := &fakeMailer{}
	tool := NewEmailTool(mailer)

	payload, err := tool.Prepare(context.Background(), map[string]any{
		"to":      "me@example.com",
		"subject": "Job match",
		"body":    "Acme looks promising",
		"attachments": []any{
			"https://example.com/listing",
			map[string]any{"type": "reference", "value": "doc-123"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"me@example.com"}, payload["to"])
	require.Equal(t, "Job match", payload["subject"])
	require.Empty(t, mailer.sent, "prepare must not send")

	attachments, ok := payload["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 2)
	first := attachments[0].(map[string]any)
	require.Equal(t, undertow.AttachmentTypeURL, first["type"])
}

func TestEmailToolCallSends(t *testing.T) {
	mailer := &fakeMailer{}
	tool := NewEmailTool(mailer)

	result, err := tool.Call(context.Background(), map[string]any{
		"to":      []any{"a@example.com", "b@example.com"},
		"subject": "hello",
		"body":    "text",
	})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.sent[0].To)

	out := result.(map[string]any)
	require.Equal(t, true, out["sent"])
}

func TestEmailToolValidation(t *testing.T) {
	tool := NewEmailTool(&fakeMailer{})
	ctx := context.Background()

	_, err := tool.Prepare(ctx, map[string]any{"subject": "x"})
	require.Error(t, err, "missing recipient")

	_, err = tool.Prepare(ctx, map[string]any{"to": "not-an-address", "subject": "x"})
	require.Error(t, err, "invalid recipient")

	_, err = tool.Prepare(ctx, map[string]any{"to": "me@example.com"})
	require.Error(t, err, "missing subject")
}

func TestWaitTool(t *testing.T) {
	tool := NewWaitTool(WaitToolOptions{})

	result, err := tool.Call(context.Background(), map[string]any{"seconds": 0.01})
	require.NoError(t, err)
	out := result.(map[string]any)
	require.Equal(t, 0.01, out["waited_seconds"])

	_, err = tool.Call(context.Background(), map[string]any{"seconds": -1})
	require.Error(t, err)

	_, err = tool.Call(context.Background(), map[string]any{"seconds": 100000})
	require.Error(t, err)
}
