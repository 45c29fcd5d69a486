package reporter

import (
	"context"
	"testing"
	"time"

	"github.com/deepnoodle-ai/undertow"
	"github.com/stretchr/testify/require"
)

func reporters(t *testing.T) map[string]undertow.StatusReporter {
	t.Helper()
	return map[string]undertow.StatusReporter{
		"memory": NewMemoryReporter(),
		"file":   NewFileReporter(t.TempDir()),
	}
}

func TestAppendAndLatest(t *testing.T) {
	for name, r := range reporters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			latest, err := r.Latest(ctx, "sess_1")
			require.NoError(t, err)
			require.Nil(t, latest)

			require.NoError(t, r.Append(ctx, "sess_1", "step 1 started"))
			require.NoError(t, r.Append(ctx, "sess_1", "step 1 completed"))
			require.NoError(t, r.Append(ctx, "sess_2", "other session"))

			latest, err = r.Latest(ctx, "sess_1")
			require.NoError(t, err)
			require.NotNil(t, latest)
			require.Equal(t, "step 1 completed", latest.Message)
			require.Equal(t, "sess_1", latest.SessionID)
		})
	}
}

func TestSinceCursor(t *testing.T) {
	for name, r := range reporters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Append(ctx, "sess_1", "first"))

			latest, err := r.Latest(ctx, "sess_1")
			require.NoError(t, err)
			cursor := latest.Timestamp

			time.Sleep(5 * time.Millisecond)
			require.NoError(t, r.Append(ctx, "sess_1", "second"))
			require.NoError(t, r.Append(ctx, "sess_1", "third"))

			updates, err := r.Since(ctx, "sess_1", cursor)
			require.NoError(t, err)
			require.Len(t, updates, 2)
			require.Equal(t, "second", updates[0].Message)
			require.Equal(t, "third", updates[1].Message)
		})
	}
}

func TestClear(t *testing.T) {
	for name, r := range reporters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Append(ctx, "sess_1", "message"))
			require.NoError(t, r.Clear(ctx, "sess_1"))

			latest, err := r.Latest(ctx, "sess_1")
			require.NoError(t, err)
			require.Nil(t, latest)

			// Clearing an unknown session is not an error
			require.NoError(t, r.Clear(ctx, "sess_9"))
		})
	}
}
