package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"AIAssist/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sess := session.Session{
		ID:        "s-1",
		PostID:    42,
		Type:      "continue",
		Tone:      "formal",
		Prompt:    "Please continue writing",
		Phase:     session.PhaseSettledError,
		Content:   "partial",
		Error:     "Your request was unclear. Mind trying again?",
		StartTime: start,
		EndTime:   start.Add(3 * time.Second),
	}
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, sess.PostID, got.PostID)
	assert.Equal(t, sess.Type, got.Type)
	assert.Equal(t, sess.Prompt, got.Prompt)
	assert.Equal(t, session.PhaseSettledError, got.Phase)
	assert.Equal(t, sess.Error, got.Error)
	assert.True(t, sess.StartTime.Equal(got.StartTime))
	assert.Equal(t, 3*time.Second, got.Duration())

	// Saving again replaces the row
	sess.Phase = session.PhaseSettledSuccess
	sess.Error = ""
	require.NoError(t, s.Save(ctx, sess))
	got, err = s.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.PhaseSettledSuccess, got.Phase)
	assert.Empty(t, got.Error)

	_, err = s.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Save(ctx, session.Session{
			ID:        id,
			PostID:    1,
			Phase:     session.PhaseSettledSuccess,
			StartTime: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Save(ctx, session.Session{ID: "other", PostID: 2, StartTime: base}))

	recent, err := s.Recent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	none, err := s.Recent(ctx, 99, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCountByPrompt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"first", "retry"} {
		require.NoError(t, s.Save(ctx, session.Session{ID: id, Prompt: "same prompt", StartTime: time.Now()}))
	}
	require.NoError(t, s.Save(ctx, session.Session{ID: "other", Prompt: "different", StartTime: time.Now()}))

	count, err := s.CountByPrompt(ctx, "same prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = s.CountByPrompt(ctx, "never sent")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenRequiresLogger(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), nil)
	assert.Error(t, err)
}
