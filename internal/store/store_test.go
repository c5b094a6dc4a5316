package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomguide/internal/assessment"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSession(id string, state assessment.State) assessment.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return assessment.Session{
		ID:    id,
		State: state,
		Profile: &assessment.UserProfile{
			Age: 34, AgeUnit: assessment.AgeYears, Gender: "female", PrimaryComplaint: "itchy rash",
		},
		Questions: []assessment.Question{
			{ID: "q1", Prompt: "How long?", Options: []string{"<1 day", ">1 day"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := sampleSession("abc", assessment.StateAwaitingQuestions)
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	if diff := cmp.Diff(sess, got); diff != "" {
		t.Errorf("session did not round-trip (-want +got):\n%s", diff)
	}
}

func TestSaveIsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess := sampleSession("abc", assessment.StateAwaitingImage)
	require.NoError(t, s.Save(ctx, sess))

	sess.State = assessment.StateCompleted
	sess.Generation = 2
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, assessment.StateCompleted, got.State)
	assert.Equal(t, 2, got.Generation)
}

func TestGetUnknownID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, assessment.ErrNotPersisted)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleSession("abc", assessment.StateStart)))
	require.NoError(t, s.Delete(ctx, "abc"))
	_, err := s.Get(ctx, "abc")
	assert.ErrorIs(t, err, assessment.ErrNotPersisted)

	// Unknown IDs delete cleanly.
	assert.NoError(t, s.Delete(ctx, "missing"))
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := sampleSession("a", assessment.StateCompleted)
	a.UpdatedAt = time.Now().Add(-2 * time.Hour).UTC()
	b := sampleSession("b", assessment.StateAwaitingImage)
	b.UpdatedAt = time.Now().Add(-1 * time.Hour).UTC()
	c := sampleSession("c", assessment.StateCompleted)
	c.UpdatedAt = time.Now().UTC()
	for _, sess := range []assessment.Session{a, b, c} {
		require.NoError(t, s.Save(ctx, sess))
	}

	t.Run("AllMostRecentFirst", func(t *testing.T) {
		got, err := s.List(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "c", got[0].ID)
		assert.Equal(t, "a", got[2].ID)
	})

	t.Run("FilteredByState", func(t *testing.T) {
		got, err := s.List(ctx, assessment.StateCompleted, 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("Limited", func(t *testing.T) {
		got, err := s.List(ctx, "", 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c", got[0].ID)
	})
}

func TestPurgeOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := sampleSession("old", assessment.StateCompleted)
	old.UpdatedAt = time.Now().Add(-48 * time.Hour).UTC()
	fresh := sampleSession("fresh", assessment.StateCompleted)
	fresh.UpdatedAt = time.Now().UTC()
	require.NoError(t, s.Save(ctx, old))
	require.NoError(t, s.Save(ctx, fresh))

	n, err := s.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, assessment.ErrNotPersisted)
	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}
