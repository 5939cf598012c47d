package capturelog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestCollectorCounts(t *testing.T) {
	c := NewCollector(fixedClock)
	c.Inserted("cases", "10")
	c.Unchanged("cases", "20")
	c.Updated("hearings", "5", []string{"status"})
	c.Skipped("hearings", "6", "case not resolved")
	c.Error("expert_exams", "7", errors.New("referential gap"))

	counts := c.Counts()
	require.Equal(t, Counts{Inserted: 1, Unchanged: 1}, counts["cases"])
	require.Equal(t, Counts{Updated: 1, Skipped: 1}, counts["hearings"])
	require.Equal(t, Counts{Errors: 1}, counts["expert_exams"])
	require.Equal(t, Counts{Inserted: 1, Updated: 1, Unchanged: 1, Skipped: 1, Errors: 1}, c.Totals())
	require.Equal(t, 5, c.Totals().Total())

	entries := c.Entries()
	require.Len(t, entries, 5)
	require.Equal(t, []string{"status"}, entries[2].Fields)
	require.Equal(t, "referential gap", entries[4].Error)
	require.Equal(t, fixedClock(), entries[0].Time)

	require.Len(t, c.Since(3), 2)
	require.Nil(t, c.Since(10))

	require.Equal(t, c.Totals(), c.Flush(logger.NewNop()))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector(nil)
	b := NewCollector(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); a.Inserted("cases", "x") }()
		go func() { defer wg.Done(); b.Error("cases", "y", nil) }()
	}
	wg.Wait()

	require.Equal(t, Counts{Inserted: 50}, a.Totals())
	require.Equal(t, Counts{Errors: 50}, b.Totals())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	s := NewService(db, logger.NewNop())
	s.now = fixedClock
	return s
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	row, err := s.Start(ctx, StartRequest{Type: "combinada", AttorneyID: 3, CredentialIDs: []uint{4, 5}, CourtID: 1})
	require.NoError(t, err)
	require.NotEmpty(t, row.RunID)
	require.Equal(t, database.CaptureStatusInProgress, row.Status)
	require.Equal(t, "4,5", row.CredentialIDs)
	require.NotNil(t, row.StartedAt)

	require.NoError(t, s.Complete(ctx, row.ID, map[string]int{"inserted": 2}))
	got, err := s.Get(ctx, row.ID)
	require.NoError(t, err)
	require.Equal(t, database.CaptureStatusCompleted, got.Status)
	require.JSONEq(t, `{"inserted":2}`, got.Result)
	require.NotNil(t, got.FinishedAt)

	other, err := s.Create(ctx, StartRequest{Type: "audiencias"})
	require.NoError(t, err)
	require.Equal(t, database.CaptureStatusPending, other.Status)
	require.NotEqual(t, row.RunID, other.RunID)

	require.NoError(t, s.Fail(ctx, other.ID, errors.New("authentication failed")))
	got, err = s.Get(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, database.CaptureStatusFailed, got.Status)
	require.Equal(t, "authentication failed", got.ErrorText)

	_, err = s.Get(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Fail(ctx, 999, nil), ErrNotFound)
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	for _, typ := range []string{"audiencias", "pericias", "audiencias"} {
		_, err := s.Create(ctx, StartRequest{Type: typ})
		require.NoError(t, err)
	}

	rows, total, err := s.List(ctx, ListFilter{Type: "audiencias"})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, rows, 2)
	require.Greater(t, rows[0].ID, rows[1].ID)

	rows, total, err = s.List(ctx, ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, rows, 1)
}
