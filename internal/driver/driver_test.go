package driver_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/driver/drivertest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	reg := driver.NewRegistry()
	portal := drivertest.NewPortal()
	require.NoError(t, reg.Register("PJE", portal.Constructor()))
	require.ErrorIs(t, reg.Register("pje", portal.Constructor()), driver.ErrDuplicateSystem)

	d, err := reg.Resolve(driver.CourtConfig{System: "pje"})
	require.NoError(t, err)
	require.Same(t, portal, d)

	_, err = reg.Resolve(driver.CourtConfig{System: "eproc"})
	var unsupported *driver.UnsupportedSystemError
	require.ErrorAs(t, err, &unsupported)
	require.Equal(t, "eproc", unsupported.System)
	require.ErrorIs(t, err, driver.ErrNotImplemented)
	require.True(t, driver.IsFatal(err))

	err = reg.Validate([]driver.CourtConfig{
		{Code: "TRT3", System: "pje"},
		{Code: "TJSP", System: "esaj"},
	})
	require.ErrorContains(t, err, "TJSP")
	require.NotContains(t, err.Error(), "TRT3")
	require.Equal(t, []string{"pje"}, reg.Systems())
}

type closeCounting struct {
	driver.Session
	closes int
}

func (c *closeCounting) Close() error {
	c.closes++
	return errors.New("browser already gone")
}

type stubDriver struct {
	session driver.Session
	err     error
}

func (s stubDriver) Open(context.Context, driver.Credential, driver.CourtConfig) (driver.Session, error) {
	return s.session, s.err
}

func TestWithSessionClosesExactlyOnce(t *testing.T) {
	inner := &closeCounting{}
	fnErr := errors.New("listing failed")

	err := driver.WithSession(context.Background(), stubDriver{session: inner}, driver.Credential{}, driver.CourtConfig{}, func(s driver.Session) error {
		// closing early inside the scope must not double close
		_ = s.Close()
		return fnErr
	})

	require.Equal(t, 1, inner.closes)
	require.ErrorIs(t, err, fnErr)
	require.ErrorContains(t, err, "browser already gone")
}

func TestWithSessionOpenFailure(t *testing.T) {
	authErr := &driver.AuthenticationError{Court: "TRT3", Err: errors.New("otp rejected")}
	called := false

	err := driver.WithSession(context.Background(), stubDriver{err: authErr}, driver.Credential{}, driver.CourtConfig{}, func(driver.Session) error {
		called = true
		return nil
	})

	require.False(t, called)
	require.True(t, driver.IsFatal(err))
}

func TestFetchAll(t *testing.T) {
	records := []int{1, 2, 3, 4, 5}
	calls := 0
	fetch := func(ctx context.Context, page int) (driver.Page[int], error) {
		calls++
		start := (page - 1) * 2
		end := min(start+2, len(records))
		return driver.Page[int]{Number: page, TotalPages: 3, Records: records[start:end]}, nil
	}

	got, err := driver.FetchAll(context.Background(), fetch, 0)
	require.NoError(t, err)
	require.Equal(t, records, got)
	require.Equal(t, 3, calls)

	calls = 0
	got, err = driver.FetchAll(context.Background(), fetch, 2)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 4}, got)
	require.Equal(t, 2, calls)
}

func TestFetchAllKeepsRecordsOnError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(ctx context.Context, page int) (driver.Page[int], error) {
		if page == 2 {
			return driver.Page[int]{}, boom
		}
		return driver.Page[int]{TotalPages: 5, Records: []int{page}}, nil
	}

	got, err := driver.FetchAll(context.Background(), fetch, 0)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1}, got)
}

func TestUniqueCaseIDs(t *testing.T) {
	a := []int64{10, 10, 20}
	b := []int64{30, 20, 0}
	c := []int64{40, 10}

	got := driver.UniqueCaseIDs(a, b, c)
	if diff := cmp.Diff([]int64{10, 20, 30, 40}, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestPacer(t *testing.T) {
	var slept []time.Duration
	p := driver.NewPacer(300*time.Millisecond, func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	require.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, slept)
}

func TestRetryRateLimited(t *testing.T) {
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	t.Run("retries once then succeeds", func(t *testing.T) {
		slept = nil
		calls := 0
		v, err := driver.RetryRateLimited(context.Background(), time.Second, sleep, func() (string, error) {
			calls++
			if calls == 1 {
				return "", &driver.RateLimitedError{Endpoint: "/timeline"}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		require.Equal(t, "ok", v)
		require.Equal(t, 2, calls)
		require.Equal(t, []time.Duration{time.Second}, slept)
	})

	t.Run("gives up after the second attempt", func(t *testing.T) {
		slept = nil
		calls := 0
		_, err := driver.RetryRateLimited(context.Background(), time.Second, sleep, func() (int, error) {
			calls++
			return 0, &driver.RateLimitedError{Endpoint: "/partes", RetryAfter: 2 * time.Second}
		})
		var limited *driver.RateLimitedError
		require.ErrorAs(t, err, &limited)
		require.Equal(t, 2, calls)
		require.Equal(t, []time.Duration{2 * time.Second}, slept)
	})

	t.Run("validation errors are not retried", func(t *testing.T) {
		calls := 0
		_, err := driver.RetryRateLimited(context.Background(), time.Second, sleep, func() (int, error) {
			calls++
			return 0, &driver.ValidationError{Endpoint: "/pauta", Status: 400}
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})
}

func TestDecodePortalValues(t *testing.T) {
	var rec driver.CaseSummary
	err := json.Unmarshal([]byte(`{
		"id": 10,
		"numeroProcesso": "0001-20",
		"segredoDeJustica": "S",
		"prioridadeProcessual": 1,
		"juizoDigital": true,
		"temAssociacao": null,
		"dataAutuacao": "2024-03-01T10:00:00",
		"dataArquivamento": "2024-03-05T10:00:00Z",
		"dataProximaAudiencia": null
	}`), &rec)
	require.NoError(t, err)

	require.True(t, bool(rec.Secret))
	require.True(t, bool(rec.Priority))
	require.True(t, bool(rec.DigitalVenue))
	require.False(t, bool(rec.HasAssociation))
	require.Equal(t, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), rec.FiledAt.UTC())
	require.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), rec.ArchivedAt.UTC())
	require.Nil(t, rec.NextHearingAt.Ptr())
}
