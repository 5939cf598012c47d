package complementary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/driver/drivertest"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type staticFreshness map[int64]time.Time

func (s staticFreshness) LastUpdated(ctx context.Context, ids []int64) (map[int64]time.Time, error) {
	out := map[int64]time.Time{}
	for _, id := range ids {
		if t, ok := s[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func openSession(t *testing.T, p *drivertest.Portal) driver.Session {
	t.Helper()
	sess, err := p.Open(context.Background(), driver.Credential{}, driver.CourtConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func testOptions(s *recordingSleep) Options {
	opts := DefaultOptions()
	opts.Sleep = s.sleep
	opts.Now = func() time.Time { return now }
	return opts
}

func TestStalenessBoundary(t *testing.T) {
	portal := drivertest.NewPortal()
	fresh := staticFreshness{
		1: now.Add(-(23*time.Hour + 59*time.Minute)),
		2: now.Add(-(24*time.Hour + time.Minute)),
		3: now.Add(-24 * time.Hour),
	}

	s := &recordingSleep{}
	res, err := New(fresh, nil).Resolve(context.Background(), openSession(t, portal), []int64{1, 2, 3, 4}, testOptions(s), nil)
	require.NoError(t, err)

	require.Equal(t, Summary{TotalCases: 4, Skipped: 1, Fetched: 3}, res.Summary)
	require.Equal(t, []int64{2, 3, 4}, res.Order)
	require.NotContains(t, res.ByCase, int64(1))
	require.Zero(t, portal.CountCalls("timeline:1"))
	require.Equal(t, 1, portal.CountCalls("timeline:2"))
	require.Equal(t, 1, portal.CountCalls("parties:3"))
}

func TestFetchFailuresContinue(t *testing.T) {
	portal := drivertest.NewPortal()
	portal.Timelines[1] = []driver.TimelineItem{{ID: 9, Title: "Petição"}}
	portal.Parties[1] = []driver.Party{{ID: 5, Name: "Fulano"}}
	portal.TimelineErr[2] = errors.New("boom")
	portal.PartiesErr[3] = &driver.ValidationError{Endpoint: "partes", Status: 400}

	s := &recordingSleep{}
	res, err := New(nil, nil).Resolve(context.Background(), openSession(t, portal), []int64{1, 2, 3}, testOptions(s), nil)
	require.NoError(t, err)
	require.Equal(t, Summary{TotalCases: 3, Fetched: 1, Errors: 2}, res.Summary)

	one := res.ByCase[1]
	require.Len(t, one.Timeline, 1)
	require.Len(t, one.Parties, 1)
	require.JSONEq(t, `{"partes":[{"idParte":5,"idPessoa":0,"nome":"Fulano","tipoParte":"","polo":"","principal":false,"tipoDocumento":"","numeroDocumento":"","representantes":null}]}`, string(one.RawParties))
	require.NotEmpty(t, one.RawTimeline)

	// the failed timeline does not stop the party fetch of the same case
	require.Len(t, res.ByCase[2].Errs, 1)
	require.Equal(t, 1, portal.CountCalls("parties:2"))
	require.True(t, res.ByCase[3].Failed())

	// six requests, paced after the first
	require.Len(t, s.waits, 5)
	for _, w := range s.waits {
		require.Equal(t, DefaultDelay, w)
	}
}

func TestFatalErrorStops(t *testing.T) {
	portal := drivertest.NewPortal()
	portal.TimelineErr[2] = &driver.AuthenticationError{Err: errors.New("session expired")}

	s := &recordingSleep{}
	res, err := New(nil, nil).Resolve(context.Background(), openSession(t, portal), []int64{1, 2, 3}, testOptions(s), nil)
	require.Error(t, err)
	require.True(t, driver.IsFatal(err))
	require.Equal(t, 1, res.Summary.Fetched)
	require.Equal(t, 1, res.Summary.Errors)
	require.Zero(t, portal.CountCalls("timeline:3"))
}

func TestProgressCadence(t *testing.T) {
	portal := drivertest.NewPortal()
	ids := make([]int64, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	opts := testOptions(&recordingSleep{})
	opts.Parties = false
	opts.ProgressEvery = 5

	var seen []int
	res, err := New(nil, nil).Resolve(context.Background(), openSession(t, portal), ids, opts, func(p Progress) {
		require.Equal(t, 12, p.Total)
		seen = append(seen, p.Index)
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 5, 10, 12}, seen)
	require.Equal(t, 12, res.Summary.Fetched)
	require.Zero(t, portal.CountCalls("parties:1"))
}

func TestNothingRequested(t *testing.T) {
	portal := drivertest.NewPortal()
	opts := testOptions(&recordingSleep{})
	opts.Timeline, opts.Parties = false, false

	res, err := New(nil, nil).Resolve(context.Background(), openSession(t, portal), []int64{1, 2}, opts, nil)
	require.NoError(t, err)
	require.Equal(t, Summary{TotalCases: 2, Skipped: 2}, res.Summary)
	require.Equal(t, []string{"open"}, portal.Calls)
}
