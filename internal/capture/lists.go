package capture

import (
	"context"
	"time"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
)

// lists is everything a run pulled from the portal listings
type lists struct {
	panel    map[int64]panelCase
	order    []int64
	hearings []driver.Hearing
	realized map[int64]bool
	pending  []driver.PendingFiling
	exams    []driver.ExpertExam
}

type panelCase struct {
	summary driver.CaseSummary
	origin  string
}

func newLists() *lists {
	return &lists{panel: map[int64]panelCase{}, realized: map[int64]bool{}}
}

func (l *lists) addPanel(records []driver.CaseSummary, origin string) {
	for _, rec := range records {
		if _, ok := l.panel[rec.ID]; ok {
			continue
		}
		l.panel[rec.ID] = panelCase{summary: rec, origin: origin}
		l.order = append(l.order, rec.ID)
	}
}

// caseIDs returns the unique case ids referenced by every list, in first-seen order
func (l *lists) caseIDs() []int64 {
	hearings := make([]int64, len(l.hearings))
	for i, h := range l.hearings {
		hearings[i] = h.OwnerID()
	}
	pending := make([]int64, len(l.pending))
	for i, p := range l.pending {
		pending[i] = p.CaseID
	}
	exams := make([]int64, len(l.exams))
	for i, e := range l.exams {
		exams[i] = e.CaseID
	}
	return driver.UniqueCaseIDs(l.order, hearings, pending, exams)
}

// caseNumbers maps case ids to the first case number any list reported for them
func (l *lists) caseNumbers() map[int64]string {
	out := map[int64]string{}
	set := func(id int64, number string) {
		if id == 0 || number == "" {
			return
		}
		if _, ok := out[id]; !ok {
			out[id] = number
		}
	}
	for id, p := range l.panel {
		set(id, p.summary.CaseNumber)
	}
	for _, h := range l.hearings {
		set(h.OwnerID(), h.Number())
	}
	for _, p := range l.pending {
		set(p.CaseID, p.CaseNumber)
	}
	for _, e := range l.exams {
		set(e.CaseID, e.CaseNumber)
	}
	return out
}

// fetchList pages through one listing with the run's list pacer. Non-fatal
// failures are logged and the records fetched so far are kept.
func fetchList[T any](ctx context.Context, r *run, name string, fetch driver.PageFunc[T]) ([]T, error) {
	records, err := driver.FetchAll(ctx, func(ctx context.Context, page int) (driver.Page[T], error) {
		if err := r.listPace.Wait(ctx); err != nil {
			return driver.Page[T]{}, err
		}
		return fetch(ctx, page)
	}, r.svc.policy.MaxPages)
	if err != nil {
		if driver.IsFatal(err) || ctx.Err() != nil {
			return records, err
		}
		r.log.Warn("Failed to fetch list", "list", name, "fetched", len(records), "error", err)
		r.fail("list "+name, 0, err)
	}
	r.log.Info("Fetched list", "list", name, "records", len(records))
	return records, nil
}

func (r *run) fetchPanel(ctx context.Context, sess driver.Session, l *lists, origin string) error {
	records, err := fetchList[driver.CaseSummary](ctx, r, "cases:"+origin, func(ctx context.Context, page int) (driver.Page[driver.CaseSummary], error) {
		return sess.ListCases(ctx, driver.CaseListFilter{Origin: origin}, page)
	})
	l.addPanel(records, origin)
	r.result.Raw["cases"] += len(records)
	return err
}

func (r *run) fetchHearings(ctx context.Context, sess driver.Session, l *lists, filters []driver.HearingFilter) error {
	for _, f := range filters {
		records, err := fetchList[driver.Hearing](ctx, r, "hearings:"+f.Status, func(ctx context.Context, page int) (driver.Page[driver.Hearing], error) {
			return sess.ListHearings(ctx, f, page)
		})
		for _, h := range records {
			if f.Status == database.HearingRealized {
				l.realized[h.ID] = true
			}
		}
		l.hearings = append(l.hearings, records...)
		r.result.Raw["hearings"] += len(records)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) fetchPending(ctx context.Context, sess driver.Session, l *lists, filters []string) error {
	for _, code := range filters {
		filter := driver.PendingFilter{DeadlineFilter: code}
		records, err := fetchList[driver.PendingFiling](ctx, r, "pending:"+code, func(ctx context.Context, page int) (driver.Page[driver.PendingFiling], error) {
			return sess.ListPendingFilings(ctx, filter, page)
		})
		for i := range records {
			if records[i].DeadlineFilter == "" {
				records[i].DeadlineFilter = code
			}
		}
		l.pending = append(l.pending, records...)
		r.result.Raw["pending_filings"] += len(records)
		if err != nil {
			return err
		}
	}
	return nil
}

// fetchExams lists expert exams; the listing only exists on first instance courts
func (r *run) fetchExams(ctx context.Context, sess driver.Session, l *lists) error {
	if r.court.Instance != driver.FirstInstance {
		r.log.Warn("Expert exams are only listed on first instance courts, skipping")
		return nil
	}
	records, err := fetchList[driver.ExpertExam](ctx, r, "exams", sess.ListExpertExams)
	l.exams = append(l.exams, records...)
	r.result.Raw["expert_exams"] += len(records)
	return err
}

// day truncates t to midnight in the portal's zone
func day(t time.Time) time.Time {
	t = t.In(driver.PortalLocation())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// combinedHearingFilters covers designated and cancelled hearings for the next
// year plus the hearings realized yesterday
func combinedHearingFilters(now time.Time) []driver.HearingFilter {
	today := day(now)
	nextYear := today.AddDate(1, 0, 0)
	yesterday := today.AddDate(0, 0, -1)
	return []driver.HearingFilter{
		{From: today, To: nextYear, Status: database.HearingDesignated},
		{From: yesterday, To: yesterday, Status: database.HearingRealized},
		{From: today, To: nextYear, Status: database.HearingCancelled},
	}
}

func hearingFilters(p Params, now time.Time) []driver.HearingFilter {
	status := p.HearingStatus
	if status == "" {
		status = database.HearingDesignated
	}

	today := day(now)
	from, to := p.From, p.To
	if from.IsZero() {
		from = today
		if status == database.HearingRealized {
			from = today.AddDate(0, 0, -1)
		}
	}
	if to.IsZero() {
		to = from.AddDate(1, 0, 0)
		if status == database.HearingRealized {
			to = from
		}
	}
	return []driver.HearingFilter{{From: day(from), To: day(to), Status: status}}
}

func pendingFilters(p Params) []string {
	if len(p.DeadlineFilters) > 0 {
		return p.DeadlineFilters
	}
	return []string{driver.DeadlineNone, driver.DeadlineWithout}
}
