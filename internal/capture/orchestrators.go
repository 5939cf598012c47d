package capture

import (
	"context"

	"github.com/JustJay7/pje-capture/internal/driver"
)

// CaptureCases captures one of the attorney's case panels (general or archived)
func (s *Service) CaptureCases(ctx context.Context, origin string, req Request) (*Result, error) {
	kind := TypeGeneral
	if origin == driver.OriginArchived {
		kind = TypeArchived
	}
	return s.execute(ctx, kind, req, func(ctx context.Context, r *run, sess driver.Session) error {
		r.enter(StateFetchingLists)
		l := newLists()
		if err := r.fetchPanel(ctx, sess, l, origin); err != nil {
			return err
		}
		return r.process(ctx, sess, l)
	})
}

// CaptureHearings captures the hearing agenda for the requested window and status
func (s *Service) CaptureHearings(ctx context.Context, req Request) (*Result, error) {
	return s.execute(ctx, TypeHearings, req, func(ctx context.Context, r *run, sess driver.Session) error {
		r.enter(StateFetchingLists)
		l := newLists()
		if err := r.fetchHearings(ctx, sess, l, hearingFilters(req.Params, s.clock())); err != nil {
			return err
		}
		return r.process(ctx, sess, l)
	})
}

// CapturePendingFilings captures the pending filings of the requested deadline filters
func (s *Service) CapturePendingFilings(ctx context.Context, req Request) (*Result, error) {
	return s.execute(ctx, TypePending, req, func(ctx context.Context, r *run, sess driver.Session) error {
		r.enter(StateFetchingLists)
		l := newLists()
		if err := r.fetchPending(ctx, sess, l, pendingFilters(req.Params)); err != nil {
			return err
		}
		return r.process(ctx, sess, l)
	})
}

func (s *Service) CaptureExpertExams(ctx context.Context, req Request) (*Result, error) {
	return s.execute(ctx, TypeExams, req, func(ctx context.Context, r *run, sess driver.Session) error {
		r.enter(StateFetchingLists)
		l := newLists()
		if err := r.fetchExams(ctx, sess, l); err != nil {
			return err
		}
		return r.process(ctx, sess, l)
	})
}

// CaptureCombined fetches hearings, pending filings and expert exams in one
// session and processes their cases once
func (s *Service) CaptureCombined(ctx context.Context, req Request) (*Result, error) {
	return s.execute(ctx, TypeCombined, req, func(ctx context.Context, r *run, sess driver.Session) error {
		r.enter(StateFetchingLists)
		l := newLists()
		if err := r.fetchHearings(ctx, sess, l, combinedHearingFilters(s.clock())); err != nil {
			return err
		}
		if err := r.fetchPending(ctx, sess, l, []string{driver.DeadlineNone, driver.DeadlineWithout}); err != nil {
			return err
		}
		if err := r.fetchExams(ctx, sess, l); err != nil {
			return err
		}
		return r.process(ctx, sess, l)
	})
}
