// Package drivertest provides an in-memory portal implementing driver.Driver for tests.
package drivertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JustJay7/pje-capture/internal/driver"
)

// Portal is a scripted portal. Lists are paged with PageSize records per page.
type Portal struct {
	mu sync.Mutex

	Attorney  driver.Attorney
	PageSize  int
	Cases     map[string][]driver.CaseSummary
	Hearings  map[string][]driver.Hearing
	Pending   map[string][]driver.PendingFiling
	Exams     []driver.ExpertExam
	Timelines map[int64][]driver.TimelineItem
	Parties   map[int64][]driver.Party
	Documents map[int64]*driver.Document

	OpenErr     error
	ListErr     map[string]error
	TimelineErr map[int64]error
	PartiesErr  map[int64]error

	Calls  []string
	Opened int
	Closed int
}

func NewPortal() *Portal {
	return &Portal{
		Attorney:    driver.Attorney{ExternalID: "77", TaxID: "123.456.789-01", Name: "Dra. Teste"},
		PageSize:    2,
		Cases:       map[string][]driver.CaseSummary{},
		Hearings:    map[string][]driver.Hearing{},
		Pending:     map[string][]driver.PendingFiling{},
		Timelines:   map[int64][]driver.TimelineItem{},
		Parties:     map[int64][]driver.Party{},
		Documents:   map[int64]*driver.Document{},
		ListErr:     map[string]error{},
		TimelineErr: map[int64]error{},
		PartiesErr:  map[int64]error{},
	}
}

// Constructor lets the portal be registered in a driver.Registry
func (p *Portal) Constructor() driver.Constructor {
	return func(driver.CourtConfig) (driver.Driver, error) { return p, nil }
}

func (p *Portal) Open(ctx context.Context, cred driver.Credential, court driver.CourtConfig) (driver.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, "open")
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	p.Opened++
	return &session{portal: p}, nil
}

// CountCalls returns how many recorded calls equal name
func (p *Portal) CountCalls(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (p *Portal) record(call string) {
	p.mu.Lock()
	p.Calls = append(p.Calls, call)
	p.mu.Unlock()
}

type session struct {
	portal *Portal
}

func paginate[T any](records []T, page, size int) driver.Page[T] {
	if size <= 0 {
		size = len(records)
		if size == 0 {
			size = 1
		}
	}
	total := (len(records) + size - 1) / size
	start := (page - 1) * size
	end := start + size
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}
	return driver.Page[T]{
		Number:       page,
		Size:         size,
		TotalPages:   total,
		TotalRecords: len(records),
		Records:      records[start:end],
	}
}

func (s *session) Attorney() driver.Attorney { return s.portal.Attorney }

func (s *session) ListCases(ctx context.Context, filter driver.CaseListFilter, page int) (driver.Page[driver.CaseSummary], error) {
	key := "cases:" + filter.Origin
	s.portal.record(fmt.Sprintf("%s:%d", key, page))
	if err := s.portal.ListErr[key]; err != nil {
		return driver.Page[driver.CaseSummary]{}, err
	}
	return paginate(s.portal.Cases[filter.Origin], page, s.portal.PageSize), nil
}

func (s *session) ListHearings(ctx context.Context, filter driver.HearingFilter, page int) (driver.Page[driver.Hearing], error) {
	key := "hearings:" + filter.Status
	s.portal.record(fmt.Sprintf("%s:%d", key, page))
	if err := s.portal.ListErr[key]; err != nil {
		return driver.Page[driver.Hearing]{}, err
	}
	return paginate(s.portal.Hearings[filter.Status], page, s.portal.PageSize), nil
}

func (s *session) ListPendingFilings(ctx context.Context, filter driver.PendingFilter, page int) (driver.Page[driver.PendingFiling], error) {
	key := "pending:" + filter.DeadlineFilter
	s.portal.record(fmt.Sprintf("%s:%d", key, page))
	if err := s.portal.ListErr[key]; err != nil {
		return driver.Page[driver.PendingFiling]{}, err
	}
	return paginate(s.portal.Pending[filter.DeadlineFilter], page, s.portal.PageSize), nil
}

func (s *session) ListExpertExams(ctx context.Context, page int) (driver.Page[driver.ExpertExam], error) {
	s.portal.record(fmt.Sprintf("exams:%d", page))
	if err := s.portal.ListErr["exams"]; err != nil {
		return driver.Page[driver.ExpertExam]{}, err
	}
	return paginate(s.portal.Exams, page, s.portal.PageSize), nil
}

func (s *session) ListTimeline(ctx context.Context, caseID int64) ([]driver.TimelineItem, error) {
	s.portal.record(fmt.Sprintf("timeline:%d", caseID))
	if err := s.portal.TimelineErr[caseID]; err != nil {
		return nil, err
	}
	return s.portal.Timelines[caseID], nil
}

func (s *session) ListParties(ctx context.Context, caseID int64) (*driver.PartiesPayload, error) {
	s.portal.record(fmt.Sprintf("parties:%d", caseID))
	if err := s.portal.PartiesErr[caseID]; err != nil {
		return nil, err
	}
	parties := s.portal.Parties[caseID]
	raw, err := json.Marshal(map[string]any{"partes": parties})
	if err != nil {
		return nil, err
	}
	return &driver.PartiesPayload{Parties: parties, Raw: raw}, nil
}

func (s *session) DownloadDocument(ctx context.Context, caseID, documentID int64) (*driver.Document, error) {
	s.portal.record(fmt.Sprintf("document:%d:%d", caseID, documentID))
	doc, ok := s.portal.Documents[documentID]
	if !ok {
		return nil, fmt.Errorf("document %d not found", documentID)
	}
	return doc, nil
}

func (s *session) Close() error {
	s.portal.mu.Lock()
	defer s.portal.mu.Unlock()

	s.portal.Calls = append(s.portal.Calls, "close")
	s.portal.Closed++
	return nil
}
