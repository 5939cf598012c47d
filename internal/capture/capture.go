// Package capture runs portal captures end to end: it opens one session, lists
// records, resolves the cases they belong to, fetches complementary data and
// persists everything with the run's own log collector.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/pje-capture/internal/cache"
	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/complementary"
	"github.com/JustJay7/pje-capture/internal/config"
	"github.com/JustJay7/pje-capture/internal/credentials"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/persistence"
	"github.com/JustJay7/pje-capture/internal/resolvers"
	"github.com/JustJay7/pje-capture/internal/storage/objectstore"
	"github.com/JustJay7/pje-capture/internal/storage/rawlog"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"gorm.io/gorm"
)

// Capture types, as used by the API and the CaptureLog rows
const (
	TypeGeneral  = "acervo_geral"
	TypeArchived = "arquivados"
	TypeHearings = "audiencias"
	TypePending  = "pendentes"
	TypeExams    = "pericias"
	TypeCombined = "combinada"
)

// Types lists every capture type in a stable order
var Types = []string{TypeGeneral, TypeArchived, TypeHearings, TypePending, TypeExams, TypeCombined}

var ErrUnknownType = errors.New("unknown capture type")

type State string

const (
	StateAuthenticating         State = "authenticating"
	StateFetchingLists          State = "fetching_lists"
	StateResolvingCaseOwnership State = "resolving_case_ownership"
	StateFetchingComplementary  State = "fetching_complementary"
	StatePersistingCases        State = "persisting_cases"
	StatePersistingDependents   State = "persisting_dependents"
	StateFinalizing             State = "finalizing"
	StateClosed                 State = "closed"
)

// Clock returns the current time
type Clock func() time.Time

// Params are the type specific options of a capture request
type Params struct {
	// From and To bound the hearing agenda; zero values use the defaults of each type
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
	// HearingStatus restricts a hearings capture to one status code (M, F or C)
	HearingStatus string `json:"hearing_status,omitempty"`
	// DeadlineFilters restricts a pending filings capture (N, I)
	DeadlineFilters []string `json:"deadline_filters,omitempty"`
	SkipTimeline    bool     `json:"skip_timeline,omitempty"`
	SkipParties     bool     `json:"skip_parties,omitempty"`
}

type Request struct {
	CredentialID uint   `json:"credential_id"`
	CourtID      uint   `json:"court_id"`
	LogID        uint   `json:"log_id,omitempty"`
	Params       Params `json:"params"`
}

// Result is what a run reports back to its caller and stores in its CaptureLog
type Result struct {
	RunID         string                       `json:"run_id"`
	LogID         uint                         `json:"log_id"`
	Type          string                       `json:"type"`
	Court         string                       `json:"court"`
	Instance      string                       `json:"instance"`
	Raw           map[string]int               `json:"raw"`
	Persistence   map[string]capturelog.Counts `json:"persistence"`
	Totals        capturelog.Counts            `json:"totals"`
	Complementary *complementary.Summary       `json:"complementary,omitempty"`
	States        []State                      `json:"states"`
	Log           []capturelog.Entry           `json:"log"`
	Error         string                       `json:"error,omitempty"`
}

// Deps are the collaborators of a Service
type Deps struct {
	DB       *gorm.DB
	Registry *driver.Registry
	Lookup   credentials.Lookup
	RawLogs  rawlog.Store
	// Uploader is optional; without it documents are not downloaded
	Uploader objectstore.Uploader
	Logger   *logger.Logger
	Policy   config.CapturePolicy
	Clock    Clock
	Sleep    driver.SleepFunc
}

type Service struct {
	db       *gorm.DB
	registry *driver.Registry
	lookup   credentials.Lookup
	rawLogs  rawlog.Store
	uploader objectstore.Uploader
	log      *logger.Logger
	policy   config.CapturePolicy
	clock    Clock
	sleep    driver.SleepFunc

	logs      *capturelog.Service
	cases     *persistence.Cases
	hearings  *persistence.Hearings
	pending   *persistence.PendingFilings
	exams     *persistence.ExpertExams
	timelines *persistence.Timelines
	parties   *persistence.Parties
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Sleep == nil {
		d.Sleep = driver.Sleep
	}
	if d.RawLogs == nil {
		d.RawLogs = rawlog.NewDBStore(d.DB)
	}
	if d.Lookup == nil {
		d.Lookup = credentials.NewRepository(d.DB)
	}
	return &Service{
		db:        d.DB,
		registry:  d.Registry,
		lookup:    d.Lookup,
		rawLogs:   d.RawLogs,
		uploader:  d.Uploader,
		log:       d.Logger,
		policy:    d.Policy,
		clock:     d.Clock,
		sleep:     d.Sleep,
		logs:      capturelog.NewService(d.DB, d.Logger),
		cases:     persistence.NewCases(d.DB),
		hearings:  persistence.NewHearings(d.DB),
		pending:   persistence.NewPendingFilings(d.DB),
		exams:     persistence.NewExpertExams(d.DB),
		timelines: persistence.NewTimelines(d.DB),
		parties:   persistence.NewParties(d.DB),
	}
}

// Logs exposes the CaptureLog service used by the runs
func (s *Service) Logs() *capturelog.Service { return s.logs }

// Prepare creates the pending CaptureLog of a run that will be executed later
func (s *Service) Prepare(ctx context.Context, captureType string, req Request) (*database.CaptureLog, error) {
	if !ValidType(captureType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, captureType)
	}
	return s.logs.Create(ctx, capturelog.StartRequest{
		Type:          captureType,
		CredentialIDs: []uint{req.CredentialID},
		CourtID:       req.CourtID,
	})
}

func ValidType(t string) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Run dispatches a request to the orchestrator of captureType
func (s *Service) Run(ctx context.Context, captureType string, req Request) (*Result, error) {
	switch captureType {
	case TypeGeneral:
		return s.CaptureCases(ctx, driver.OriginGeneral, req)
	case TypeArchived:
		return s.CaptureCases(ctx, driver.OriginArchived, req)
	case TypeHearings:
		return s.CaptureHearings(ctx, req)
	case TypePending:
		return s.CapturePendingFilings(ctx, req)
	case TypeExams:
		return s.CaptureExpertExams(ctx, req)
	case TypeCombined:
		return s.CaptureCombined(ctx, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, captureType)
	}
}

// run is the state of one capture; nothing in it is shared with other runs
type run struct {
	svc      *Service
	kind     string
	req      Request
	logID    uint
	cred     driver.Credential
	court    driver.CourtConfig
	owner    driver.Attorney
	log      *logger.Logger
	collect  *capturelog.Collector
	caches   *cache.RunCaches
	persist  *persistence.Run
	result   *Result
	listPace *driver.Pacer
	// failures are list or download errors that belong in the raw log
	failures []rawlog.Entry
}

func (r *run) enter(s State) {
	r.result.States = append(r.result.States, s)
	r.log.Debug("Capture state", "state", string(s))
}

func (r *run) fail(scope string, caseID int64, err error) {
	r.failures = append(r.failures, rawlog.Entry{
		RunID:          r.result.RunID,
		CaptureType:    r.kind,
		Court:          r.court.Code,
		Instance:       r.court.Instance,
		CaseExternalID: caseID,
		Status:         rawlog.StatusError,
		Error:          fmt.Sprintf("%s: %v", scope, err),
		CreatedAt:      r.svc.clock(),
	})
}

// execute loads the run's inputs, opens the session and hands it to body.
// The session is closed on every path, and the CaptureLog always ends completed or failed.
func (s *Service) execute(ctx context.Context, kind string, req Request, body func(ctx context.Context, r *run, sess driver.Session) error) (*Result, error) {
	logRow, err := s.openLog(ctx, kind, req)
	if err != nil {
		return nil, err
	}

	r := &run{
		svc:     s,
		kind:    kind,
		req:     req,
		logID:   logRow.ID,
		log:     s.log.With("run_id", logRow.RunID, "type", kind),
		collect: capturelog.NewCollector(s.clock),
		caches:  cache.NewRunCaches(),
		result: &Result{
			RunID:       logRow.RunID,
			LogID:       logRow.ID,
			Type:        kind,
			Raw:         map[string]int{},
			Persistence: map[string]capturelog.Counts{},
		},
		listPace: driver.NewPacer(s.policy.PanelPageDelay, s.sleep),
	}

	err = s.runSession(ctx, r, body)
	r.enter(StateClosed)

	r.result.Persistence = r.collect.Counts()
	r.result.Totals = r.collect.Totals()
	r.result.Log = r.collect.Entries()

	if err != nil {
		r.result.Error = err.Error()
		r.log.Error("Capture failed", "error", err)
		if ferr := s.logs.Fail(context.WithoutCancel(ctx), r.logID, err); ferr != nil {
			r.log.Error("Failed to mark capture log failed", "error", ferr)
		}
		return r.result, err
	}

	if cerr := s.logs.Complete(context.WithoutCancel(ctx), r.logID, r.result); cerr != nil {
		r.log.Error("Failed to mark capture log completed", "error", cerr)
	}
	r.log.Info("Capture completed",
		"inserted", r.result.Totals.Inserted,
		"updated", r.result.Totals.Updated,
		"unchanged", r.result.Totals.Unchanged,
		"skipped", r.result.Totals.Skipped,
		"errors", r.result.Totals.Errors,
	)
	return r.result, nil
}

func (s *Service) openLog(ctx context.Context, kind string, req Request) (*database.CaptureLog, error) {
	if req.LogID == 0 {
		return s.logs.Start(ctx, capturelog.StartRequest{
			Type:          kind,
			CredentialIDs: []uint{req.CredentialID},
			CourtID:       req.CourtID,
		})
	}
	if err := s.logs.Begin(ctx, req.LogID); err != nil {
		return nil, err
	}
	return s.logs.Get(ctx, req.LogID)
}

func (s *Service) runSession(ctx context.Context, r *run, body func(ctx context.Context, r *run, sess driver.Session) error) error {
	r.enter(StateAuthenticating)

	cred, err := s.lookup.GetCredential(ctx, r.req.CredentialID)
	if err != nil {
		return err
	}
	court, err := s.lookup.GetCourtConfig(ctx, r.req.CourtID)
	if err != nil {
		return err
	}
	r.cred, r.court = *cred, *court
	r.result.Court, r.result.Instance = court.Code, court.Instance
	r.log = r.log.With("court", court.Code, "instance", court.Instance)

	drv, err := s.registry.Resolve(*court)
	if err != nil {
		return err
	}

	return driver.WithSession(ctx, drv, *cred, *court, func(sess driver.Session) error {
		resolve := resolvers.New(s.db, r.caches)
		attorneyID, err := r.attorney(ctx, resolve, sess.Attorney())
		if err != nil {
			return err
		}
		if err := s.logs.SetAttorney(ctx, r.logID, attorneyID); err != nil {
			r.log.Warn("Failed to record attorney on capture log", "error", err)
		}

		r.persist = &persistence.Run{
			Court:      court.Code,
			Instance:   court.Instance,
			AttorneyID: attorneyID,
			Log:        r.collect,
			Resolve:    resolve,
			Logger:     r.log,
			Now:        s.clock,
		}
		return body(ctx, r, sess)
	})
}

// attorney resolves the stored attorney of the session and sets the run owner.
// A session without a tax id falls back to the credential's attorney.
func (r *run) attorney(ctx context.Context, resolve *resolvers.Resolver, a driver.Attorney) (uint, error) {
	if a.TaxID != "" {
		id, err := resolve.Attorney(ctx, a.TaxID, a.Name, a.ExternalID)
		if err != nil {
			return 0, fmt.Errorf("resolve attorney: %w", err)
		}
		r.owner = a
		return id, nil
	}

	if r.cred.AttorneyID == 0 {
		return 0, &driver.AuthenticationError{Court: r.court.Code, Err: errors.New("session did not identify the attorney")}
	}
	var stored database.Attorney
	if err := r.svc.db.WithContext(ctx).First(&stored, r.cred.AttorneyID).Error; err != nil {
		return 0, fmt.Errorf("load credential attorney %d: %w", r.cred.AttorneyID, err)
	}
	r.owner = driver.Attorney{ExternalID: stored.ExternalID, TaxID: stored.TaxID, Name: stored.Name}
	if r.owner.Name == "" {
		r.owner.Name = a.Name
	}
	r.log.Info("Session did not expose a tax id, using the credential's attorney", "attorney_id", stored.ID)
	return stored.ID, nil
}
