// Package driver defines the uniform contract every court-system driver
// implements, plus the registry that picks a driver for a court.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Driver opens authenticated sessions against one court system
type Driver interface {
	Open(ctx context.Context, cred Credential, court CourtConfig) (Session, error)
}

// Session is a single-use authenticated handle. Close must be called exactly once.
type Session interface {
	Attorney() Attorney
	ListCases(ctx context.Context, filter CaseListFilter, page int) (Page[CaseSummary], error)
	ListHearings(ctx context.Context, filter HearingFilter, page int) (Page[Hearing], error)
	ListPendingFilings(ctx context.Context, filter PendingFilter, page int) (Page[PendingFiling], error)
	ListExpertExams(ctx context.Context, page int) (Page[ExpertExam], error)
	ListTimeline(ctx context.Context, caseID int64) ([]TimelineItem, error)
	ListParties(ctx context.Context, caseID int64) (*PartiesPayload, error)
	DownloadDocument(ctx context.Context, caseID, documentID int64) (*Document, error)
	Close() error
}

var (
	// ErrNotImplemented is wrapped by every unsupported system or court type
	ErrNotImplemented = errors.New("not implemented")
	// ErrNotFoundInPanel means a case could not be located in any case panel
	ErrNotFoundInPanel = errors.New("case not found in panel")
	// ErrDuplicateSystem is returned when a system is registered twice
	ErrDuplicateSystem = errors.New("system already registered")
)

// UnsupportedSystemError is returned for court systems or court types no driver handles
type UnsupportedSystemError struct {
	System    string
	CourtType string
}

func (e *UnsupportedSystemError) Error() string {
	if e.CourtType != "" {
		return fmt.Sprintf("court system %q with court type %q: %v", e.System, e.CourtType, ErrNotImplemented)
	}
	return fmt.Sprintf("court system %q: %v", e.System, ErrNotImplemented)
}

func (e *UnsupportedSystemError) Unwrap() error { return ErrNotImplemented }

// AuthenticationError aborts a run before anything is written
type AuthenticationError struct {
	Court string
	Err   error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Court, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitedError means the portal asked us to slow down; the call may be retried once
type RateLimitedError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s", e.Endpoint)
}

// ValidationError means the portal rejected the call's parameters; it is not retried
type ValidationError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("portal rejected %s with status %d: %s", e.Endpoint, e.Status, e.Body)
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	var auth *AuthenticationError
	return errors.As(err, &auth) || errors.Is(err, ErrNotImplemented)
}

// Constructor builds a driver for one court; it may reject court types it does not handle
type Constructor func(court CourtConfig) (Driver, error)

// Registry maps a court-system tag to the constructor of its driver
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

func systemKey(system string) string {
	return strings.ToLower(strings.TrimSpace(system))
}

// Register adds a constructor for a system tag
func (r *Registry) Register(system string, c Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := systemKey(system)
	if _, exists := r.constructors[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, key)
	}
	r.constructors[key] = c
	return nil
}

// Resolve returns the driver for a court or an *UnsupportedSystemError
func (r *Registry) Resolve(court CourtConfig) (Driver, error) {
	r.mu.RLock()
	c, ok := r.constructors[systemKey(court.System)]
	r.mu.RUnlock()

	if !ok {
		return nil, &UnsupportedSystemError{System: court.System}
	}
	return c(court)
}

// Validate resolves every configured court and reports all failures at once
func (r *Registry) Validate(courts []CourtConfig) error {
	var errs []error
	for _, court := range courts {
		if _, err := r.Resolve(court); err != nil {
			errs = append(errs, fmt.Errorf("court %s (%s): %w", court.Code, court.Instance, err))
		}
	}
	return errors.Join(errs...)
}

// Systems lists the registered system tags
func (r *Registry) Systems() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type onceSession struct {
	Session
	once sync.Once
	err  error
}

func (s *onceSession) Close() error {
	s.once.Do(func() { s.err = s.Session.Close() })
	return s.err
}

// WithSession opens a session, runs fn and closes the session on every exit
// path. A close failure is joined to fn's error.
func WithSession(ctx context.Context, d Driver, cred Credential, court CourtConfig, fn func(Session) error) (err error) {
	s, err := d.Open(ctx, cred, court)
	if err != nil {
		return err
	}

	guarded := &onceSession{Session: s}
	defer func() {
		if cerr := guarded.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", cerr))
		}
	}()

	return fn(guarded)
}
