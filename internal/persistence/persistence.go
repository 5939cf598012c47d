// Package persistence stores captured portal records with compare-before-write:
// a record is inserted when new, updated when any field differs (the previous
// values are kept in previous_values) and left untouched otherwise.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/diff"
	"github.com/JustJay7/pje-capture/internal/resolvers"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"gorm.io/gorm"
)

// Entity names used in the run log
const (
	EntityCases           = "cases"
	EntityHearings        = "hearings"
	EntityPendingFilings  = "pending_filings"
	EntityExpertExams     = "expert_exams"
	EntityTimelines       = "timelines"
	EntityParties         = "parties"
	EntityRepresentatives = "party_representatives"
	EntityCaseParties     = "case_parties"
)

// ErrReferentialGap means a record's owning case could not be resolved
var ErrReferentialGap = errors.New("owning case not resolved")

// Error is a per-record persistence failure
type Error struct {
	Entity string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Entity, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run carries everything a writer needs from the capture run it works for
type Run struct {
	Court      string
	Instance   string
	AttorneyID uint
	Log        *capturelog.Collector
	Resolve    *resolvers.Resolver
	Logger     *logger.Logger
	Now        func() time.Time
}

func (r *Run) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Run) logger() *logger.Logger {
	if r.Logger == nil {
		return logger.NewNop()
	}
	return r.Logger
}

// Result is the outcome breakdown of one writer call
type Result struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Total     int `json:"total"`
}

func (r *Result) add(o capturelog.Outcome) {
	r.Total++
	switch o {
	case capturelog.OutcomeInserted:
		r.Inserted++
	case capturelog.OutcomeUpdated:
		r.Updated++
	case capturelog.OutcomeUnchanged:
		r.Unchanged++
	case capturelog.OutcomeSkipped:
		r.Skipped++
	case capturelog.OutcomeError:
		r.Errors++
	}
}

// Merge adds another result into r
func (r *Result) Merge(o Result) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Skipped += o.Skipped
	r.Errors += o.Errors
	r.Total += o.Total
}

// StoredDocument is a downloaded document already placed in the object store
type StoredDocument struct {
	DocumentID int64
	Name       string
	Key        string
	URL        string
}

type fieldComparer interface {
	CompareFields() map[string]any
}

// upsert writes row under its natural key and records the outcome in the run log.
// merge, when set, may copy stored values into row before comparing.
func upsert[T any, PT interface {
	*T
	fieldComparer
}](ctx context.Context, db *gorm.DB, run *Run, entity, key string, where map[string]any, row PT, idOf func(PT) uint, merge func(row, stored PT)) (uint, capturelog.Outcome, error) {
	fail := func(err error) (uint, capturelog.Outcome, error) {
		perr := &Error{Entity: entity, Key: key, Err: err}
		run.Log.Error(entity, key, perr)
		return 0, capturelog.OutcomeError, perr
	}

	var stored T
	err := db.WithContext(ctx).Where(where).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := db.WithContext(ctx).Create(row).Error; err != nil {
			return fail(err)
		}
		run.Log.Inserted(entity, key)
		return idOf(row), capturelog.OutcomeInserted, nil
	}
	if err != nil {
		return fail(err)
	}

	storedPtr := PT(&stored)
	if merge != nil {
		merge(row, storedPtr)
	}

	newFields := row.CompareFields()
	oldFields := storedPtr.CompareFields()
	cmp := diff.Compare(newFields, oldFields)
	if cmp.Identical {
		run.Log.Unchanged(entity, key)
		return idOf(storedPtr), capturelog.OutcomeUnchanged, nil
	}

	previous, err := json.Marshal(diff.Snapshot(oldFields, cmp.ChangedFields))
	if err != nil {
		return fail(err)
	}
	updates := make(map[string]any, len(cmp.ChangedFields)+1)
	for _, f := range cmp.ChangedFields {
		updates[f] = newFields[f]
	}
	updates["previous_values"] = string(previous)

	if err := db.WithContext(ctx).Model(storedPtr).Updates(updates).Error; err != nil {
		return fail(err)
	}
	run.Log.Updated(entity, key, cmp.ChangedFields)
	return idOf(storedPtr), capturelog.OutcomeUpdated, nil
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

func optionalInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
