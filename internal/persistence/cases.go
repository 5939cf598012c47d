package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/normalize"
	"gorm.io/gorm"
)

// Cases writes docket entries
type Cases struct {
	db *gorm.DB
}

func NewCases(db *gorm.DB) *Cases {
	return &Cases{db: db}
}

func caseKey(externalID int64, number string) string {
	if number == "" {
		return strconv.FormatInt(externalID, 10)
	}
	return number
}

func caseWhere(run *Run, externalID int64, number string) map[string]any {
	return map[string]any{
		"external_id": externalID,
		"court":       run.Court,
		"instance":    run.Instance,
		"case_number": number,
	}
}

// Save upserts panel records and returns the stored id of every case it could write,
// keyed by the portal's case id
func (c *Cases) Save(ctx context.Context, run *Run, records []driver.CaseSummary, origin string) (map[int64]uint, Result) {
	ids := make(map[int64]uint, len(records))
	var res Result
	for _, rec := range records {
		row := &database.Case{
			ExternalID:     rec.ID,
			Court:          run.Court,
			Instance:       run.Instance,
			CaseNumber:     rec.CaseNumber,
			AttorneyID:     run.AttorneyID,
			Origin:         origin,
			Sequence:       rec.Number,
			CourtDivision:  rec.CourtDivision,
			CaseClass:      rec.CaseClass,
			Secret:         bool(rec.Secret),
			StatusCode:     rec.StatusCode,
			Priority:       bool(rec.Priority),
			PlaintiffName:  rec.PlaintiffName,
			PlaintiffCount: rec.PlaintiffCount,
			DefendantName:  rec.DefendantName,
			DefendantCount: rec.DefendantCount,
			FiledAt:        rec.FiledAt.Ptr(),
			DigitalVenue:   bool(rec.DigitalVenue),
			ArchivedAt:     rec.ArchivedAt.Ptr(),
			NextHearingAt:  rec.NextHearingAt.Ptr(),
			HasAssociation: bool(rec.HasAssociation),
		}
		if row.CaseClass == "" {
			row.CaseClass = database.UnknownClass
		}
		if row.Sequence == 0 {
			row.Sequence = normalize.CaseNumberSequence(rec.CaseNumber)
		}

		key := caseKey(rec.ID, rec.CaseNumber)
		where := caseWhere(run, rec.ID, rec.CaseNumber)
		placeholder, err := c.placeholder(ctx, run, rec.ID)
		if err != nil {
			perr := &Error{Entity: EntityCases, Key: key, Err: err}
			run.Log.Error(EntityCases, key, perr)
			res.add(capturelog.OutcomeError)
			run.logger().Error("Failed to save case", "case", key, "error", err)
			continue
		}
		if placeholder != 0 {
			// upgrade the placeholder in place so its dependents keep pointing at it
			where = map[string]any{"id": placeholder}
		}

		id, outcome, err := upsert(ctx, c.db, run, EntityCases, key, where, row,
			func(r *database.Case) uint { return r.ID }, nil)
		res.add(outcome)
		if err != nil {
			run.logger().Error("Failed to save case", "case", key, "error", err)
			continue
		}
		ids[rec.ID] = id
	}
	return ids, res
}

// placeholder returns the id of the minimal row stored for a portal case, or 0
func (c *Cases) placeholder(ctx context.Context, run *Run, externalID int64) (uint, error) {
	var row database.Case
	err := c.db.WithContext(ctx).
		Select("id").
		Where("external_id = ? AND court = ? AND instance = ? AND minimal = ?", externalID, run.Court, run.Instance, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find placeholder case %d: %w", externalID, err)
	}
	return row.ID, nil
}

// SaveMinimal stores a placeholder for a case known only by id and number.
// An existing row is left as it is.
func (c *Cases) SaveMinimal(ctx context.Context, run *Run, externalID int64, caseNumber string) (uint, capturelog.Outcome, error) {
	key := caseKey(externalID, caseNumber)

	var existing database.Case
	err := c.db.WithContext(ctx).
		Where("external_id = ? AND court = ? AND instance = ?", externalID, run.Court, run.Instance).
		First(&existing).Error
	if err == nil {
		run.Log.Unchanged(EntityCases, key)
		return existing.ID, capturelog.OutcomeUnchanged, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		perr := &Error{Entity: EntityCases, Key: key, Err: err}
		run.Log.Error(EntityCases, key, perr)
		return 0, capturelog.OutcomeError, perr
	}

	filed := run.now()
	row := &database.Case{
		ExternalID: externalID,
		Court:      run.Court,
		Instance:   run.Instance,
		CaseNumber: caseNumber,
		AttorneyID: run.AttorneyID,
		Origin:     database.OriginGeneral,
		Sequence:   normalize.CaseNumberSequence(caseNumber),
		CaseClass:  database.UnknownClass,
		FiledAt:    &filed,
		Minimal:    true,
	}
	if err := c.db.WithContext(ctx).Create(row).Error; err != nil {
		perr := &Error{Entity: EntityCases, Key: key, Err: err}
		run.Log.Error(EntityCases, key, perr)
		return 0, capturelog.OutcomeError, perr
	}
	run.Log.Inserted(EntityCases, key)
	return row.ID, capturelog.OutcomeInserted, nil
}

// Lookup returns the stored ids of the given portal case ids on one court instance
func (c *Cases) Lookup(ctx context.Context, court, instance string, externalIDs []int64) (map[int64]uint, error) {
	found := make(map[int64]uint, len(externalIDs))
	if len(externalIDs) == 0 {
		return found, nil
	}

	var rows []database.Case
	err := c.db.WithContext(ctx).
		Select("id", "external_id").
		Where("court = ? AND instance = ? AND external_id IN ?", court, instance, externalIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lookup cases: %w", err)
	}
	for _, r := range rows {
		found[r.ExternalID] = r.ID
	}
	return found, nil
}

// LastUpdated reports when each fully captured case was last written.
// Placeholder rows are left out so they are always refreshed.
func (c *Cases) LastUpdated(ctx context.Context, court, instance string, externalIDs []int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	var rows []database.Case
	err := c.db.WithContext(ctx).
		Select("external_id", "updated_at").
		Where("court = ? AND instance = ? AND minimal = ? AND external_id IN ?", court, instance, false, externalIDs).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load case freshness: %w", err)
	}
	for _, r := range rows {
		out[r.ExternalID] = r.UpdatedAt
	}
	return out, nil
}

// Freshness binds LastUpdated to one court instance
func (c *Cases) Freshness(court, instance string) Freshness {
	return Freshness{cases: c, court: court, instance: instance}
}

type Freshness struct {
	cases           *Cases
	court, instance string
}

func (f Freshness) LastUpdated(ctx context.Context, externalIDs []int64) (map[int64]time.Time, error) {
	return f.cases.LastUpdated(ctx, f.court, f.instance, externalIDs)
}
