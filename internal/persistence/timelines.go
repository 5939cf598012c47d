package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"gorm.io/gorm"
)

// Timelines stores each case's timeline as one JSON document
type Timelines struct {
	db *gorm.DB
}

func NewTimelines(db *gorm.DB) *Timelines {
	return &Timelines{db: db}
}

// Save replaces the stored timeline of one case when its items changed
func (t *Timelines) Save(ctx context.Context, run *Run, caseExternalID int64, caseID uint, items []driver.TimelineItem) (capturelog.Outcome, error) {
	key := strconv.FormatInt(caseExternalID, 10)
	fail := func(err error) (capturelog.Outcome, error) {
		perr := &Error{Entity: EntityTimelines, Key: key, Err: err}
		run.Log.Error(EntityTimelines, key, perr)
		return capturelog.OutcomeError, perr
	}

	if items == nil {
		items = []driver.TimelineItem{}
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return fail(err)
	}

	var stored database.Timeline
	err = t.db.WithContext(ctx).
		Where("case_external_id = ? AND court = ? AND instance = ?", caseExternalID, run.Court, run.Instance).
		First(&stored).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := &database.Timeline{
			CaseExternalID: caseExternalID,
			Court:          run.Court,
			Instance:       run.Instance,
			CaseID:         optionalID(caseID),
			Items:          string(blob),
			ItemCount:      len(items),
			CapturedAt:     run.now(),
		}
		if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
			return fail(err)
		}
		run.Log.Inserted(EntityTimelines, key)
		return capturelog.OutcomeInserted, nil
	case err != nil:
		return fail(err)
	}

	sameCase := stored.CaseID == nil && caseID == 0 || stored.CaseID != nil && *stored.CaseID == caseID
	if stored.Items == string(blob) && sameCase {
		run.Log.Unchanged(EntityTimelines, key)
		return capturelog.OutcomeUnchanged, nil
	}

	err = t.db.WithContext(ctx).Model(&stored).Updates(map[string]any{
		"items":       string(blob),
		"item_count":  len(items),
		"case_id":     optionalID(caseID),
		"captured_at": run.now(),
	}).Error
	if err != nil {
		return fail(err)
	}
	run.Log.Updated(EntityTimelines, key, []string{"items"})
	return capturelog.OutcomeUpdated, nil
}
