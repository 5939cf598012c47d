package persistence

import (
	"context"
	"strconv"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"gorm.io/gorm"
)

// PendingFilings writes notices awaiting a response
type PendingFilings struct {
	db *gorm.DB
}

func NewPendingFilings(db *gorm.DB) *PendingFilings {
	return &PendingFilings{db: db}
}

// Save upserts notices whose owning case is in caseIDs; the rest are skipped.
// docs holds downloaded notice documents keyed by notice id.
func (p *PendingFilings) Save(ctx context.Context, run *Run, records []driver.PendingFiling, caseIDs map[int64]uint, docs map[int64]StoredDocument) Result {
	var res Result
	for _, rec := range records {
		key := strconv.FormatInt(rec.ID, 10)

		caseID, ok := caseIDs[rec.CaseID]
		if !ok || caseID == 0 {
			run.Log.Skipped(EntityPendingFilings, key, ErrReferentialGap.Error())
			res.add(capturelog.OutcomeSkipped)
			continue
		}

		row := &database.PendingFiling{
			ExternalID:      rec.ID,
			Court:           run.Court,
			Instance:        run.Instance,
			CaseNumber:      rec.CaseNumber,
			CaseID:          caseID,
			AttorneyID:      run.AttorneyID,
			DeadlineFilter:  rec.DeadlineFilter,
			CourtDivision:   rec.CourtDivision,
			CaseClass:       rec.CaseClass,
			PlaintiffName:   rec.PlaintiffName,
			DefendantName:   rec.DefendantName,
			NoticeType:      rec.NoticeType,
			IssuedAt:        rec.IssuedAt.Ptr(),
			AcknowledgedAt:  rec.AcknowledgedAt.Ptr(),
			DeadlineAt:      rec.DeadlineAt.Ptr(),
			DeadlineExpired: bool(rec.DeadlineExpired),
			Secret:          bool(rec.Secret),
			DigitalVenue:    bool(rec.DigitalVenue),
			DocumentID:      optionalInt(rec.DocumentID),
		}
		if doc, ok := docs[rec.ID]; ok {
			row.DocumentName = doc.Name
			row.DocumentKey = doc.Key
			row.DocumentURL = doc.URL
		}

		_, outcome, err := upsert(ctx, p.db, run, EntityPendingFilings, key,
			map[string]any{"external_id": rec.ID, "court": run.Court, "instance": run.Instance, "case_number": rec.CaseNumber},
			row,
			func(r *database.PendingFiling) uint { return r.ID },
			keepPendingDocument,
		)
		res.add(outcome)
		if err != nil {
			run.logger().Error("Failed to save pending filing", "pending_filing", key, "error", err)
		}
	}
	return res
}

func keepPendingDocument(row, stored *database.PendingFiling) {
	if row.DocumentKey == "" {
		row.DocumentName = stored.DocumentName
		row.DocumentKey = stored.DocumentKey
		row.DocumentURL = stored.DocumentURL
	}
}
