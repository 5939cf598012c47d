package persistence

import (
	"context"
	"strconv"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"gorm.io/gorm"
)

// ExpertExams writes expert examinations
type ExpertExams struct {
	db *gorm.DB
}

func NewExpertExams(db *gorm.DB) *ExpertExams {
	return &ExpertExams{db: db}
}

// Save upserts exams. An exam whose case is not in caseIDs is an error, not a skip.
func (e *ExpertExams) Save(ctx context.Context, run *Run, records []driver.ExpertExam, caseIDs map[int64]uint) Result {
	var res Result
	for _, rec := range records {
		key := strconv.FormatInt(rec.ID, 10)

		caseID, ok := caseIDs[rec.CaseID]
		if !ok || caseID == 0 {
			run.Log.Error(EntityExpertExams, key, &Error{Entity: EntityExpertExams, Key: key, Err: ErrReferentialGap})
			res.add(capturelog.OutcomeError)
			continue
		}

		row, err := e.build(ctx, run, rec, caseID)
		if err != nil {
			run.Log.Error(EntityExpertExams, key, &Error{Entity: EntityExpertExams, Key: key, Err: err})
			res.add(capturelog.OutcomeError)
			continue
		}

		_, outcome, err := upsert(ctx, e.db, run, EntityExpertExams, key,
			map[string]any{"external_id": rec.ID, "court": run.Court, "instance": run.Instance, "case_number": rec.CaseNumber},
			row,
			func(r *database.ExpertExam) uint { return r.ID },
			nil,
		)
		res.add(outcome)
		if err != nil {
			run.logger().Error("Failed to save expert exam", "exam", key, "error", err)
		}
	}
	return res
}

func (e *ExpertExams) build(ctx context.Context, run *Run, rec driver.ExpertExam, caseID uint) (*database.ExpertExam, error) {
	row := &database.ExpertExam{
		ExternalID:       rec.ID,
		Court:            run.Court,
		Instance:         run.Instance,
		CaseNumber:       rec.CaseNumber,
		CaseID:           caseID,
		AttorneyID:       run.AttorneyID,
		ClassAcronym:     rec.ClassAcronym,
		DueAt:            rec.DueAt.Ptr(),
		AcceptedAt:       rec.AcceptedAt.Ptr(),
		RequestedAt:      rec.RequestedAt.Ptr(),
		ExamStatus:       rec.ExamStatus,
		ReportDocumentID: optionalInt(rec.ReportDocumentID),
		ReportFiled:      bool(rec.ReportFiled),
		NextHearingAt:    rec.NextHearingAt.Ptr(),
		Secret:           bool(rec.Secret),
		DigitalVenue:     bool(rec.DigitalVenue),
		Archived:         bool(rec.Archived),
		Priority:         bool(rec.Priority),
	}
	if rec.Situation != nil {
		row.StatusCode = rec.Situation.Code
		row.StatusDescription = rec.Situation.Description
	}

	division, err := run.Resolve.CourtDivisionByDescription(ctx, run.Court, run.Instance, rec.CourtDivisionName)
	if err != nil {
		return nil, err
	}
	row.CourtDivisionID = optionalID(division)

	specialty, err := run.Resolve.Specialty(ctx, run.Court, run.Instance, rec.SpecialtyID, rec.SpecialtyDescription)
	if err != nil {
		return nil, err
	}
	row.SpecialtyID = optionalID(specialty)

	expert, err := run.Resolve.Expert(ctx, run.Court, run.Instance, rec.ExpertID, rec.ExpertName)
	if err != nil {
		return nil, err
	}
	row.ExpertID = optionalID(expert)
	return row, nil
}
