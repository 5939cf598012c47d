package persistence

import (
	"context"
	"strconv"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"gorm.io/gorm"
)

// Hearings writes hearing agenda entries
type Hearings struct {
	db *gorm.DB
}

func NewHearings(db *gorm.DB) *Hearings {
	return &Hearings{db: db}
}

// Save upserts hearings whose owning case is in caseIDs; the rest are skipped.
// minutes holds downloaded minutes documents keyed by hearing id.
func (h *Hearings) Save(ctx context.Context, run *Run, records []driver.Hearing, caseIDs map[int64]uint, minutes map[int64]StoredDocument) Result {
	var res Result
	for _, rec := range records {
		key := strconv.FormatInt(rec.ID, 10)

		caseID, ok := caseIDs[rec.OwnerID()]
		if !ok || caseID == 0 {
			run.Log.Skipped(EntityHearings, key, ErrReferentialGap.Error())
			res.add(capturelog.OutcomeSkipped)
			continue
		}

		row, err := h.build(ctx, run, rec, caseID)
		if err != nil {
			run.Log.Error(EntityHearings, key, &Error{Entity: EntityHearings, Key: key, Err: err})
			res.add(capturelog.OutcomeError)
			continue
		}
		if doc, ok := minutes[rec.ID]; ok {
			row.MinutesDocumentID = optionalInt(doc.DocumentID)
			row.MinutesKey = doc.Key
			row.MinutesURL = doc.URL
		}

		_, outcome, err := upsert(ctx, h.db, run, EntityHearings, key,
			map[string]any{"external_id": rec.ID, "court": run.Court, "instance": run.Instance, "case_number": row.CaseNumber},
			row,
			func(r *database.Hearing) uint { return r.ID },
			keepHearingLinks,
		)
		res.add(outcome)
		if err != nil {
			run.logger().Error("Failed to save hearing", "hearing", key, "error", err)
		}
	}
	return res
}

// keepHearingLinks keeps stored links the portal stopped reporting
func keepHearingLinks(row, stored *database.Hearing) {
	if row.VirtualURL == "" {
		row.VirtualURL = stored.VirtualURL
	}
	if row.MinutesKey == "" {
		row.MinutesDocumentID = stored.MinutesDocumentID
		row.MinutesKey = stored.MinutesKey
		row.MinutesURL = stored.MinutesURL
	}
}

func (h *Hearings) build(ctx context.Context, run *Run, rec driver.Hearing, caseID uint) (*database.Hearing, error) {
	row := &database.Hearing{
		ExternalID:        rec.ID,
		Court:             run.Court,
		Instance:          run.Instance,
		CaseNumber:        rec.Number(),
		CaseID:            caseID,
		AttorneyID:        run.AttorneyID,
		StartsAt:          rec.StartsAt.Ptr(),
		EndsAt:            rec.EndsAt.Ptr(),
		Status:            rec.Status,
		StatusDescription: rec.StatusDescription,
		Designated:        bool(rec.Designated),
		InProgress:        bool(rec.InProgress),
		ActiveDocument:    bool(rec.ActiveDocument),
		VirtualURL:        rec.VirtualURL,
	}
	if rec.ActivePole != nil {
		row.ActivePoleName = rec.ActivePole.Name
		row.ActivePoleMany = bool(rec.ActivePole.Many)
	}
	if rec.PassivePole != nil {
		row.PassivePoleName = rec.PassivePole.Name
		row.PassivePoleMany = bool(rec.PassivePole.Many)
	}

	var divisionID uint
	if c := rec.Case; c != nil {
		row.Secret = bool(c.Secret)
		row.DigitalVenue = bool(c.DigitalVenue)

		if c.CourtDivision != nil {
			id, err := run.Resolve.CourtDivision(ctx, run.Court, run.Instance, c.CourtDivision.ID, c.CourtDivision.Description)
			if err != nil {
				return nil, err
			}
			divisionID = id
			row.CourtDivisionID = optionalID(id)
		}
		if c.Class != nil {
			id, err := run.Resolve.CaseClass(ctx, run.Court, run.Instance, c.Class.ID, c.Class.Acronym, c.Class.Description)
			if err != nil {
				return nil, err
			}
			row.CaseClassID = optionalID(id)
		}
	}
	if t := rec.Type; t != nil {
		id, err := run.Resolve.HearingType(ctx, run.Court, run.Instance, t.ID, t.Description, t.Code)
		if err != nil {
			return nil, err
		}
		row.HearingTypeID = optionalID(id)
	}
	if room := rec.Room; room != nil {
		row.RoomName = room.Name
		id, err := run.Resolve.HearingRoom(ctx, run.Court, run.Instance, divisionID, room.ID, room.Name)
		if err != nil {
			return nil, err
		}
		row.HearingRoomID = optionalID(id)
	}
	return row, nil
}
