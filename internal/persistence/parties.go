package persistence

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/normalize"
	"github.com/JustJay7/pje-capture/internal/parties"
	"gorm.io/gorm"
)

// Parties writes case parties, their representatives and the case links
type Parties struct {
	db *gorm.DB
}

func NewParties(db *gorm.DB) *Parties {
	return &Parties{db: db}
}

// CaseRef identifies the case a party list belongs to
type CaseRef struct {
	ID         uint
	ExternalID int64
}

// Save classifies and upserts every party of one case. The returned result
// counts party rows; representatives and links are only recorded in the run log.
func (p *Parties) Save(ctx context.Context, run *Run, classifier *parties.Classifier, ref CaseRef, list []driver.Party) Result {
	var res Result
	for i, party := range list {
		cls := classifier.Classify(party)
		row := partyRow(run, party, cls.Kind)
		key := partyKey(ref, row)

		where := map[string]any{"kind": row.Kind, "tax_id": row.TaxID}
		if row.TaxID == "" {
			where = map[string]any{"kind": row.Kind, "tax_id": "", "external_id": row.ExternalID, "court": run.Court, "instance": run.Instance}
		}
		partyID, outcome, err := upsert(ctx, p.db, run, EntityParties, key, where, row,
			func(r *database.Party) uint { return r.ID }, keepPartyEmail)
		res.add(outcome)
		if err != nil {
			continue
		}

		p.saveRepresentatives(ctx, run, partyID, key, party.Representatives)

		if ref.ID == 0 {
			run.Log.Skipped(EntityCaseParties, key, ErrReferentialGap.Error())
			continue
		}
		link := &database.CaseParty{
			CaseID:         ref.ID,
			PartyID:        partyID,
			Role:           strings.ToUpper(strings.TrimSpace(party.Role)),
			CaseExternalID: ref.ExternalID,
			Court:          run.Court,
			Instance:       run.Instance,
			Pole:           party.Pole,
			Kind:           cls.Kind,
			Principal:      party.Principal,
			Position:       i + 1,
		}
		_, _, _ = upsert(ctx, p.db, run, EntityCaseParties, key,
			map[string]any{"case_id": link.CaseID, "party_id": link.PartyID, "role": link.Role},
			link,
			func(r *database.CaseParty) uint { return r.ID },
			nil,
		)
	}
	return res
}

func (p *Parties) saveRepresentatives(ctx context.Context, run *Run, partyID uint, partyKey string, reps []driver.Representative) {
	for _, r := range reps {
		doc := normalize.NormalizeTaxID(r.Document)
		key := partyKey + "/" + r.Name
		if !normalize.ValidTaxID(doc) {
			run.Log.Skipped(EntityRepresentatives, key, "representative has no valid tax id")
			continue
		}
		row := &database.PartyRepresentative{
			PartyID:            partyID,
			TaxID:              doc,
			Name:               r.Name,
			BarNumber:          r.BarNumber,
			BarState:           strings.ToUpper(r.BarState),
			RepresentativeType: r.Type,
			ExternalID:         r.PersonID,
		}
		_, _, _ = upsert(ctx, p.db, run, EntityRepresentatives, key,
			map[string]any{"party_id": partyID, "tax_id": doc},
			row,
			func(r *database.PartyRepresentative) uint { return r.ID },
			nil,
		)
	}
}

func partyRow(run *Run, party driver.Party, kind string) *database.Party {
	row := &database.Party{
		Kind:       kind,
		Name:       strings.TrimSpace(party.Name),
		ExternalID: party.PersonID,
		Court:      run.Court,
		Instance:   run.Instance,
	}
	if row.ExternalID == 0 {
		row.ExternalID = party.ID
	}
	if doc := normalize.NormalizeTaxID(party.Document); normalize.ValidTaxID(doc) {
		row.TaxID = doc
		row.PersonType = string(normalize.KindOf(doc))
	}
	if len(party.Emails) > 0 {
		row.Email = party.Emails[0]
	}
	return row
}

func partyKey(ref CaseRef, row *database.Party) string {
	id := row.TaxID
	if id == "" {
		id = strconv.FormatInt(row.ExternalID, 10)
	}
	return fmt.Sprintf("%d/%s", ref.ExternalID, id)
}

// keepPartyEmail keeps a stored email when the portal omits it
func keepPartyEmail(row, stored *database.Party) {
	if row.Email == "" {
		row.Email = stored.Email
	}
}
