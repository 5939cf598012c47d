package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/JustJay7/pje-capture/internal/complementary"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/parties"
	"github.com/JustJay7/pje-capture/internal/persistence"
	"github.com/JustJay7/pje-capture/internal/storage/objectstore"
	"github.com/JustJay7/pje-capture/internal/storage/rawlog"
)

// process runs every state after the lists were fetched
func (r *run) process(ctx context.Context, sess driver.Session, l *lists) error {
	var classifier *parties.Classifier
	if !r.req.Params.SkipParties {
		c, err := parties.NewClassifier(r.owner.TaxID, r.log)
		if err != nil {
			return err
		}
		classifier = c
	}

	r.enter(StateResolvingCaseOwnership)
	ids := l.caseIDs()
	r.result.Raw["unique_cases"] = len(ids)

	known, err := r.svc.cases.Lookup(ctx, r.court.Code, r.court.Instance, ids)
	if err != nil {
		return err
	}
	found, err := r.searchPanels(ctx, sess, l, known, ids)
	if err != nil {
		return err
	}

	r.enter(StateFetchingComplementary)
	comp, err := r.complementary(ctx, sess, ids)
	if comp != nil {
		r.result.Complementary = &comp.Summary
	}
	if err != nil {
		return err
	}

	r.enter(StatePersistingCases)
	caseIDs := r.persistCases(ctx, ids, known, found, l.caseNumbers())

	r.enter(StatePersistingDependents)
	if err := r.persistDependents(ctx, sess, l, comp, caseIDs, classifier); err != nil {
		return err
	}

	r.enter(StateFinalizing)
	r.finalize(ctx, comp)
	return nil
}

// searchPanels locates cases that are neither stored nor already listed, looking
// in the archived panel first and then in the general docket
func (r *run) searchPanels(ctx context.Context, sess driver.Session, l *lists, known map[int64]uint, ids []int64) (map[int64]panelCase, error) {
	found := make(map[int64]panelCase, len(l.panel))
	for id, p := range l.panel {
		found[id] = p
	}

	want := map[int64]struct{}{}
	for _, id := range ids {
		_, stored := known[id]
		_, listed := found[id]
		if !stored && !listed {
			want[id] = struct{}{}
		}
	}
	if len(want) == 0 {
		return found, nil
	}
	r.log.Info("Searching case panels for unknown cases", "missing", len(want))

	maxPages := r.svc.policy.MaxPages
	for _, origin := range []string{driver.OriginArchived, driver.OriginGeneral} {
		for page := 1; len(want) > 0 && (maxPages <= 0 || page <= maxPages); page++ {
			if err := r.listPace.Wait(ctx); err != nil {
				return found, err
			}
			p, err := sess.ListCases(ctx, driver.CaseListFilter{Origin: origin}, page)
			if err != nil {
				if driver.IsFatal(err) || ctx.Err() != nil {
					return found, err
				}
				r.log.Warn("Failed to search case panel", "origin", origin, "page", page, "error", err)
				r.fail("panel "+origin, 0, err)
				break
			}
			for _, rec := range p.Records {
				if _, ok := want[rec.ID]; ok {
					found[rec.ID] = panelCase{summary: rec, origin: origin}
					delete(want, rec.ID)
				}
			}
			if len(p.Records) == 0 || p.TotalPages <= page {
				break
			}
		}
		if len(want) == 0 {
			break
		}
	}
	return found, nil
}

func (r *run) complementary(ctx context.Context, sess driver.Session, ids []int64) (*complementary.Result, error) {
	p := r.svc.policy
	opts := complementary.Options{
		Timeline:      !r.req.Params.SkipTimeline,
		Parties:       !r.req.Params.SkipParties,
		Threshold:     p.RecaptureThreshold,
		Delay:         p.RequestDelay,
		ProgressEvery: p.ProgressEvery,
		Sleep:         r.svc.sleep,
		Now:           r.svc.clock,
	}
	resolver := complementary.New(r.svc.cases.Freshness(r.court.Code, r.court.Instance), r.log)
	return resolver.Resolve(ctx, sess, ids, opts, func(pr complementary.Progress) {
		r.log.Info("Complementary data progress",
			"case", pr.Index,
			"total", pr.Total,
			"fetched", pr.Fetched,
			"skipped", pr.Skipped,
			"errors", pr.Errors,
		)
	})
}

// persistCases stores the cases found in panels, counts the stored ones as
// unchanged and synthesizes a placeholder for the rest
func (r *run) persistCases(ctx context.Context, ids []int64, known map[int64]uint, found map[int64]panelCase, numbers map[int64]string) map[int64]uint {
	caseIDs := make(map[int64]uint, len(ids))

	byOrigin := map[string][]driver.CaseSummary{}
	var origins []string
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			continue
		}
		if _, seen := byOrigin[p.origin]; !seen {
			origins = append(origins, p.origin)
		}
		byOrigin[p.origin] = append(byOrigin[p.origin], p.summary)
	}
	for _, origin := range origins {
		saved, _ := r.svc.cases.Save(ctx, r.persist, byOrigin[origin], origin)
		for id, dbID := range saved {
			caseIDs[id] = dbID
		}
	}

	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if dbID, ok := known[id]; ok {
			caseIDs[id] = dbID
			r.collect.Unchanged(persistence.EntityCases, caseKey(id, numbers[id]))
			continue
		}

		r.log.Warn("Creating placeholder case", "case_id", id, "case_number", numbers[id], "reason", driver.ErrNotFoundInPanel.Error())
		dbID, _, err := r.svc.cases.SaveMinimal(ctx, r.persist, id, numbers[id])
		if err != nil {
			continue
		}
		caseIDs[id] = dbID
	}
	return caseIDs
}

func caseKey(id int64, number string) string {
	if number != "" {
		return number
	}
	return strconv.FormatInt(id, 10)
}

func (r *run) persistDependents(ctx context.Context, sess driver.Session, l *lists, comp *complementary.Result, caseIDs map[int64]uint, classifier *parties.Classifier) error {
	for _, id := range comp.Order {
		data := comp.ByCase[id]
		if data.RawTimeline == nil {
			continue
		}
		key := strconv.FormatInt(id, 10)
		if caseIDs[id] == 0 {
			r.log.Warn("Skipping timeline of unsaved case", "case_id", id)
			r.collect.Skipped(persistence.EntityTimelines, key, persistence.ErrReferentialGap.Error())
			continue
		}
		if _, err := r.svc.timelines.Save(ctx, r.persist, id, caseIDs[id], data.Timeline); err != nil {
			r.log.Warn("Failed to save timeline", "case_id", id, "error", err)
		}
	}

	if classifier != nil {
		for _, id := range comp.Order {
			data := comp.ByCase[id]
			if data.RawParties == nil {
				continue
			}
			r.svc.parties.Save(ctx, r.persist, classifier, persistence.CaseRef{ID: caseIDs[id], ExternalID: id}, data.Parties)
		}
	}

	minutes, notices, err := r.downloadDocuments(ctx, sess, l, comp)
	if err != nil {
		return err
	}

	if len(l.hearings) > 0 {
		res := r.svc.hearings.Save(ctx, r.persist, l.hearings, caseIDs, minutes)
		r.log.Info("Hearings persisted", "inserted", res.Inserted, "updated", res.Updated, "unchanged", res.Unchanged, "skipped", res.Skipped, "errors", res.Errors)
	}
	if len(l.pending) > 0 {
		res := r.svc.pending.Save(ctx, r.persist, l.pending, caseIDs, notices)
		r.log.Info("Pending filings persisted", "inserted", res.Inserted, "updated", res.Updated, "unchanged", res.Unchanged, "skipped", res.Skipped, "errors", res.Errors)
	}
	if len(l.exams) > 0 {
		res := r.svc.exams.Save(ctx, r.persist, l.exams, caseIDs)
		r.log.Info("Expert exams persisted", "inserted", res.Inserted, "updated", res.Updated, "unchanged", res.Unchanged, "skipped", res.Skipped, "errors", res.Errors)
	}
	return nil
}

// downloadDocuments fetches the minutes of realized hearings and the documents
// of pending filings into the object store. Per-document failures are logged.
func (r *run) downloadDocuments(ctx context.Context, sess driver.Session, l *lists, comp *complementary.Result) (map[int64]persistence.StoredDocument, map[int64]persistence.StoredDocument, error) {
	if !r.svc.policy.DownloadDocuments || r.svc.uploader == nil {
		return nil, nil, nil
	}
	minutes := map[int64]persistence.StoredDocument{}
	notices := map[int64]persistence.StoredDocument{}
	pace := driver.NewPacer(r.svc.policy.RequestDelay, r.svc.sleep)

	for _, h := range l.hearings {
		if !l.realized[h.ID] {
			continue
		}
		caseID := h.OwnerID()
		var items []driver.TimelineItem
		if data, ok := comp.ByCase[caseID]; ok && data.RawTimeline != nil {
			items = data.Timeline
		} else {
			if err := pace.Wait(ctx); err != nil {
				return minutes, notices, err
			}
			fetched, err := sess.ListTimeline(ctx, caseID)
			if err != nil {
				if driver.IsFatal(err) {
					return minutes, notices, err
				}
				r.fail("minutes timeline", caseID, err)
				continue
			}
			items = fetched
		}

		doc, ok := findMinutes(items)
		if !ok {
			continue
		}
		stored, err := r.storeDocument(ctx, sess, pace, caseID, doc.ID, h.Number(), objectstore.CategoryMinutes, fmt.Sprintf("ata-audiencia-%d.pdf", h.ID))
		if err != nil {
			if driver.IsFatal(err) {
				return minutes, notices, err
			}
			r.fail("minutes download", caseID, err)
			continue
		}
		minutes[h.ID] = stored
	}

	for _, p := range l.pending {
		if p.DocumentID == 0 {
			continue
		}
		stored, err := r.storeDocument(ctx, sess, pace, p.CaseID, p.DocumentID, p.CaseNumber, objectstore.CategoryNotices, "")
		if err != nil {
			if driver.IsFatal(err) {
				return minutes, notices, err
			}
			r.fail("notice download", p.CaseID, err)
			continue
		}
		notices[p.ID] = stored
	}
	return minutes, notices, nil
}

func (r *run) storeDocument(ctx context.Context, sess driver.Session, pace *driver.Pacer, caseID, docID int64, caseNumber, category, name string) (persistence.StoredDocument, error) {
	if err := pace.Wait(ctx); err != nil {
		return persistence.StoredDocument{}, err
	}
	doc, err := sess.DownloadDocument(ctx, caseID, docID)
	if err != nil {
		return persistence.StoredDocument{}, err
	}
	if name == "" {
		name = doc.Name
	}
	up, err := r.svc.uploader.Upload(ctx, doc.Data, objectstore.DocumentKey(caseNumber, category, name), doc.ContentType)
	if err != nil {
		return persistence.StoredDocument{}, err
	}
	return persistence.StoredDocument{DocumentID: docID, Name: name, Key: up.Key, URL: up.URL}, nil
}

// findMinutes returns the first document whose type or title names hearing minutes ("ata")
func findMinutes(items []driver.TimelineItem) (driver.TimelineItem, bool) {
	for _, it := range items {
		if !bool(it.Document) || it.ID == 0 {
			continue
		}
		if hasWord(it.Type, "ata") || hasWord(it.Title, "ata") {
			return it, true
		}
	}
	return driver.TimelineItem{}, false
}

func hasWord(s, word string) bool {
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if w == word {
			return true
		}
	}
	return false
}

// finalize writes the raw payloads of the run and flushes its log summary
func (r *run) finalize(ctx context.Context, comp *complementary.Result) {
	var entries []rawlog.Entry
	for _, id := range comp.Order {
		data := comp.ByCase[id]
		payload, err := json.Marshal(map[string]json.RawMessage{
			"timeline": data.RawTimeline,
			"partes":   data.RawParties,
		})
		if err != nil {
			r.log.Warn("Failed to encode raw payload", "case_id", id, "error", err)
			continue
		}
		e := rawlog.Entry{
			RunID:          r.result.RunID,
			CaptureType:    r.kind,
			Court:          r.court.Code,
			Instance:       r.court.Instance,
			CaseExternalID: id,
			Status:         rawlog.StatusSuccess,
			Payload:        payload,
			CreatedAt:      r.svc.clock(),
		}
		if data.Failed() {
			e.Status = rawlog.StatusError
			e.Error = errors.Join(data.Errs...).Error()
		}
		entries = append(entries, e)
	}
	entries = append(entries, r.failures...)
	entries = append(entries, rawlog.Entry{
		RunID:       r.result.RunID,
		CaptureType: r.kind,
		Court:       r.court.Code,
		Instance:    r.court.Instance,
		Status:      rawlog.StatusSuccess,
		Entries:     r.collect.Entries(),
		CreatedAt:   r.svc.clock(),
	})

	for _, e := range entries {
		if err := r.svc.rawLogs.Append(ctx, e); err != nil {
			r.log.Warn("Failed to store raw log", "case_id", e.CaseExternalID, "error", err)
		}
	}
	r.collect.Flush(r.log)
}
