// Package complementary fetches per-case timelines and party lists for a set of
// cases, skipping cases captured recently.
package complementary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
)

const (
	DefaultThreshold     = 24 * time.Hour
	DefaultDelay         = 300 * time.Millisecond
	DefaultProgressEvery = 10
)

// FreshnessSource reports when each stored case was last written
type FreshnessSource interface {
	LastUpdated(ctx context.Context, caseIDs []int64) (map[int64]time.Time, error)
}

type Options struct {
	Timeline      bool
	Parties       bool
	Threshold     time.Duration
	Delay         time.Duration
	ProgressEvery int
	Sleep         driver.SleepFunc
	Now           func() time.Time
}

func DefaultOptions() Options {
	return Options{
		Timeline:      true,
		Parties:       true,
		Threshold:     DefaultThreshold,
		Delay:         DefaultDelay,
		ProgressEvery: DefaultProgressEvery,
	}
}

// CaseData is what was fetched for one case
type CaseData struct {
	CaseID      int64
	Timeline    []driver.TimelineItem
	Parties     []driver.Party
	RawTimeline json.RawMessage
	RawParties  json.RawMessage
	Errs        []error
}

// Failed reports whether any fetch for the case failed
func (c *CaseData) Failed() bool { return len(c.Errs) > 0 }

// Summary counts cases; Skipped + Fetched + Errors == TotalCases once a run completes
type Summary struct {
	TotalCases int `json:"totalCases"`
	Skipped    int `json:"skipped"`
	Fetched    int `json:"fetched"`
	Errors     int `json:"errors"`
}

type Result struct {
	// ByCase holds fetched cases only; skipped cases have no entry
	ByCase  map[int64]*CaseData
	Order   []int64
	Summary Summary
}

// Progress is reported on the first case, every Nth case and the last case
type Progress struct {
	Index  int
	Total  int
	CaseID int64
	Summary
}

type Resolver struct {
	fresh FreshnessSource
	log   *logger.Logger
}

// New returns a resolver; a nil FreshnessSource fetches every case
func New(fresh FreshnessSource, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{fresh: fresh, log: log}
}

// Resolve processes caseIDs in order, one request at a time. A fatal driver error
// or a cancelled context stops the loop and is returned with the partial result.
func (r *Resolver) Resolve(ctx context.Context, sess driver.Session, caseIDs []int64, opts Options, progress func(Progress)) (*Result, error) {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	res := &Result{ByCase: make(map[int64]*CaseData), Summary: Summary{TotalCases: len(caseIDs)}}
	if len(caseIDs) == 0 {
		return res, nil
	}
	if !opts.Timeline && !opts.Parties {
		res.Summary.Skipped = len(caseIDs)
		return res, nil
	}

	lastUpdated, err := r.lastUpdated(ctx, caseIDs)
	if err != nil {
		return res, err
	}

	pacer := driver.NewPacer(opts.Delay, opts.Sleep)
	started := now()

	for i, id := range caseIDs {
		if updated, ok := lastUpdated[id]; ok && opts.Threshold > 0 && now().Sub(updated) < opts.Threshold {
			r.log.Debug("Skipping recently captured case", "case_id", id, "updated_at", updated)
			res.Summary.Skipped++
		} else {
			data, err := r.fetch(ctx, sess, pacer, id, opts)
			res.ByCase[id] = data
			res.Order = append(res.Order, id)
			if data.Failed() {
				res.Summary.Errors++
			} else {
				res.Summary.Fetched++
			}
			if err != nil {
				return res, err
			}
		}

		if progress != nil && (i == 0 || (i+1)%opts.ProgressEvery == 0 || i == len(caseIDs)-1) {
			progress(Progress{Index: i + 1, Total: len(caseIDs), CaseID: id, Summary: res.Summary})
		}
	}

	r.log.Info("Complementary data resolved",
		"cases", res.Summary.TotalCases,
		"fetched", res.Summary.Fetched,
		"skipped", res.Summary.Skipped,
		"errors", res.Summary.Errors,
		"duration", time.Since(started).String(),
	)
	return res, nil
}

func (r *Resolver) lastUpdated(ctx context.Context, caseIDs []int64) (map[int64]time.Time, error) {
	if r.fresh == nil {
		return nil, nil
	}
	updated, err := r.fresh.LastUpdated(ctx, caseIDs)
	if err != nil {
		return nil, fmt.Errorf("load case freshness: %w", err)
	}
	return updated, nil
}

// fetch collects the requested data of one case. Per-request failures land in
// CaseData.Errs; only fatal errors are returned.
func (r *Resolver) fetch(ctx context.Context, sess driver.Session, pacer *driver.Pacer, id int64, opts Options) (*CaseData, error) {
	data := &CaseData{CaseID: id}

	if opts.Timeline {
		if err := pacer.Wait(ctx); err != nil {
			data.Errs = append(data.Errs, err)
			return data, err
		}
		items, err := sess.ListTimeline(ctx, id)
		if err != nil {
			r.log.Warn("Failed to fetch timeline", "case_id", id, "error", err)
			data.Errs = append(data.Errs, fmt.Errorf("timeline: %w", err))
			if driver.IsFatal(err) || ctx.Err() != nil {
				return data, err
			}
		} else {
			data.Timeline = items
			if raw, err := json.Marshal(items); err == nil {
				data.RawTimeline = raw
			}
		}
	}

	if opts.Parties {
		if err := pacer.Wait(ctx); err != nil {
			data.Errs = append(data.Errs, err)
			return data, err
		}
		payload, err := sess.ListParties(ctx, id)
		if err != nil {
			r.log.Warn("Failed to fetch parties", "case_id", id, "error", err)
			data.Errs = append(data.Errs, fmt.Errorf("parties: %w", err))
			if driver.IsFatal(err) || ctx.Err() != nil {
				return data, err
			}
		} else if payload != nil {
			data.Parties = payload.Parties
			data.RawParties = payload.Raw
		}
	}

	return data, nil
}
