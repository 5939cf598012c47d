package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PageFunc fetches one page, numbered from 1
type PageFunc[T any] func(ctx context.Context, page int) (Page[T], error)

// FetchAll walks pages until the reported page count is exhausted, an empty page
// is returned, or maxPages is reached (0 means no bound). Records fetched before
// an error are returned along with it.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T], maxPages int) ([]T, error) {
	var all []T
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		p, err := fetch(ctx, page)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, p.Records...)

		if len(p.Records) == 0 || p.TotalPages <= page {
			break
		}
	}
	return all, nil
}

// UniqueCaseIDs merges id lists into a set, keeping first-seen order and dropping zeros
func UniqueCaseIDs(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, list := range lists {
		for _, id := range list {
			if id == 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pacer enforces a fixed delay between consecutive portal calls.
// The first call is never delayed. Not safe for concurrent use; one lane per run.
type Pacer struct {
	Delay time.Duration
	Sleep SleepFunc

	started bool
}

func NewPacer(delay time.Duration, sleep SleepFunc) *Pacer {
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{Delay: delay, Sleep: sleep}
}

// Wait blocks before every call but the first
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.started {
		p.started = true
		return nil
	}
	if p.Delay <= 0 {
		return nil
	}
	return p.Sleep(ctx, p.Delay)
}

// RetryRateLimited runs fn and, if it fails with *RateLimitedError, waits and runs it
// exactly once more. The wait is the error's RetryAfter or backoff when unset.
func RetryRateLimited[T any](ctx context.Context, backoff time.Duration, sleep SleepFunc, fn func() (T, error)) (T, error) {
	v, err := fn()

	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		return v, err
	}

	wait := limited.RetryAfter
	if wait <= 0 {
		wait = backoff
	}
	if sleep == nil {
		sleep = Sleep
	}
	if serr := sleep(ctx, wait); serr != nil {
		return v, serr
	}
	return fn()
}
