// Package capturelog records what one capture run did to each entity and keeps
// the CaptureLog row of the run up to date.
package capturelog

import (
	"sort"
	"sync"
	"time"

	"github.com/JustJay7/pje-capture/pkg/logger"
)

type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
)

// Entry is one structured log line of a run
type Entry struct {
	Time    time.Time `json:"time"`
	Entity  string    `json:"entity"`
	Key     string    `json:"key"`
	Outcome Outcome   `json:"outcome"`
	Fields  []string  `json:"fields,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Counts is the outcome breakdown of one entity, or of a whole run
type Counts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (c *Counts) Add(o Counts) {
	c.Inserted += o.Inserted
	c.Updated += o.Updated
	c.Unchanged += o.Unchanged
	c.Skipped += o.Skipped
	c.Errors += o.Errors
}

func (c Counts) Total() int {
	return c.Inserted + c.Updated + c.Unchanged + c.Skipped + c.Errors
}

func (c *Counts) record(o Outcome) {
	switch o {
	case OutcomeInserted:
		c.Inserted++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeUnchanged:
		c.Unchanged++
	case OutcomeSkipped:
		c.Skipped++
	case OutcomeError:
		c.Errors++
	}
}

// Collector accumulates the entries of exactly one run. Create one per run.
type Collector struct {
	mu      sync.Mutex
	now     func() time.Time
	entries []Entry
	counts  map[string]*Counts
}

func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{now: now, counts: make(map[string]*Counts)}
}

func (c *Collector) add(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e.Time = c.now()
	c.entries = append(c.entries, e)
	counts, ok := c.counts[e.Entity]
	if !ok {
		counts = &Counts{}
		c.counts[e.Entity] = counts
	}
	counts.record(e.Outcome)
}

func (c *Collector) Inserted(entity, key string) {
	c.add(Entry{Entity: entity, Key: key, Outcome: OutcomeInserted})
}

func (c *Collector) Updated(entity, key string, fields []string) {
	c.add(Entry{Entity: entity, Key: key, Outcome: OutcomeUpdated, Fields: fields})
}

func (c *Collector) Unchanged(entity, key string) {
	c.add(Entry{Entity: entity, Key: key, Outcome: OutcomeUnchanged})
}

func (c *Collector) Skipped(entity, key, reason string) {
	c.add(Entry{Entity: entity, Key: key, Outcome: OutcomeSkipped, Reason: reason})
}

func (c *Collector) Error(entity, key string, err error) {
	e := Entry{Entity: entity, Key: key, Outcome: OutcomeError}
	if err != nil {
		e.Error = err.Error()
	}
	c.add(e)
}

// Len is the number of entries recorded so far
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a copy of every entry
func (c *Collector) Entries() []Entry {
	return c.Since(0)
}

// Since returns a copy of the entries recorded from position offset on
func (c *Collector) Since(offset int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset >= len(c.entries) {
		return nil
	}
	out := make([]Entry, len(c.entries)-offset)
	copy(out, c.entries[offset:])
	return out
}

// Counts returns the breakdown per entity
func (c *Collector) Counts() map[string]Counts {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Counts, len(c.counts))
	for entity, counts := range c.counts {
		out[entity] = *counts
	}
	return out
}

// Totals sums every entity
func (c *Collector) Totals() Counts {
	var total Counts
	for _, counts := range c.Counts() {
		total.Add(counts)
	}
	return total
}

// Flush writes one summary line per entity and returns the run totals
func (c *Collector) Flush(log *logger.Logger) Counts {
	counts := c.Counts()
	entities := make([]string, 0, len(counts))
	for entity := range counts {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	var total Counts
	for _, entity := range entities {
		n := counts[entity]
		total.Add(n)
		log.Info("Capture summary",
			"entity", entity,
			"inserted", n.Inserted,
			"updated", n.Updated,
			"unchanged", n.Unchanged,
			"skipped", n.Skipped,
			"errors", n.Errors,
		)
	}
	return total
}
