// Package eventstore persists published status snapshots in SQLite and
// rebuilds per-cycle summaries from them.
package eventstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/syncd/internal/logfields"
	"git.home.luguber.info/inful/syncd/internal/reporter"
)

const (
	CycleRunning     = "running"
	CycleCompleted   = "completed"
	CycleInterrupted = "interrupted"
)

// CycleSummary is a read model of one update cycle.
type CycleSummary struct {
	RunID       string                 `json:"run_id"`
	Status      string                 `json:"status"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Duration    *float64               `json:"duration_seconds,omitempty"` // As reported by the cycle timer
	OK          int                    `json:"ok"`
	Failed      int                    `json:"failed"`
	Repos       []reporter.RepoOutcome `json:"repos"`
}

type openCycle struct {
	summary  *CycleSummary
	baseline int // repository history length when the cycle began
}

// CycleHistoryProjection derives cycle summaries from stored snapshots.
// The repository history in a snapshot accumulates for the lifetime of a
// run, so a cycle's outcomes are the entries appended since it began.
type CycleHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	open    map[string]*openCycle // runID -> cycle in progress
	seen    map[string]int        // runID -> last known history length
	history []*CycleSummary       // newest first
	maxSize int
}

// NewCycleHistoryProjection creates a new projection backed by the given store.
func NewCycleHistoryProjection(store Store, maxHistorySize int) *CycleHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &CycleHistoryProjection{
		store:   store,
		open:    make(map[string]*openCycle),
		seen:    make(map[string]int),
		history: make([]*CycleSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every record in the store.
func (p *CycleHistoryProjection) Rebuild(ctx context.Context) error {
	records, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.open = make(map[string]*openCycle)
	p.seen = make(map[string]int)
	p.history = make([]*CycleSummary, 0, p.maxSize)

	for _, r := range records {
		p.applyLocked(r)
	}
	return nil
}

// Apply processes a single record.
func (p *CycleHistoryProjection) Apply(r Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(r)
}

func (p *CycleHistoryProjection) applyLocked(r Record) {
	snap, err := r.Snapshot()
	if err != nil {
		slog.Debug("Skipping undecodable history record", slog.Int64("id", r.ID), logfields.Error(err))
		return
	}

	cur := p.open[r.RunID]
	switch snap.Status {
	case reporter.StatusStarting:
		p.seen[r.RunID] = len(snap.Repos)

	case reporter.StatusSleeping, reporter.StatusStopped:
		if cur != nil {
			cur.update(snap)
			at := r.Timestamp
			cur.summary.CompletedAt = &at
			if snap.Status == reporter.StatusSleeping {
				cur.summary.Status = CycleCompleted
				cur.summary.Duration = snap.Statistics.LastCycleTime
			} else {
				cur.summary.Status = CycleInterrupted
				cur.summary.Duration = snap.Statistics.CurrentCycleTime
			}
			p.addToHistoryLocked(cur.summary)
			delete(p.open, r.RunID)
		}
		p.seen[r.RunID] = len(snap.Repos)

	default:
		if cur == nil {
			cur = &openCycle{
				summary:  &CycleSummary{RunID: r.RunID, Status: CycleRunning, StartedAt: r.Timestamp},
				baseline: p.seen[r.RunID],
			}
			p.open[r.RunID] = cur
		}
		cur.update(snap)
		p.seen[r.RunID] = len(snap.Repos)
	}
}

func (c *openCycle) update(snap reporter.Snapshot) {
	if c.baseline > len(snap.Repos) {
		c.baseline = 0
	}
	outcomes := snap.Repos[c.baseline:]
	c.summary.Repos = append([]reporter.RepoOutcome(nil), outcomes...)
	c.summary.OK, c.summary.Failed = 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case reporter.RepoOK:
			c.summary.OK++
		case reporter.RepoFailed:
			c.summary.Failed++
		}
	}
}

func (p *CycleHistoryProjection) addToHistoryLocked(s *CycleSummary) {
	p.history = append([]*CycleSummary{s}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
}

// GetHistory returns finished cycles, newest first.
func (p *CycleHistoryProjection) GetHistory() []*CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*CycleSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetActiveCycles returns cycles still in progress.
func (p *CycleHistoryProjection) GetActiveCycles() []*CycleSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*CycleSummary
	for _, c := range p.open {
		cp := *c.summary
		out = append(out, &cp)
	}
	return out
}
