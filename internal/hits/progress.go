package hits

import (
	"context"
	"fmt"

	"github.com/psantana5/hitctl/internal/ledger"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/pkg/models"
)

// ProgressRow is one HIT's completion state
type ProgressRow struct {
	HITID     string `json:"hit_id"`
	Task      string `json:"task,omitempty"`
	Status    string `json:"status"`
	Completed int32  `json:"completed"`
	Pending   int32  `json:"pending"`
	Available int32  `json:"available"`
	Max       int32  `json:"max_assignments"`
}

// ProgressReport aggregates rows
type ProgressReport struct {
	Rows      []ProgressRow `json:"hits"`
	Completed int32         `json:"completed"`
	Expected  int32         `json:"expected"`
}

// Percent is the share of expected assignments already completed
func (r *ProgressReport) Percent() float64 {
	if r.Expected == 0 {
		return 0
	}
	return 100 * float64(r.Completed) / float64(r.Expected)
}

func (r *ProgressReport) add(row ProgressRow) {
	r.Rows = append(r.Rows, row)
	r.Completed += row.Completed
	r.Expected += row.Max
}

// Tracker reports progress for HITs
type Tracker struct {
	Client marketplace.Client
	Ledger *ledger.Ledger
}

// All reports every HIT of the account
func (t *Tracker) All(ctx context.Context) (*ProgressReport, error) {
	hits, err := t.Client.ListHITs(ctx)
	if err != nil {
		return nil, err
	}
	tasks := t.taskIndex()

	out := &ProgressReport{}
	for _, h := range hits {
		out.add(rowFor(h, tasks[h.HITID]))
	}
	return out, nil
}

// Recorded reports the HITs listed in the ledger, optionally only some tasks'
func (t *Tracker) Recorded(ctx context.Context, taskNames ...string) (*ProgressReport, error) {
	ids, err := t.Ledger.HITIDs(taskNames...)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return t.ForIDs(ctx, ids)
}

// ForIDs reports the given HITs
func (t *Tracker) ForIDs(ctx context.Context, ids []string) (*ProgressReport, error) {
	tasks := t.taskIndex()

	out := &ProgressReport{}
	for _, id := range ids {
		hit, err := t.Client.GetHIT(ctx, id)
		if err != nil {
			return nil, err
		}
		out.add(rowFor(*hit, tasks[id]))
	}
	return out, nil
}

// taskIndex maps recorded HIT ids to task names; an unreadable ledger yields no names
func (t *Tracker) taskIndex() map[string]string {
	index := make(map[string]string)
	if t.Ledger == nil {
		return index
	}
	records, err := t.Ledger.Records()
	if err != nil {
		return index
	}
	for _, r := range records {
		index[r.HITID] = r.TaskName
	}
	return index
}

func rowFor(h models.HITStatus, task string) ProgressRow {
	return ProgressRow{
		HITID:     h.HITID,
		Task:      task,
		Status:    h.Status,
		Completed: h.AssignmentsCompleted,
		Pending:   h.AssignmentsPending,
		Available: h.AssignmentsAvailable,
		Max:       h.MaxAssignments,
	}
}
