package hits

import (
	"context"
	"fmt"

	"github.com/psantana5/hitctl/internal/ledger"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/internal/report"
	"github.com/psantana5/hitctl/pkg/logging"
)

// DeleteSummary reports a best-effort deletion batch
type DeleteSummary struct {
	Deleted []string          `json:"deleted"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Deleter removes HITs from the marketplace. The ledger is left untouched.
type Deleter struct {
	Client  marketplace.Client
	Ledger  *ledger.Ledger
	Logger  *logging.Logger
	Metrics *report.Metrics
}

// Delete removes each HIT in ids. A failure is logged and the batch moves on.
func (d *Deleter) Delete(ctx context.Context, ids []string) (DeleteSummary, error) {
	summary := DeleteSummary{Failed: make(map[string]string)}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := d.Client.DeleteHIT(ctx, id); err != nil {
			summary.Failed[id] = err.Error()
			if d.Metrics != nil {
				d.Metrics.DeleteFailures.Inc()
			}
			log.Error("Failed to delete HIT", logging.Fields{"hit_id": id, "error": err.Error()})
			continue
		}

		summary.Deleted = append(summary.Deleted, id)
		if d.Metrics != nil {
			d.Metrics.HITsDeleted.Inc()
		}
		log.Info("Deleted HIT", logging.Fields{"hit_id": id})
	}
	return summary, nil
}

// DeleteAll removes every HIT of the account
func (d *Deleter) DeleteAll(ctx context.Context) (DeleteSummary, error) {
	hits, err := d.Client.ListHITs(ctx)
	if err != nil {
		return DeleteSummary{}, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.HITID)
	}
	return d.Delete(ctx, ids)
}

// DeleteRecorded removes the HITs listed in the ledger, optionally only some tasks'
func (d *Deleter) DeleteRecorded(ctx context.Context, tasks ...string) (DeleteSummary, error) {
	ids, err := d.Ledger.HITIDs(tasks...)
	if err != nil {
		return DeleteSummary{}, fmt.Errorf("read ledger: %w", err)
	}
	return d.Delete(ctx, ids)
}
