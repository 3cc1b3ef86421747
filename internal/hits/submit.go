// Package hits implements the HIT workflows behind the CLI: submitting samples,
// deleting HITs, reporting progress and paying bonuses.
package hits

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/hitctl/internal/generator"
	"github.com/psantana5/hitctl/internal/ledger"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/internal/report"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/psantana5/hitctl/pkg/models"
)

// Renderer produces the question document for one sample
type Renderer interface {
	Render(task models.Task, sample models.Sample) (string, error)
}

// SubmitSummary counts what happened to a task's samples
type SubmitSummary struct {
	Task      string   `json:"task"`
	Submitted int      `json:"submitted"`
	Skipped   int      `json:"skipped"`
	HITIDs    []string `json:"hit_ids,omitempty"`
}

// hitNamespace scopes CreateHIT request tokens
var hitNamespace = uuid.MustParse("0b8f4a52-91d6-4c1e-8f3a-5d2c7e6b1a94")

// HITToken is the CreateHIT idempotency token for a task's sample. A HIT
// created but not recorded is not posted again by a rerun within the
// marketplace's token window.
func HITToken(taskName string, sample models.Sample) string {
	keys := make([]string, 0, len(sample))
	for k := range sample {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(taskName)
	for _, k := range keys {
		fmt.Fprintf(&b, "\x00%s=%s", k, sample[k])
	}
	return uuid.NewSHA1(hitNamespace, []byte(b.String())).String()
}

// Submitter creates one HIT per new sample and records it in the ledger
type Submitter struct {
	Client    marketplace.Client
	Ledger    *ledger.Ledger
	Questions Renderer
	Logger    *logging.Logger
	Metrics   *report.Metrics

	// PreviewURL maps a HIT group id to its worker preview link
	PreviewURL func(groupID string) string
	// AllowDuplicate submits samples even when the ledger already holds them
	AllowDuplicate bool
	// Limit caps the number of HITs created per task; 0 means no cap
	Limit int

	now func() time.Time
}

// Submit walks the generator and submits every sample not yet in the ledger.
// The first failure aborts the run; HITs created before it stay recorded.
func (s *Submitter) Submit(ctx context.Context, task models.Task, gen generator.Generator) (SubmitSummary, error) {
	summary := SubmitSummary{Task: task.Name}
	log := s.logger().WithField("task", task.Name)

	// An unreadable ledger would make every sample look new
	if !s.AllowDuplicate {
		if _, err := s.Ledger.Records(); err != nil {
			return summary, fmt.Errorf("task %s: refusing to submit: %w", task.Name, err)
		}
	}

	for sample, err := range gen.Samples() {
		if err != nil {
			return summary, fmt.Errorf("task %s: %w", task.Name, err)
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if s.Limit > 0 && summary.Submitted >= s.Limit {
			log.Info("Submission limit reached", logging.Fields{"limit": s.Limit})
			break
		}

		if !s.AllowDuplicate && s.Ledger.Exists(task.Name, sample) {
			summary.Skipped++
			if s.Metrics != nil {
				s.Metrics.SamplesSkipped.WithLabelValues(task.Name).Inc()
			}
			log.Debug("Sample already submitted", logging.Fields{"sample": sample})
			continue
		}

		hit, err := s.submitOne(ctx, task, sample)
		if err != nil {
			if s.Metrics != nil {
				s.Metrics.CreateFailures.WithLabelValues(task.Name).Inc()
			}
			return summary, err
		}

		summary.Submitted++
		summary.HITIDs = append(summary.HITIDs, hit.HITID)
		if s.Metrics != nil {
			s.Metrics.HITsSubmitted.WithLabelValues(task.Name).Inc()
		}
	}

	log.Info("Task submitted", logging.Fields{"submitted": summary.Submitted, "skipped": summary.Skipped})
	return summary, nil
}

func (s *Submitter) submitOne(ctx context.Context, task models.Task, sample models.Sample) (*models.HITStatus, error) {
	question, err := s.Questions.Render(task, sample)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.Name, err)
	}

	req := marketplace.HITRequest{
		Task:       task,
		Question:   question,
		Annotation: "task=" + task.Name,
	}
	if !s.AllowDuplicate {
		req.UniqueToken = HITToken(task.Name, sample)
	}
	hit, err := s.Client.CreateHIT(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.Name, err)
	}

	preview := ""
	if s.PreviewURL != nil {
		preview = s.PreviewURL(hit.HITGroupID)
	}

	record := models.JobRecord{
		HITID:      hit.HITID,
		HITGroupID: hit.HITGroupID,
		TaskName:   task.Name,
		Preview:    preview,
		CreatedAt:  s.clock()(),
		Sample:     sample.Clone(),
	}
	if err := s.Ledger.Append(record); err != nil {
		// The HIT exists remotely but the next run would submit it again
		return nil, fmt.Errorf("hit %s created but not recorded: %w", hit.HITID, err)
	}

	s.logger().Info("A new HIT has been created", logging.Fields{
		"task":    task.Name,
		"hit_id":  hit.HITID,
		"preview": preview,
	})
	return hit, nil
}

func (s *Submitter) logger() *logging.Logger {
	if s.Logger == nil {
		return logging.Discard()
	}
	return s.Logger
}

func (s *Submitter) clock() func() time.Time {
	if s.now == nil {
		return time.Now
	}
	return s.now
}
