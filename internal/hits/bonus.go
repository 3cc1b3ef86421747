package hits

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/internal/report"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/psantana5/hitctl/pkg/models"
)

// bonusNamespace scopes bonus request tokens
var bonusNamespace = uuid.MustParse("6f1c3b0e-2a4d-4c55-9a57-3e0f1b8d7c21")

// BonusToken is the idempotency token for paying a bonus on an assignment.
// The marketplace refuses a second payment with the same token.
func BonusToken(assignmentID string) string {
	return uuid.NewSHA1(bonusNamespace, []byte(assignmentID)).String()
}

// BonusOptions selects who gets paid and how much
type BonusOptions struct {
	HITIDs []string
	// Amount in dollars, e.g. "0.25"
	Amount string
	Reason string
	// Statuses of assignments eligible for a bonus; defaults to Approved
	Statuses []string
}

// BonusPayment is one bonus sent
type BonusPayment struct {
	HITID        string `json:"hit_id"`
	AssignmentID string `json:"assignment_id"`
	WorkerID     string `json:"worker_id"`
	Amount       string `json:"amount"`
}

// Payer sends bonuses to the workers of selected HITs
type Payer struct {
	Client  marketplace.Client
	Logger  *logging.Logger
	Metrics *report.Metrics
}

// Pay sends one bonus per eligible assignment. The first failed call aborts;
// rerunning is safe because every payment carries a stable token.
func (p *Payer) Pay(ctx context.Context, opts BonusOptions) ([]BonusPayment, error) {
	if err := validateAmount(opts.Amount); err != nil {
		return nil, err
	}
	if opts.Reason == "" {
		return nil, errors.New("a bonus reason is required")
	}
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = []string{models.AssignmentApproved}
	}
	log := p.Logger
	if log == nil {
		log = logging.Discard()
	}

	var payments []BonusPayment
	for _, hitID := range opts.HITIDs {
		assignments, err := p.Client.ListAssignments(ctx, hitID, statuses...)
		if err != nil {
			return payments, err
		}

		for _, a := range assignments {
			if err := ctx.Err(); err != nil {
				return payments, err
			}
			err := p.Client.SendBonus(ctx, marketplace.BonusRequest{
				WorkerID:     a.WorkerID,
				AssignmentID: a.AssignmentID,
				Amount:       opts.Amount,
				Reason:       opts.Reason,
				UniqueToken:  BonusToken(a.AssignmentID),
			})
			if err != nil {
				if p.Metrics != nil {
					p.Metrics.BonusFailures.Inc()
				}
				return payments, err
			}

			if p.Metrics != nil {
				p.Metrics.BonusesPaid.Inc()
			}
			log.Info("Bonus sent", logging.Fields{"hit_id": hitID, "worker_id": a.WorkerID, "amount": opts.Amount})
			payments = append(payments, BonusPayment{
				HITID:        hitID,
				AssignmentID: a.AssignmentID,
				WorkerID:     a.WorkerID,
				Amount:       opts.Amount,
			})
		}
	}
	return payments, nil
}

func validateAmount(amount string) error {
	v, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return fmt.Errorf("invalid bonus amount %q: %w", amount, err)
	}
	if v <= 0 {
		return fmt.Errorf("bonus amount must be positive, got %s", amount)
	}
	return nil
}
