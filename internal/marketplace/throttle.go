package marketplace

import (
	"context"
	"fmt"

	"github.com/psantana5/hitctl/pkg/models"
	"golang.org/x/time/rate"
)

// Throttled paces calls to another Client with a token bucket. A paginated
// call takes one token however many pages it reads.
type Throttled struct {
	next    Client
	limiter *rate.Limiter
}

// NewThrottled allows rps calls per second with bursts of burst.
// rps <= 0 returns next unchanged.
func NewThrottled(next Client, rps float64, burst int) Client {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *Throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("marketplace rate limit: %w", err)
	}
	return nil
}

func (t *Throttled) CreateHIT(ctx context.Context, req HITRequest) (*models.HITStatus, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.CreateHIT(ctx, req)
}

func (t *Throttled) GetHIT(ctx context.Context, hitID string) (*models.HITStatus, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.GetHIT(ctx, hitID)
}

func (t *Throttled) ListHITs(ctx context.Context) ([]models.HITStatus, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListHITs(ctx)
}

func (t *Throttled) DeleteHIT(ctx context.Context, hitID string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.DeleteHIT(ctx, hitID)
}

func (t *Throttled) ListAssignments(ctx context.Context, hitID string, statuses ...string) ([]models.Assignment, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListAssignments(ctx, hitID, statuses...)
}

func (t *Throttled) SendBonus(ctx context.Context, req BonusRequest) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.SendBonus(ctx, req)
}

func (t *Throttled) AccountBalance(ctx context.Context) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.AccountBalance(ctx)
}
