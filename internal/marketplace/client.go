// Package marketplace talks to the crowdsourcing marketplace (Amazon Mechanical Turk).
//
// Calls are passed straight through: no retries, no caching. Every error is
// returned to the caller, which decides whether a batch keeps going.
package marketplace

import (
	"context"
	"errors"

	"github.com/psantana5/hitctl/pkg/models"
)

// ErrHITNotFound is returned when the marketplace does not know a HIT id
var ErrHITNotFound = errors.New("hit not found")

// ErrDuplicateRequest is returned when a CreateHIT token was already used
var ErrDuplicateRequest = errors.New("duplicate request token")

// HITRequest describes one HIT to create
type HITRequest struct {
	Task     models.Task
	Question string
	// Annotation is stored on the HIT for the requester only
	Annotation string
	// UniqueToken makes CreateHIT idempotent for 24h on the marketplace side
	UniqueToken string
}

// BonusRequest pays a worker on top of the HIT reward
type BonusRequest struct {
	WorkerID     string
	AssignmentID string
	Amount       string
	Reason       string
	UniqueToken  string
}

// Client is the subset of the marketplace API hitctl uses
type Client interface {
	CreateHIT(ctx context.Context, req HITRequest) (*models.HITStatus, error)
	GetHIT(ctx context.Context, hitID string) (*models.HITStatus, error)
	// ListHITs follows pagination to exhaustion
	ListHITs(ctx context.Context) ([]models.HITStatus, error)
	// DeleteHIT expires an assignable HIT before deleting it
	DeleteHIT(ctx context.Context, hitID string) error
	// ListAssignments follows pagination; no statuses means all
	ListAssignments(ctx context.Context, hitID string, statuses ...string) ([]models.Assignment, error)
	SendBonus(ctx context.Context, req BonusRequest) error
	AccountBalance(ctx context.Context) (string, error)
}
