package models

import "time"

// Task is the static configuration for a class of HITs
type Task struct {
	Name               string `json:"name" yaml:"name" mapstructure:"name"`
	Title              string `json:"title" yaml:"title" mapstructure:"title"`
	Description        string `json:"description" yaml:"description" mapstructure:"description"`
	Reward             string `json:"reward" yaml:"reward" mapstructure:"reward"` // dollars, e.g. "0.10"
	Keywords           string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
	MaxAssignments     int32  `json:"max_assignments" yaml:"max_assignments" mapstructure:"max_assignments"`
	AssignmentDuration int64  `json:"assignment_duration" yaml:"assignment_duration" mapstructure:"assignment_duration"` // seconds
	Lifetime           int64  `json:"lifetime" yaml:"lifetime" mapstructure:"lifetime"`                                   // seconds
	AutoApprovalDelay  int64  `json:"auto_approval_delay" yaml:"auto_approval_delay" mapstructure:"auto_approval_delay"`   // seconds
	Template           string `json:"template" yaml:"template" mapstructure:"template"`
	Generator          string `json:"generator,omitempty" yaml:"generator,omitempty" mapstructure:"generator"`
	FrameHeight        int32  `json:"frame_height,omitempty" yaml:"frame_height,omitempty" mapstructure:"frame_height"`
}

// Sample is the per-job input substituted into a task's template
type Sample map[string]string

// Clone returns a copy of the sample
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// HITStatus is a snapshot of a HIT as reported by the marketplace
type HITStatus struct {
	HITID                string    `json:"hit_id"`
	HITGroupID           string    `json:"hit_group_id"`
	Title                string    `json:"title,omitempty"`
	Status               string    `json:"status"`
	MaxAssignments       int32     `json:"max_assignments"`
	AssignmentsPending   int32     `json:"assignments_pending"`
	AssignmentsAvailable int32     `json:"assignments_available"`
	AssignmentsCompleted int32     `json:"assignments_completed"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
}

// Assignable reports whether workers can still accept the HIT
func (h *HITStatus) Assignable() bool {
	return h.Status == HITStatusAssignable
}

// HIT status values reported by MTurk
const (
	HITStatusAssignable   = "Assignable"
	HITStatusUnassignable = "Unassignable"
	HITStatusReviewable   = "Reviewable"
	HITStatusReviewing    = "Reviewing"
	HITStatusDisposed     = "Disposed"
)

// Assignment is one worker's response to a HIT
type Assignment struct {
	AssignmentID string    `json:"assignment_id"`
	WorkerID     string    `json:"worker_id"`
	HITID        string    `json:"hit_id"`
	Status       string    `json:"status"`
	Answer       string    `json:"answer,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Assignment status values reported by MTurk
const (
	AssignmentSubmitted = "Submitted"
	AssignmentApproved  = "Approved"
	AssignmentRejected  = "Rejected"
)
