package marketplace

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psantana5/hitctl/pkg/models"
)

// Memory is an in-process marketplace used by --dry-run and tests.
// Nothing leaves the process.
type Memory struct {
	mu          sync.Mutex
	hits        map[string]*memoryHIT
	order       []string
	bonuses     []BonusRequest
	bonusTokens map[string]bool
	hitTokens   map[string]string
	balance     string
	now         func() time.Time

	// FailDelete makes DeleteHIT fail for the listed HIT ids
	FailDelete map[string]error
	// FailCreate makes every CreateHIT fail when set
	FailCreate error
}

type memoryHIT struct {
	status      models.HITStatus
	question    string
	annotation  string
	assignments []models.Assignment
}

// NewMemory creates an empty in-memory marketplace
func NewMemory() *Memory {
	return &Memory{
		hits:        make(map[string]*memoryHIT),
		bonusTokens: make(map[string]bool),
		hitTokens:   make(map[string]string),
		balance:     "10000.00",
		now:         time.Now,
		FailDelete:  make(map[string]error),
	}
}

func (m *Memory) CreateHIT(_ context.Context, req HITRequest) (*models.HITStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreate != nil {
		return nil, m.FailCreate
	}
	if prev, ok := m.hitTokens[req.UniqueToken]; ok && req.UniqueToken != "" {
		return nil, fmt.Errorf("%w: HIT %s already created with token %s", ErrDuplicateRequest, prev, req.UniqueToken)
	}

	now := m.now()
	id := uuid.New().String()
	status := models.HITStatus{
		HITID:                id,
		HITGroupID:           "group-" + req.Task.Name,
		Title:                req.Task.Title,
		Status:               models.HITStatusAssignable,
		MaxAssignments:       req.Task.MaxAssignments,
		AssignmentsAvailable: req.Task.MaxAssignments,
		CreatedAt:            now,
		ExpiresAt:            now.Add(time.Duration(req.Task.Lifetime) * time.Second),
	}
	m.hits[id] = &memoryHIT{status: status, question: req.Question, annotation: req.Annotation}
	if req.UniqueToken != "" {
		m.hitTokens[req.UniqueToken] = id
	}
	m.order = append(m.order, id)

	out := status
	return &out, nil
}

func (m *Memory) GetHIT(_ context.Context, hitID string) (*models.HITStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hits[hitID]
	if !ok {
		return nil, fmt.Errorf("get hit %s: %w", hitID, ErrHITNotFound)
	}
	out := h.status
	return &out, nil
}

func (m *Memory) ListHITs(_ context.Context) ([]models.HITStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := make([]models.HITStatus, 0, len(m.order))
	for _, id := range m.order {
		hits = append(hits, m.hits[id].status)
	}
	return hits, nil
}

func (m *Memory) DeleteHIT(_ context.Context, hitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.FailDelete[hitID]; ok {
		return fmt.Errorf("delete hit %s: %w", hitID, err)
	}
	if _, ok := m.hits[hitID]; !ok {
		return fmt.Errorf("delete hit %s: %w", hitID, ErrHITNotFound)
	}

	delete(m.hits, hitID)
	for i, id := range m.order {
		if id == hitID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ListAssignments(_ context.Context, hitID string, statuses ...string) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hits[hitID]
	if !ok {
		return nil, fmt.Errorf("list assignments for %s: %w", hitID, ErrHITNotFound)
	}

	wanted := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	var out []models.Assignment
	for _, a := range h.assignments {
		if len(wanted) == 0 || wanted[a.Status] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) SendBonus(_ context.Context, req BonusRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The marketplace ignores a repeated token instead of paying twice
	if req.UniqueToken != "" && m.bonusTokens[req.UniqueToken] {
		return nil
	}
	if req.UniqueToken != "" {
		m.bonusTokens[req.UniqueToken] = true
	}
	m.bonuses = append(m.bonuses, req)
	return nil
}

func (m *Memory) AccountBalance(_ context.Context) (string, error) {
	return m.balance, nil
}

// AddAssignment simulates a worker accepting and submitting a HIT
func (m *Memory) AddAssignment(hitID, workerID, status, answer string) (models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hits[hitID]
	if !ok {
		return models.Assignment{}, fmt.Errorf("add assignment: %w", ErrHITNotFound)
	}

	a := models.Assignment{
		AssignmentID: uuid.New().String(),
		WorkerID:     workerID,
		HITID:        hitID,
		Status:       status,
		Answer:       answer,
		SubmittedAt:  m.now(),
	}
	h.assignments = append(h.assignments, a)
	h.status.AssignmentsCompleted++
	if h.status.AssignmentsAvailable > 0 {
		h.status.AssignmentsAvailable--
	}
	if h.status.AssignmentsAvailable == 0 {
		h.status.Status = models.HITStatusReviewable
	}
	return a, nil
}

// Question returns the question markup a HIT was created with
func (m *Memory) Question(hitID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hits[hitID]
	if !ok {
		return "", false
	}
	return h.question, true
}

// Bonuses returns the bonuses paid so far, ordered by assignment id
func (m *Memory) Bonuses() []BonusRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]BonusRequest, len(m.bonuses))
	copy(out, m.bonuses)
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out
}
