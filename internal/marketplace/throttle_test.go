package marketplace

import (
	"context"
	"testing"
	"time"

	"github.com/psantana5/hitctl/pkg/models"
)

func TestThrottledPassesThrough(t *testing.T) {
	mem := NewMemory()
	c := NewThrottled(mem, 1000, 10)

	hit, err := c.CreateHIT(context.Background(), HITRequest{Task: models.Task{Name: "check", MaxAssignments: 2}})
	if err != nil {
		t.Fatalf("CreateHIT: %v", err)
	}
	got, err := c.GetHIT(context.Background(), hit.HITID)
	if err != nil {
		t.Fatalf("GetHIT: %v", err)
	}
	if got.MaxAssignments != 2 {
		t.Errorf("MaxAssignments = %d", got.MaxAssignments)
	}
}

func TestThrottledDisabled(t *testing.T) {
	mem := NewMemory()
	if c := NewThrottled(mem, 0, 5); c != Client(mem) {
		t.Error("rps 0 should return the wrapped client")
	}
}

func TestThrottledHonoursDeadline(t *testing.T) {
	c := NewThrottled(NewMemory(), 0.001, 1)

	if _, err := c.AccountBalance(context.Background()); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.AccountBalance(ctx); err == nil {
		t.Error("second call should fail: the next token is far past the deadline")
	}
}
