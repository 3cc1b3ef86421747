package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/psantana5/hitctl/pkg/models"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "jobs.yaml"), nil)
}

func record(task, hitID string, sample models.Sample) models.JobRecord {
	return models.JobRecord{
		HITID:      hitID,
		HITGroupID: "G-" + hitID,
		TaskName:   task,
		CreatedAt:  time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Sample:     sample,
	}
}

func TestExistsOnAbsentLedger(t *testing.T) {
	l := newLedger(t)

	if l.Exists("stepbystep", models.Sample{"id": "7"}) {
		t.Error("absent ledger must not contain anything")
	}
	if l.Exists("stepbystep", models.Sample{}) {
		t.Error("absent ledger must not match the empty sample")
	}
}

func TestAppendThenExists(t *testing.T) {
	samples := []models.Sample{
		{"id": "1"},
		{"before": "a.jpg", "after": "b.jpg", "id": "2"},
		{"instruction": "stack: red, blue", "image": "x.jpg", "id": "3"},
		{"sentence": "it's \"quoted\"", "_id": "0042"},
	}

	l := newLedger(t)
	for i, s := range samples {
		if err := l.Append(record("task", fmt.Sprintf("H%d", i), s)); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if !l.Exists("task", s) {
			t.Errorf("sample %v not found right after append", s)
		}
	}

	// A fresh handle re-reads the file from disk
	reopened := Open(l.Path(), nil)
	for _, s := range samples {
		if !reopened.Exists("task", s) {
			t.Errorf("sample %v not found after reopen", s)
		}
	}
}

func TestExistsIsScopedToTask(t *testing.T) {
	l := newLedger(t)
	s := models.Sample{"id": "7", "image": "a.jpg"}
	if err := l.Append(record("description", "H1", s)); err != nil {
		t.Fatal(err)
	}

	if l.Exists("check", s) {
		t.Error("record filed under description must not match check")
	}
}

func TestLedgerScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	body := `- id: "7"
  before: a.jpg
  after: b.jpg
  task_name: stepbystep
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	l := Open(path, nil)

	tests := []struct {
		task   string
		sample models.Sample
		want   bool
	}{
		{"stepbystep", models.Sample{"id": "7", "before": "a.jpg", "after": "b.jpg"}, true},
		{"stepbystep", models.Sample{"id": "8", "before": "c.jpg", "after": "d.jpg"}, false},
		{"description", models.Sample{"id": "7", "before": "a.jpg", "after": "b.jpg"}, false},
		// extra record keys are ignored, extra sample keys are not
		{"stepbystep", models.Sample{"id": "7"}, true},
		{"stepbystep", models.Sample{"id": "7", "image": "a.jpg"}, false},
	}
	for _, tt := range tests {
		if got := l.Exists(tt.task, tt.sample); got != tt.want {
			t.Errorf("Exists(%q, %v) = %v, want %v", tt.task, tt.sample, got, tt.want)
		}
	}
}

func TestExistsNormalisesScalars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	body := "- hit_id: H1\n  task_name: check\n  id: 7\n  gold: true\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	l := Open(path, nil)

	if !l.Exists("check", models.Sample{"id": "7", "gold": "true"}) {
		t.Error("numeric and boolean ledger values should compare as strings")
	}
}

func TestAppendRejectsReservedKeys(t *testing.T) {
	l := newLedger(t)
	err := l.Append(record("task", "H1", models.Sample{"task_name": "other"}))
	if !errors.Is(err, ErrReservedKey) {
		t.Fatalf("expected ErrReservedKey, got %v", err)
	}
	if _, statErr := os.Stat(l.Path()); !os.IsNotExist(statErr) {
		t.Error("rejected record must not touch the file")
	}
}

func TestAppendRepairsMissingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte("- hit_id: H0\n  task_name: t\n  id: \"0\""), 0644); err != nil {
		t.Fatal(err)
	}
	l := Open(path, nil)

	if err := l.Append(record("t", "H1", models.Sample{"id": "1"})); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := Open(path, nil).Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].HITGroupID != "G-H1" || !records[1].CreatedAt.Equal(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("record round-trip lost fields: %+v", records[1])
	}
}

func TestCorruptLedgerIsNotAMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	if err := os.WriteFile(path, []byte("- [unbalanced\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l := Open(path, nil)

	if l.Exists("t", models.Sample{"id": "1"}) {
		t.Error("corrupt ledger should report no match")
	}
	if _, err := l.Records(); err == nil {
		t.Error("Records should surface the parse error")
	}
}

func TestHITIDs(t *testing.T) {
	l := newLedger(t)
	for i, task := range []string{"a", "b", "a"} {
		if err := l.Append(record(task, fmt.Sprintf("H%d", i), models.Sample{"id": fmt.Sprint(i)})); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Append(record("a", "H0", models.Sample{"id": "dup"})); err != nil {
		t.Fatal(err)
	}

	all, err := l.HITIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 distinct ids, got %v", all)
	}

	onlyA, err := l.HITIDs("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyA) != 2 || onlyA[0] != "H0" || onlyA[1] != "H2" {
		t.Errorf("unexpected ids for task a: %v", onlyA)
	}

	forB, err := l.ForTask("b")
	if err != nil || len(forB) != 1 || forB[0].HITID != "H1" {
		t.Errorf("ForTask(b) = %v, %v", forB, err)
	}
}

func TestReadOnlyAppendStaysInMemory(t *testing.T) {
	l := newLedger(t)
	if err := l.Append(record("check", "H1", models.Sample{"id": "1"})); err != nil {
		t.Fatal(err)
	}

	ro := Open(l.Path(), nil)
	ro.ReadOnly = true
	if err := ro.Append(record("check", "H2", models.Sample{"id": "2"})); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !ro.Exists("check", models.Sample{"id": "1"}) || !ro.Exists("check", models.Sample{"id": "2"}) {
		t.Error("read-only ledger must see file records and its own appends")
	}

	if Open(l.Path(), nil).Exists("check", models.Sample{"id": "2"}) {
		t.Error("read-only append reached the file")
	}
}
