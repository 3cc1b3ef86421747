package hits

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/psantana5/hitctl/internal/ledger"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/internal/report"
	"github.com/psantana5/hitctl/pkg/models"
)

// staticGenerator replays a fixed list of samples
type staticGenerator struct {
	samples []models.Sample
	err     error
}

func (g staticGenerator) Samples() iter.Seq2[models.Sample, error] {
	return func(yield func(models.Sample, error) bool) {
		for _, s := range g.samples {
			if !yield(s, nil) {
				return
			}
		}
		if g.err != nil {
			yield(nil, g.err)
		}
	}
}

type stubRenderer struct{ err error }

func (r stubRenderer) Render(task models.Task, sample models.Sample) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "<q>" + task.Name + ":" + sample["id"] + "</q>", nil
}

var testTask = models.Task{Name: "stepbystep", Title: "Step", Reward: "0.10", MaxAssignments: 2, Lifetime: 3600, Template: "step.html"}

type fixture struct {
	client  *marketplace.Memory
	ledger  *ledger.Ledger
	metrics *report.Metrics
	sub     *Submitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		client:  marketplace.NewMemory(),
		ledger:  ledger.Open(filepath.Join(t.TempDir(), "jobs.yaml"), nil),
		metrics: report.NewMetrics(),
	}
	f.sub = &Submitter{
		Client:     f.client,
		Ledger:     f.ledger,
		Questions:  stubRenderer{},
		Metrics:    f.metrics,
		PreviewURL: func(g string) string { return "https://preview/?groupId=" + g },
		now:        func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	return f
}

func samples(ids ...string) []models.Sample {
	out := make([]models.Sample, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Sample{"id": id, "before": id + "_first.jpg", "after": id + "_last.jpg"})
	}
	return out
}

func TestSubmitRecordsEveryHIT(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1", "2")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if summary.Submitted != 2 || summary.Skipped != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 ledger records, got %d", len(records))
	}
	rec := records[0]
	if rec.TaskName != "stepbystep" || rec.Sample["id"] != "1" || rec.HITID != summary.HITIDs[0] {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Preview != "https://preview/?groupId=group-stepbystep" {
		t.Errorf("preview = %q", rec.Preview)
	}

	q, ok := f.client.Question(rec.HITID)
	if !ok || q != "<q>stepbystep:1</q>" {
		t.Errorf("question = %q", q)
	}
	if v := testutil.ToFloat64(f.metrics.HITsSubmitted.WithLabelValues("stepbystep")); v != 2 {
		t.Errorf("submitted counter = %v", v)
	}
}

func TestSubmitSkipsRecordedSamples(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1")}); err != nil {
		t.Fatal(err)
	}

	summary, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1", "2", "2")})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Submitted != 1 || summary.Skipped != 2 {
		t.Errorf("expected 1 submitted and 2 skipped, got %+v", summary)
	}

	hits, _ := f.client.ListHITs(ctx)
	if len(hits) != 2 {
		t.Errorf("expected 2 HITs on the marketplace, got %d", len(hits))
	}
}

func TestSubmitAllowDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sub.AllowDuplicate = true

	for i := 0; i < 2; i++ {
		if _, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1")}); err != nil {
			t.Fatal(err)
		}
	}
	hits, _ := f.client.ListHITs(ctx)
	if len(hits) != 2 {
		t.Errorf("expected the sample to be submitted twice, got %d HITs", len(hits))
	}
}

func TestSubmitSameSampleOtherTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1")}); err != nil {
		t.Fatal(err)
	}
	other := testTask
	other.Name = "description"
	summary, err := f.sub.Submit(ctx, other, staticGenerator{samples: samples("1")})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Submitted != 1 {
		t.Errorf("same sample under another task must be submitted, got %+v", summary)
	}
}

func TestSubmitLimit(t *testing.T) {
	f := newFixture(t)
	f.sub.Limit = 1

	summary, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: samples("1", "2", "3")})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Submitted != 1 {
		t.Errorf("limit not honoured: %+v", summary)
	}
}

func TestSubmitAbortsOnCreateFailure(t *testing.T) {
	f := newFixture(t)
	f.client.FailCreate = errors.New("insufficient funds")

	_, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: samples("1", "2")})
	if err == nil {
		t.Fatal("expected create failure to abort")
	}
	if records, _ := f.ledger.Records(); len(records) != 0 {
		t.Errorf("failed HIT must not be recorded, got %d records", len(records))
	}
	if v := testutil.ToFloat64(f.metrics.CreateFailures.WithLabelValues("stepbystep")); v != 1 {
		t.Errorf("create failure counter = %v", v)
	}
}

func TestSubmitAbortsOnGeneratorError(t *testing.T) {
	f := newFixture(t)
	genErr := errors.New("disk gone")

	summary, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: samples("1"), err: genErr})
	if !errors.Is(err, genErr) {
		t.Fatalf("expected generator error, got %v", err)
	}
	if summary.Submitted != 1 {
		t.Errorf("samples before the error should be submitted, got %+v", summary)
	}
}

func TestSubmitAbortsOnRenderError(t *testing.T) {
	f := newFixture(t)
	f.sub.Questions = stubRenderer{err: errors.New("bad template")}

	if _, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: samples("1")}); err == nil {
		t.Fatal("expected render error")
	}
	hits, _ := f.client.ListHITs(context.Background())
	if len(hits) != 0 {
		t.Errorf("no HIT should be created when rendering fails")
	}
}

func TestSubmitHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubmitAbortsOnCorruptLedger(t *testing.T) {
	f := newFixture(t)
	corrupt := "- hit_id: H1\n  task_name: stepbystep\n  id: \"1\"\n- hit_id: H2\n  task_name: stepbystep\n  id: \"2\"\n- hit_id: [oops\n"
	if err := os.WriteFile(f.ledger.Path(), []byte(corrupt), 0644); err != nil {
		t.Fatal(err)
	}

	summary, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: samples("1", "2")})
	if err == nil {
		t.Fatal("submit must fail on an unreadable ledger")
	}
	if summary.Submitted != 0 {
		t.Errorf("nothing may be submitted, got %+v", summary)
	}
	if hits, _ := f.client.ListHITs(context.Background()); len(hits) != 0 {
		t.Errorf("expected no HIT, got %d", len(hits))
	}
	data, err := os.ReadFile(f.ledger.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != corrupt {
		t.Error("the ledger file must be left untouched")
	}
}

func TestSubmitAllowDuplicateSkipsLedgerCheck(t *testing.T) {
	f := newFixture(t)
	if err := os.WriteFile(f.ledger.Path(), []byte("- hit_id: [oops\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f.sub.AllowDuplicate = true

	if _, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: samples("1")}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if hits, _ := f.client.ListHITs(context.Background()); len(hits) != 1 {
		t.Errorf("allow-duplicate skips the ledger check, got %d HITs", len(hits))
	}
}

func TestSubmitSendsStableToken(t *testing.T) {
	f := newFixture(t)
	sample := samples("1")

	if _, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: sample}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// A second run that lost its ledger reuses the token and is refused
	f.sub.Ledger = ledger.Open(filepath.Join(t.TempDir(), "jobs.yaml"), nil)
	_, err := f.sub.Submit(context.Background(), testTask, staticGenerator{samples: sample})
	if !errors.Is(err, marketplace.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
	if hits, _ := f.client.ListHITs(context.Background()); len(hits) != 1 {
		t.Errorf("expected a single HIT, got %d", len(hits))
	}
}

func TestHITToken(t *testing.T) {
	a := HITToken("check", models.Sample{"id": "1", "image": "x.jpg"})
	if a != HITToken("check", models.Sample{"image": "x.jpg", "id": "1"}) {
		t.Error("token must not depend on map order")
	}
	if a == HITToken("description", models.Sample{"id": "1", "image": "x.jpg"}) {
		t.Error("token must depend on the task")
	}
	if a == HITToken("check", models.Sample{"id": "2", "image": "x.jpg"}) {
		t.Error("token must depend on the sample")
	}
}

func TestDeleteContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1", "2", "3")})
	if err != nil {
		t.Fatal(err)
	}
	broken := summary.HITIDs[1]
	f.client.FailDelete[broken] = errors.New("pending assignments")

	d := &Deleter{Client: f.client, Ledger: f.ledger, Metrics: f.metrics}
	result, err := d.DeleteRecorded(ctx)
	if err != nil {
		t.Fatalf("DeleteRecorded: %v", err)
	}

	if len(result.Deleted) != 2 {
		t.Errorf("expected 2 deletions, got %v", result.Deleted)
	}
	if _, ok := result.Failed[broken]; !ok {
		t.Errorf("expected %s to be reported as failed, got %v", broken, result.Failed)
	}
	if v := testutil.ToFloat64(f.metrics.DeleteFailures); v != 1 {
		t.Errorf("delete failure counter = %v", v)
	}

	// The ledger is not rewritten by a deletion
	if records, _ := f.ledger.Records(); len(records) != 3 {
		t.Errorf("ledger should keep all 3 records, got %d", len(records))
	}
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1", "2")}); err != nil {
		t.Fatal(err)
	}

	d := &Deleter{Client: f.client, Ledger: f.ledger}
	result, err := d.DeleteAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Deleted) != 2 || len(result.Failed) != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if hits, _ := f.client.ListHITs(ctx); len(hits) != 0 {
		t.Errorf("expected no HITs left, got %d", len(hits))
	}
}

func TestProgressRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	summary, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1", "2")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.client.AddAssignment(summary.HITIDs[0], "W1", models.AssignmentSubmitted, ""); err != nil {
		t.Fatal(err)
	}

	tracker := &Tracker{Client: f.client, Ledger: f.ledger}
	got, err := tracker.Recorded(ctx)
	if err != nil {
		t.Fatalf("Recorded: %v", err)
	}

	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
	if got.Rows[0].Task != "stepbystep" || got.Rows[0].Completed != 1 {
		t.Errorf("unexpected first row %+v", got.Rows[0])
	}
	if got.Completed != 1 || got.Expected != 4 || got.Percent() != 25 {
		t.Errorf("totals wrong: %+v (%.1f%%)", got, got.Percent())
	}
}

func TestProgressUnknownHIT(t *testing.T) {
	f := newFixture(t)
	tracker := &Tracker{Client: f.client, Ledger: f.ledger}

	if _, err := tracker.ForIDs(context.Background(), []string{"missing"}); !errors.Is(err, marketplace.ErrHITNotFound) {
		t.Errorf("expected ErrHITNotFound, got %v", err)
	}
}

func TestBonusPaysApprovedAssignmentsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	summary, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1")})
	if err != nil {
		t.Fatal(err)
	}
	hitID := summary.HITIDs[0]
	approved, _ := f.client.AddAssignment(hitID, "W1", models.AssignmentApproved, "")
	if _, err := f.client.AddAssignment(hitID, "W2", models.AssignmentRejected, ""); err != nil {
		t.Fatal(err)
	}

	payer := &Payer{Client: f.client, Metrics: f.metrics}
	opts := BonusOptions{HITIDs: []string{hitID}, Amount: "0.25", Reason: "great work"}

	for i := 0; i < 2; i++ {
		payments, err := payer.Pay(ctx, opts)
		if err != nil {
			t.Fatalf("Pay: %v", err)
		}
		if len(payments) != 1 || payments[0].WorkerID != "W1" {
			t.Fatalf("unexpected payments %+v", payments)
		}
	}

	bonuses := f.client.Bonuses()
	if len(bonuses) != 1 {
		t.Fatalf("rerun must not pay twice, got %d bonuses", len(bonuses))
	}
	if bonuses[0].UniqueToken != BonusToken(approved.AssignmentID) {
		t.Errorf("unexpected token %s", bonuses[0].UniqueToken)
	}
}

func TestBonusValidation(t *testing.T) {
	payer := &Payer{Client: marketplace.NewMemory()}
	tests := []BonusOptions{
		{Amount: "abc", Reason: "r"},
		{Amount: "0", Reason: "r"},
		{Amount: "-1", Reason: "r"},
		{Amount: "0.50"},
	}
	for _, opts := range tests {
		if _, err := payer.Pay(context.Background(), opts); err == nil {
			t.Errorf("expected validation error for %+v", opts)
		}
	}
}

func TestBonusTokenStable(t *testing.T) {
	if BonusToken("A1") != BonusToken("A1") {
		t.Error("token must be deterministic")
	}
	if BonusToken("A1") == BonusToken("A2") {
		t.Error("tokens must differ per assignment")
	}
}

const twoFieldAnswer = `<?xml version="1.0" encoding="UTF-8"?>
<QuestionFormAnswers xmlns="http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2005-10-01/QuestionFormAnswers.xsd">
  <Answer><QuestionIdentifier>description</QuestionIdentifier><FreeText>red on blue</FreeText></Answer>
  <Answer><QuestionIdentifier>confidence</QuestionIdentifier><FreeText>high</FreeText></Answer>
</QuestionFormAnswers>`

func TestAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	summary, err := f.sub.Submit(ctx, testTask, staticGenerator{samples: samples("1")})
	if err != nil {
		t.Fatal(err)
	}
	hitID := summary.HITIDs[0]
	if _, err := f.client.AddAssignment(hitID, "W1", models.AssignmentSubmitted, twoFieldAnswer); err != nil {
		t.Fatal(err)
	}

	answers, err := Answers(ctx, f.client, hitID)
	if err != nil {
		t.Fatalf("Answers: %v", err)
	}
	if len(answers) != 1 || len(answers[0].Fields) != 2 {
		t.Fatalf("unexpected answers %+v", answers)
	}
	if answers[0].Fields[0].QuestionIdentifier != "description" || answers[0].Fields[0].FreeText != "red on blue" {
		t.Errorf("unexpected field %+v", answers[0].Fields[0])
	}
}

func TestParseAnswerRejectsGarbage(t *testing.T) {
	if _, err := ParseAnswer("not xml"); err == nil {
		t.Error("expected parse error")
	}
}
