package hits

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/pkg/models"
)

// AnswerField is one input field of a submitted assignment
type AnswerField struct {
	QuestionIdentifier string `xml:"QuestionIdentifier" json:"question"`
	FreeText           string `xml:"FreeText" json:"answer"`
}

// AssignmentAnswers pairs an assignment with its decoded fields
type AssignmentAnswers struct {
	models.Assignment
	Fields []AnswerField `json:"fields"`
}

type questionFormAnswers struct {
	XMLName xml.Name      `xml:"QuestionFormAnswers"`
	Answers []AnswerField `xml:"Answer"`
}

// ParseAnswer decodes a QuestionFormAnswers document. One field or many
// decode the same way.
func ParseAnswer(doc string) ([]AnswerField, error) {
	var parsed questionFormAnswers
	if err := xml.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("parse answer: %w", err)
	}
	return parsed.Answers, nil
}

// Answers lists the assignments of a HIT with decoded answers.
// No statuses means only Submitted assignments, the ones awaiting review.
func Answers(ctx context.Context, client marketplace.Client, hitID string, statuses ...string) ([]AssignmentAnswers, error) {
	if len(statuses) == 0 {
		statuses = []string{models.AssignmentSubmitted}
	}
	assignments, err := client.ListAssignments(ctx, hitID, statuses...)
	if err != nil {
		return nil, err
	}

	out := make([]AssignmentAnswers, 0, len(assignments))
	for _, a := range assignments {
		fields, err := ParseAnswer(a.Answer)
		if err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.AssignmentID, err)
		}
		out = append(out, AssignmentAnswers{Assignment: a, Fields: fields})
	}
	return out, nil
}
