// Package generator produces the samples a task's HITs are built from.
//
// A generator is resolved once per task from its Kind. Samples are produced
// lazily and every call to Samples starts over, so re-running a generator on
// unchanged inputs yields the same sequence.
package generator

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/psantana5/hitctl/pkg/models"
)

var (
	// ErrNotDirectory is returned when a directory-scan generator has no dataset folder
	ErrNotDirectory = errors.New("dataset folder is not a directory")
	// ErrUnknownTask is returned when no generator kind is registered for a task
	ErrUnknownTask = errors.New("no generator registered for task")
	// ErrMalformed is returned for unreadable annotation or delimited files
	ErrMalformed = errors.New("malformed input file")
)

// Kind selects a generator implementation
type Kind string

const (
	KindStepByStep  Kind = "stepbystep"
	KindDescription Kind = "description"
	KindCheck       Kind = "check"
	KindCSV         Kind = "csv"
)

// Generator yields samples for one task
type Generator interface {
	Samples() iter.Seq2[models.Sample, error]
}

// Source carries everything a constructor may need
type Source struct {
	DatasetFolder string
	BucketURL     string
	// Path is the delimited file for KindCSV
	Path string
}

// Constructor builds a generator and validates its source up front
type Constructor func(src Source) (Generator, error)

var registry = map[Kind]Constructor{
	KindStepByStep:  NewStepByStep,
	KindDescription: NewDescription,
	KindCheck:       NewCheck,
	KindCSV:         NewCSV,
}

// Kinds lists the registered generator kinds
func Kinds() []Kind {
	return []Kind{KindStepByStep, KindDescription, KindCheck, KindCSV}
}

// ParseKind maps a name to a registered kind, ignoring case
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return k, nil
}

// KindForTask resolves the generator kind of a task: the explicit generator
// field when set, otherwise the kind sharing the task's name.
func KindForTask(task models.Task) (Kind, error) {
	if task.Generator != "" {
		return ParseKind(task.Generator)
	}
	return ParseKind(task.Name)
}

// New builds a generator of kind k
func New(k Kind, src Source) (Generator, error) {
	ctor, ok := registry[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, k)
	}
	return ctor(src)
}

// ForTask resolves and builds the generator for task
func ForTask(task models.Task, src Source) (Generator, error) {
	k, err := KindForTask(task)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.Name, err)
	}
	return New(k, src)
}

// Collect drains a generator. Use it only on inputs known to be small.
func Collect(g Generator) ([]models.Sample, error) {
	var out []models.Sample
	for sample, err := range g.Samples() {
		if err != nil {
			return out, err
		}
		out = append(out, sample)
	}
	return out, nil
}

// Nth returns the n-th sample (zero-based) of g
func Nth(g Generator, n int) (models.Sample, error) {
	if n < 0 {
		return nil, fmt.Errorf("sample index %d out of range", n)
	}
	i := 0
	for sample, err := range g.Samples() {
		if err != nil {
			return nil, err
		}
		if i == n {
			return sample, nil
		}
		i++
	}
	return nil, fmt.Errorf("sample index %d out of range (%d samples)", n, i)
}
