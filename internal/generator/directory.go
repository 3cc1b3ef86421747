package generator

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/psantana5/hitctl/pkg/models"
)

const (
	firstSuffix = "_first.jpg"
	lastSuffix  = "_last.jpg"
)

// stepByStep pairs <prefix>_first.jpg with <prefix>_last.jpg
type stepByStep struct {
	folder    string
	bucketURL string
}

// NewStepByStep emits before/after image pairs and the simulation id
func NewStepByStep(src Source) (Generator, error) {
	if err := requireDir(src.DatasetFolder); err != nil {
		return nil, err
	}
	return &stepByStep{folder: src.DatasetFolder, bucketURL: src.BucketURL}, nil
}

func (g *stepByStep) Samples() iter.Seq2[models.Sample, error] {
	return func(yield func(models.Sample, error) bool) {
		names, err := scan(g.folder, firstSuffix)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, first := range names {
			last := strings.TrimSuffix(first, firstSuffix) + lastSuffix
			sample := models.Sample{
				"before": g.bucketURL + first,
				"after":  g.bucketURL + last,
				"id":     simulationID(first),
			}
			if !yield(sample, nil) {
				return
			}
		}
	}
}

// description emits the final frame of each simulation
type description struct {
	folder    string
	bucketURL string
}

// NewDescription emits one sample per <prefix>_last.jpg
func NewDescription(src Source) (Generator, error) {
	if err := requireDir(src.DatasetFolder); err != nil {
		return nil, err
	}
	return &description{folder: src.DatasetFolder, bucketURL: src.BucketURL}, nil
}

func (g *description) Samples() iter.Seq2[models.Sample, error] {
	return func(yield func(models.Sample, error) bool) {
		names, err := scan(g.folder, lastSuffix)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, last := range names {
			sample := models.Sample{
				"image": g.bucketURL + last,
				"id":    simulationID(last),
			}
			if !yield(sample, nil) {
				return
			}
		}
	}
}

func requireDir(folder string) error {
	if folder == "" {
		return fmt.Errorf("%w: dataset_folder is not set", ErrNotDirectory)
	}
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, folder)
	}
	return nil
}

// scan returns base names in folder ending with suffix, in lexical order
func scan(folder, suffix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(folder, "*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", folder, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names, nil
}

// simulationID is the second-to-last underscore field: tower05_00042_first.jpg -> 00042
func simulationID(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
