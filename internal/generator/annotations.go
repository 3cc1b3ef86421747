package generator

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/psantana5/hitctl/pkg/models"
	"github.com/spf13/cast"
)

// AnnotationsFile is looked up inside the dataset folder
const AnnotationsFile = "annotations.json"

type check struct {
	path      string
	bucketURL string
}

// NewCheck emits one sample per entry of annotations.json: the instruction,
// the simulation id and the URL of its first frame.
func NewCheck(src Source) (Generator, error) {
	if err := requireDir(src.DatasetFolder); err != nil {
		return nil, err
	}
	path := filepath.Join(src.DatasetFolder, AnnotationsFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("annotation file: %w", err)
	}
	return &check{path: path, bucketURL: src.BucketURL}, nil
}

func (g *check) Samples() iter.Seq2[models.Sample, error] {
	return func(yield func(models.Sample, error) bool) {
		data, err := os.ReadFile(g.path)
		if err != nil {
			yield(nil, fmt.Errorf("failed to read %s: %w", g.path, err))
			return
		}

		var annotations []map[string]interface{}
		if err := json.Unmarshal(data, &annotations); err != nil {
			yield(nil, fmt.Errorf("%w: %s: %v", ErrMalformed, g.path, err))
			return
		}

		for i, a := range annotations {
			var fields [3]string
			for j, key := range []string{"instruction", "id", "num_cubes"} {
				v, err := requiredField(a, key)
				if err != nil {
					yield(nil, fmt.Errorf("%w: %s: entry %d: %v", ErrMalformed, g.path, i, err))
					return
				}
				fields[j] = v
			}
			instruction, id, numCubes := fields[0], fields[1], fields[2]
			sample := models.Sample{
				"instruction": instruction,
				"id":          id,
				"image":       fmt.Sprintf("%stower%s_%s%s", g.bucketURL, numCubes, id, firstSuffix),
			}
			if !yield(sample, nil) {
				return
			}
		}
	}
}

// requiredField returns a[key] as a non-empty string
func requiredField(a map[string]interface{}, key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing %s", key)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	if s == "" {
		return "", fmt.Errorf("empty %s", key)
	}
	return s, nil
}
