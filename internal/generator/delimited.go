package generator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/psantana5/hitctl/pkg/models"
)

type delimited struct {
	path  string
	comma rune
}

// NewCSV reads a comma-separated file whose first line names the fields
func NewCSV(src Source) (Generator, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("%w: no delimited file given", ErrMalformed)
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("delimited file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrMalformed, src.Path)
	}
	return &delimited{path: src.Path, comma: ','}, nil
}

func (g *delimited) Samples() iter.Seq2[models.Sample, error] {
	return func(yield func(models.Sample, error) bool) {
		f, err := os.Open(g.path)
		if err != nil {
			yield(nil, fmt.Errorf("failed to open %s: %w", g.path, err))
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.Comma = g.comma

		header, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("missing header row")
			}
			yield(nil, fmt.Errorf("%w: %s: %v", ErrMalformed, g.path, err))
			return
		}
		if len(header) > 0 {
			header[0] = strings.TrimPrefix(header[0], "\ufeff")
		}
		for i := range header {
			header[i] = strings.TrimSpace(header[i])
			if header[i] == "" {
				yield(nil, fmt.Errorf("%w: %s: empty column name at position %d", ErrMalformed, g.path, i))
				return
			}
		}

		for {
			row, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("%w: %s: %v", ErrMalformed, g.path, err))
				return
			}

			sample := make(models.Sample, len(header))
			for i, key := range header {
				sample[key] = row[i]
			}
			if !yield(sample, nil) {
				return
			}
		}
	}
}
