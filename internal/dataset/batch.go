package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/psantana5/hitctl/internal/generator"
	"github.com/psantana5/hitctl/pkg/models"
)

// ExportBatch writes samples as a marketplace batch CSV: each row carries up to
// group samples, with columns <field><i> for the i-th sample of the row.
// Columns come from the first sample's fields.
func ExportBatch(w io.Writer, samples []models.Sample, group int) error {
	if group < 1 {
		return fmt.Errorf("group size must be at least 1, got %d", group)
	}
	if len(samples) == 0 {
		return errors.New("no samples to export")
	}

	keys := make([]string, 0, len(samples[0]))
	for k := range samples[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := make([]string, 0, group*len(keys))
	for i := 0; i < group; i++ {
		for _, k := range keys {
			header = append(header, k+strconv.Itoa(i))
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for start := 0; start < len(samples); start += group {
		row := make([]string, 0, len(header))
		for i := 0; i < group; i++ {
			var s models.Sample
			if start+i < len(samples) {
				s = samples[start+i]
			}
			for _, k := range keys {
				row = append(row, s[k])
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportGroupedJSON writes one JSON array of up to group samples per line.
// A trailing partial group is written too. It returns the number of samples.
func ExportGroupedJSON(w io.Writer, gen generator.Generator, group int) (int, error) {
	if group < 1 {
		return 0, fmt.Errorf("group size must be at least 1, got %d", group)
	}

	enc := json.NewEncoder(w)
	buffer := make([]models.Sample, 0, group)
	count := 0
	for sample, err := range gen.Samples() {
		if err != nil {
			return count, err
		}
		buffer = append(buffer, sample)
		count++
		if len(buffer) == group {
			if err := enc.Encode(buffer); err != nil {
				return count, err
			}
			buffer = buffer[:0]
		}
	}
	if len(buffer) > 0 {
		if err := enc.Encode(buffer); err != nil {
			return count, err
		}
	}
	return count, nil
}
