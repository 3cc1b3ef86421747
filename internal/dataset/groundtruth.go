// Package dataset holds the local bookkeeping around a HIT dataset: ground
// truth lookups, review files and batch exports.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AnnotationFile is the per-simulation annotation name
const AnnotationFile = "annotation.json"

// SimulationDir is <folder>/<NN>/<NNNNN> for a tower of numCubes cubes
func SimulationDir(folder string, numCubes, ref int) string {
	return filepath.Join(folder, fmt.Sprintf("%02d", numCubes), fmt.Sprintf("%05d", ref))
}

// GroundTruth returns the colour sequence recorded for one simulation
func GroundTruth(folder string, numCubes, ref int) ([]string, error) {
	dir := SimulationDir(folder, numCubes, ref)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("can't find %s", dir)
	}

	data, err := os.ReadFile(filepath.Join(dir, AnnotationFile))
	if err != nil {
		return nil, fmt.Errorf("read annotation: %w", err)
	}

	var annotation struct {
		Color []string `json:"color"`
	}
	if err := json.Unmarshal(data, &annotation); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(dir, AnnotationFile), err)
	}
	return annotation.Color, nil
}

// CheckEntry is one reviewed answer in a check file
type CheckEntry struct {
	Answer      string   `json:"answer"`
	NumCubes    string   `json:"num_cubes"`
	Ref         string   `json:"ref"`
	GroundTruth []string `json:"ground_truth,omitempty"`
}

var reviewedStatuses = map[string]bool{
	"approved":   true,
	"to approve": true,
}

// CheckFile turns a results export into a JSON-lines check file, keeping only
// approved (or about to be approved) answers. With a dataset folder each entry
// also carries its ground truth. It returns the number of entries written.
func CheckFile(resultsCSV, output, datasetFolder string) (int, error) {
	in, err := os.Open(resultsCSV)
	if err != nil {
		return 0, fmt.Errorf("can't find %s: %w", resultsCSV, err)
	}
	defer in.Close()

	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%s: missing header row", resultsCSV)
		}
		return 0, fmt.Errorf("%s: %w", resultsCSV, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"status", "answer", "numCubes", "ref"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("%s: missing column %q", resultsCSV, required)
		}
	}

	var entries []CheckEntry
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", resultsCSV, err)
		}
		if !reviewedStatuses[strings.ToLower(strings.TrimSpace(row[col["status"]]))] {
			continue
		}

		entry := CheckEntry{
			Answer:   row[col["answer"]],
			NumCubes: row[col["numCubes"]],
			Ref:      row[col["ref"]],
		}
		if datasetFolder != "" {
			truth, err := lookupTruth(datasetFolder, entry)
			if err != nil {
				return 0, err
			}
			entry.GroundTruth = truth
		}
		entries = append(entries, entry)
	}

	out, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", output, err)
	}
	if err := writeEntries(out, entries); err != nil {
		out.Close()
		return 0, fmt.Errorf("write %s: %w", output, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", output, err)
	}
	return len(entries), nil
}

func writeEntries(w io.Writer, entries []CheckEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func lookupTruth(folder string, e CheckEntry) ([]string, error) {
	numCubes, err := strconv.Atoi(strings.TrimSpace(e.NumCubes))
	if err != nil {
		return nil, fmt.Errorf("invalid numCubes %q: %w", e.NumCubes, err)
	}
	ref, err := strconv.Atoi(strings.TrimSpace(e.Ref))
	if err != nil {
		return nil, fmt.Errorf("invalid ref %q: %w", e.Ref, err)
	}
	return GroundTruth(folder, numCubes, ref)
}
