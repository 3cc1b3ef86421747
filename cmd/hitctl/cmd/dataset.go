package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/dataset"
	"github.com/psantana5/hitctl/internal/generator"
	"github.com/psantana5/hitctl/pkg/models"
	"github.com/spf13/cobra"
)

var (
	resultsFile  string
	checkOutput  string
	truthDataset string
	withTruth    bool
	checkTask    string
	checkLimit   int
	batchTask    string
	batchFormat  string
	batchGroup   int
	batchOut     string
)

var groundTruthCmd = &cobra.Command{
	Use:   "ground-truth",
	Short: "Build a check file from a results export",
	Long: `Reads a marketplace results CSV and writes one JSON line per approved answer
with its numCubes and ref. With --with-truth each line also carries the colour
sequence from the dataset's annotation files.`,
	RunE: runGroundTruth,
}

var checkGeneratorCmd = &cobra.Command{
	Use:   "check-generator",
	Short: "Print the samples a task's generator produces",
	RunE:  runCheckGenerator,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Export a task's samples for a batch upload",
	Long: `Writes the samples of a task either as a batch CSV, with --group samples per
row and columns <field><i>, or as JSON lines holding --group samples each.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(groundTruthCmd)
	rootCmd.AddCommand(checkGeneratorCmd)
	rootCmd.AddCommand(batchCmd)

	groundTruthCmd.Flags().StringVar(&resultsFile, "results", "", "results CSV downloaded from the marketplace (required)")
	groundTruthCmd.Flags().StringVar(&checkOutput, "output-file", "check.jsonl", "check file to write")
	groundTruthCmd.Flags().StringVar(&truthDataset, "dataset", "", "dataset folder holding annotation files (default from config)")
	groundTruthCmd.Flags().BoolVar(&withTruth, "with-truth", false, "attach the ground truth colour sequence")
	groundTruthCmd.MarkFlagRequired("results")

	checkGeneratorCmd.Flags().StringVarP(&checkTask, "name", "n", "", "task whose generator to run")
	checkGeneratorCmd.Flags().StringVar(&fromCSV, "from-csv", "", "run the CSV generator on this file instead")
	checkGeneratorCmd.Flags().IntVar(&checkLimit, "limit", 0, "print at most this many samples (0 = all)")

	batchCmd.Flags().StringVarP(&batchTask, "name", "n", "", "task to export (required)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "csv", "export format: csv or jsonl")
	batchCmd.Flags().IntVar(&batchGroup, "group", 3, "samples per row")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "file to write (default stdout)")
	batchCmd.Flags().StringVar(&fromCSV, "from-csv", "", "read samples from this CSV file instead of the task's generator")
	batchCmd.MarkFlagRequired("name")
}

func runGroundTruth(cmd *cobra.Command, args []string) error {
	folder := ""
	if withTruth {
		folder = truthDataset
		if folder == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			folder = cfg.DatasetFolder
		}
		if folder == "" {
			return errors.New("--with-truth needs --dataset or dataset_folder in the config")
		}
	}

	n, err := dataset.CheckFile(resultsFile, checkOutput, folder)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d entries to %s\n", n, checkOutput)
	return nil
}

func runCheckGenerator(cmd *cobra.Command, args []string) error {
	var gen generator.Generator
	var err error
	if fromCSV != "" {
		gen, err = generator.NewCSV(generator.Source{Path: fromCSV})
	} else {
		if checkTask == "" {
			return errors.New("pass --name or --from-csv")
		}
		gen, err = configuredGenerator(checkTask)
	}
	if err != nil {
		return err
	}

	var samples []models.Sample
	for sample, err := range gen.Samples() {
		if err != nil {
			return err
		}
		samples = append(samples, sample)
		if checkLimit > 0 && len(samples) >= checkLimit {
			break
		}
	}

	if !isTableOutput() {
		return printStructured(os.Stdout, samples)
	}
	printSamples(os.Stdout, samples)
	return nil
}

func configuredGenerator(taskName string) (generator.Generator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	task, err := cfg.Task(taskName)
	if err != nil {
		return nil, err
	}
	return taskGenerator(cfg, task)
}

func printSamples(w io.Writer, samples []models.Sample) {
	if len(samples) == 0 {
		fmt.Fprintln(w, "No samples")
		return
	}

	keys := make([]string, 0, len(samples[0]))
	for k := range samples[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	header := make([]interface{}, 0, len(keys)+1)
	header = append(header, "#")
	for _, k := range keys {
		header = append(header, k)
	}

	table := tablewriter.NewWriter(w)
	table.Header(header...)
	for i, s := range samples {
		row := make([]interface{}, 0, len(keys)+1)
		row = append(row, fmt.Sprintf("%d", i))
		for _, k := range keys {
			row = append(row, s[k])
		}
		table.Append(row...)
	}
	table.Render()
	fmt.Fprintf(w, "%d samples\n", len(samples))
}

func runBatch(cmd *cobra.Command, args []string) error {
	gen, err := configuredGenerator(batchTask)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if batchOut != "" {
		f, err := os.Create(batchOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", batchOut, err)
		}
		defer f.Close()
		w = f
	}

	switch batchFormat {
	case "csv":
		samples, err := generator.Collect(gen)
		if err != nil {
			return err
		}
		return dataset.ExportBatch(w, samples, batchGroup)
	case "jsonl":
		_, err := dataset.ExportGroupedJSON(w, gen, batchGroup)
		return err
	default:
		return fmt.Errorf("unknown batch format %q", batchFormat)
	}
}
