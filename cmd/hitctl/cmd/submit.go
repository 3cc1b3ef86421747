package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/config"
	"github.com/psantana5/hitctl/internal/generator"
	"github.com/psantana5/hitctl/internal/hits"
	"github.com/psantana5/hitctl/internal/question"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/psantana5/hitctl/pkg/models"
	"github.com/spf13/cobra"
)

var (
	taskNames      []string
	allTasks       bool
	allowDuplicate bool
	fromCSV        string
	submitLimit    int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit HITs for new samples",
	Long: `Walks each selected task's generator and creates one HIT per sample that is
not yet in the job ledger. Every created HIT is appended to the ledger right away.`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringArrayVarP(&taskNames, "name", "n", nil, "task to submit (repeatable)")
	submitCmd.Flags().BoolVar(&allTasks, "all-tasks", false, "submit every configured task")
	submitCmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "submit samples already in the ledger")
	submitCmd.Flags().StringVar(&fromCSV, "from-csv", "", "read samples from this CSV file instead of the task's generator")
	submitCmd.Flags().IntVar(&submitLimit, "limit", 0, "maximum HITs per task (0 = no limit)")
}

// generatorSource describes where generators read from
func generatorSource(cfg *config.Config) generator.Source {
	return generator.Source{
		DatasetFolder: cfg.DatasetFolder,
		BucketURL:     cfg.BucketURL(),
		Path:          fromCSV,
	}
}

// taskGenerator resolves the generator of task; --from-csv overrides the task's kind
func taskGenerator(cfg *config.Config, task models.Task) (generator.Generator, error) {
	if fromCSV != "" {
		return generator.New(generator.KindCSV, generatorSource(cfg))
	}
	return generator.ForTask(task, generatorSource(cfg))
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, c, err := session(cmd)
	if err != nil {
		return err
	}
	tasks, err := cfg.SelectTasks(taskNames, allTasks)
	if err != nil {
		return err
	}

	// Resolve every generator before the first HIT goes out
	gens := make([]generator.Generator, len(tasks))
	for i, task := range tasks {
		if gens[i], err = taskGenerator(cfg, task); err != nil {
			return err
		}
	}

	submitter := &hits.Submitter{
		Client:         c,
		Ledger:         openLedger(cfg),
		Questions:      question.NewStore(cfg.TemplatesFolder),
		Logger:         logger,
		Metrics:        metrics,
		PreviewURL:     cfg.PreviewURL,
		AllowDuplicate: allowDuplicate,
		Limit:          submitLimit,
	}

	var summaries []hits.SubmitSummary
	var runErr error
	for i, task := range tasks {
		summary, err := submitter.Submit(cmd.Context(), task, gens[i])
		summaries = append(summaries, summary)
		if err != nil {
			logger.Error("Submission aborted", logging.Fields{"task": task.Name, "error": err.Error()})
			runErr = err
			break
		}
	}

	if err := printSubmitSummaries(cfg, summaries); err != nil {
		return err
	}
	return runErr
}

func printSubmitSummaries(cfg *config.Config, summaries []hits.SubmitSummary) error {
	if !isTableOutput() {
		return printStructured(os.Stdout, summaries)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Task", "Submitted", "Skipped")
	for _, s := range summaries {
		table.Append(s.Task, strconv.Itoa(s.Submitted), strconv.Itoa(s.Skipped))
	}
	table.Render()

	if cfg.IsSandbox() {
		fmt.Println("HITs were posted to the requester sandbox.")
	}
	return nil
}
