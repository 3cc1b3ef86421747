package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/hits"
	"github.com/spf13/cobra"
)

var (
	progressAllHITs   bool
	progressRecorded  bool
	progressHITIDs    []string
	progressTaskNames []string
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show how many assignments are completed",
	Long: `Reports completed and maximum assignments per HIT and overall. Defaults to
the HITs recorded in the job ledger.`,
	RunE: runProgress,
}

func init() {
	rootCmd.AddCommand(progressCmd)

	progressCmd.Flags().BoolVar(&progressAllHITs, "all-hits", false, "every HIT of the account")
	progressCmd.Flags().BoolVar(&progressRecorded, "all-recorded", false, "every HIT in the job ledger")
	progressCmd.Flags().StringSliceVar(&progressHITIDs, "hit-id", nil, "HIT id to report (repeatable)")
	progressCmd.Flags().StringSliceVar(&progressTaskNames, "task", nil, "only recorded HITs of this task (repeatable)")
	progressCmd.MarkFlagsMutuallyExclusive("all-hits", "all-recorded", "hit-id", "task")
}

func runProgress(cmd *cobra.Command, args []string) error {
	cfg, c, err := session(cmd)
	if err != nil {
		return err
	}

	tracker := &hits.Tracker{Client: c, Ledger: openLedger(cfg)}

	var report *hits.ProgressReport
	switch {
	case progressAllHITs:
		report, err = tracker.All(cmd.Context())
	case len(progressHITIDs) > 0:
		report, err = tracker.ForIDs(cmd.Context(), progressHITIDs)
	default:
		report, err = tracker.Recorded(cmd.Context(), progressTaskNames...)
	}
	if err != nil {
		return err
	}

	if !isTableOutput() {
		return printStructured(os.Stdout, report)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("HIT", "Task", "Status", "Completed", "Pending", "Available", "Max")
	for _, row := range report.Rows {
		table.Append(
			row.HITID,
			row.Task,
			row.Status,
			fmt.Sprintf("%d", row.Completed),
			fmt.Sprintf("%d", row.Pending),
			fmt.Sprintf("%d", row.Available),
			fmt.Sprintf("%d", row.Max),
		)
	}
	table.Render()

	fmt.Printf("Total: %d/%d assignments completed (%.1f%%)\n", report.Completed, report.Expected, report.Percent())
	return nil
}
