package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/hits"
	"github.com/spf13/cobra"
)

var (
	deleteAllHITs bool
	deleteHITIDs  []string
	deleteTasks   []string
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete HITs",
	Long: `Deletes the HITs recorded in the job ledger (optionally only some tasks'),
explicit HIT ids, or every HIT of the account. Assignable HITs are expired
first. A HIT that cannot be deleted is reported and the rest are still processed.`,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolVar(&deleteAllHITs, "all-hits", false, "delete every HIT of the account")
	deleteCmd.Flags().StringSliceVar(&deleteHITIDs, "hit-id", nil, "HIT id to delete (repeatable)")
	deleteCmd.Flags().StringSliceVar(&deleteTasks, "task", nil, "only delete recorded HITs of this task (repeatable)")
	deleteCmd.MarkFlagsMutuallyExclusive("all-hits", "hit-id", "task")
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, c, err := session(cmd)
	if err != nil {
		return err
	}

	deleter := &hits.Deleter{
		Client:  c,
		Ledger:  openLedger(cfg),
		Logger:  logger,
		Metrics: metrics,
	}

	var summary hits.DeleteSummary
	switch {
	case deleteAllHITs:
		summary, err = deleter.DeleteAll(cmd.Context())
	case len(deleteHITIDs) > 0:
		summary, err = deleter.Delete(cmd.Context(), deleteHITIDs)
	default:
		summary, err = deleter.DeleteRecorded(cmd.Context(), deleteTasks...)
	}
	if err != nil {
		return err
	}

	if err := printDeleteSummary(summary); err != nil {
		return err
	}
	if len(summary.Failed) > 0 {
		return errors.New("some HITs could not be deleted")
	}
	return nil
}

func printDeleteSummary(summary hits.DeleteSummary) error {
	if !isTableOutput() {
		return printStructured(os.Stdout, summary)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("HIT", "Result")
	for _, id := range summary.Deleted {
		table.Append(id, "deleted")
	}
	failed := make([]string, 0, len(summary.Failed))
	for id := range summary.Failed {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		table.Append(id, "failed: "+summary.Failed[id])
	}
	table.Render()

	fmt.Printf("%d deleted, %d failed\n", len(summary.Deleted), len(summary.Failed))
	return nil
}
