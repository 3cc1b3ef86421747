package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/hits"
	"github.com/psantana5/hitctl/pkg/models"
	"github.com/spf13/cobra"
)

var (
	bonusHITIDs           []string
	bonusTasks            []string
	bonusAmount           string
	bonusReason           string
	bonusIncludeSubmitted bool
)

var bonusCmd = &cobra.Command{
	Use:   "bonus",
	Short: "Pay a bonus to the workers of HITs",
	Long: `Sends one bonus per approved assignment of the selected HITs (the recorded
HITs by default). Each payment carries a token derived from the assignment id,
so running the command twice does not pay twice.`,
	RunE: runBonus,
}

func init() {
	rootCmd.AddCommand(bonusCmd)

	bonusCmd.Flags().StringSliceVar(&bonusHITIDs, "hit-id", nil, "HIT id to bonus (repeatable)")
	bonusCmd.Flags().StringSliceVar(&bonusTasks, "task", nil, "bonus recorded HITs of this task (repeatable)")
	bonusCmd.Flags().StringVar(&bonusAmount, "amount", "", "bonus in dollars, e.g. 0.25 (required)")
	bonusCmd.Flags().StringVar(&bonusReason, "reason", "", "message shown to the worker (required)")
	bonusCmd.Flags().BoolVar(&bonusIncludeSubmitted, "include-submitted", false, "also bonus assignments not yet approved")
	bonusCmd.MarkFlagRequired("amount")
	bonusCmd.MarkFlagRequired("reason")
	bonusCmd.MarkFlagsMutuallyExclusive("hit-id", "task")
}

func runBonus(cmd *cobra.Command, args []string) error {
	cfg, c, err := session(cmd)
	if err != nil {
		return err
	}

	ids := bonusHITIDs
	if len(ids) == 0 {
		if ids, err = openLedger(cfg).HITIDs(bonusTasks...); err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}
	}
	if len(ids) == 0 {
		return errors.New("no HITs to bonus")
	}

	statuses := []string{models.AssignmentApproved}
	if bonusIncludeSubmitted {
		statuses = append(statuses, models.AssignmentSubmitted)
	}

	payer := &hits.Payer{Client: c, Logger: logger, Metrics: metrics}
	payments, payErr := payer.Pay(cmd.Context(), hits.BonusOptions{
		HITIDs:   ids,
		Amount:   bonusAmount,
		Reason:   bonusReason,
		Statuses: statuses,
	})

	if !isTableOutput() {
		if err := printStructured(os.Stdout, payments); err != nil {
			return err
		}
		return payErr
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("HIT", "Assignment", "Worker", "Amount")
	for _, p := range payments {
		table.Append(p.HITID, p.AssignmentID, p.WorkerID, "$"+p.Amount)
	}
	table.Render()
	fmt.Printf("%d bonuses sent\n", len(payments))
	return payErr
}
