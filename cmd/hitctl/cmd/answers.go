package cmd

import (
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/hits"
	"github.com/spf13/cobra"
)

var answerStatuses []string

var answersCmd = &cobra.Command{
	Use:   "answers <hit-id>",
	Short: "Show the answers submitted for a HIT",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnswers,
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the requester account balance",
	RunE:  runBalance,
}

func init() {
	rootCmd.AddCommand(answersCmd)
	rootCmd.AddCommand(balanceCmd)

	answersCmd.Flags().StringSliceVar(&answerStatuses, "status", nil, "assignment statuses to include (default Submitted)")
}

func runAnswers(cmd *cobra.Command, args []string) error {
	_, c, err := session(cmd)
	if err != nil {
		return err
	}

	answers, err := hits.Answers(cmd.Context(), c, args[0], answerStatuses...)
	if err != nil {
		return err
	}

	if !isTableOutput() {
		return printStructured(os.Stdout, answers)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Assignment", "Worker", "Status", "Question", "Answer")
	for _, a := range answers {
		for _, f := range a.Fields {
			table.Append(a.AssignmentID, a.WorkerID, a.Status, f.QuestionIdentifier, strings.TrimSpace(f.FreeText))
		}
	}
	table.Render()
	return nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, c, err := session(cmd)
	if err != nil {
		return err
	}

	balance, err := c.AccountBalance(cmd.Context())
	if err != nil {
		return err
	}

	if !isTableOutput() {
		return printStructured(os.Stdout, map[string]interface{}{
			"available_balance": balance,
			"sandbox":           cfg.IsSandbox(),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Available balance", "$"+balance)
	table.Append("Endpoint", cfg.MTurk.EndpointURL)
	table.Render()
	return nil
}
