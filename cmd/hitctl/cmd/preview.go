package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/psantana5/hitctl/internal/preview"
	"github.com/psantana5/hitctl/internal/question"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/spf13/cobra"
)

var previewAddr string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve rendered questions for a look before submitting",
	Long: `Starts an HTTP server rendering task templates with generator samples:

  GET /tasks                              configured tasks
  GET /tasks/{task}/samples/{n}           rendered HTML of the n-th sample
  GET /tasks/{task}/samples/{n}?format=xml HTMLQuestion document
  GET /tasks/{task}/samples/{n}/data      the sample itself
  GET /metrics                            prometheus metrics`,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVar(&previewAddr, "addr", ":8088", "listen address")
	previewCmd.Flags().StringVar(&fromCSV, "from-csv", "", "preview samples from this CSV file")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h := preview.NewHandler(cfg, question.NewStore(cfg.TemplatesFolder), metrics.Registry(), logger)
	h.CSVPath = fromCSV

	srv := &http.Server{
		Addr:              previewAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Preview server listening", logging.Fields{"addr": previewAddr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("Shutting down preview server")
	return srv.Shutdown(ctx)
}
