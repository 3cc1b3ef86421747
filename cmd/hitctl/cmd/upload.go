package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/internal/storage"
	"github.com/spf13/cobra"
)

var uploadPattern string

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload dataset images to the bucket",
	Long: `Copies the files of dataset_folder matching --pattern to bucket_name, keyed by
file name so the URLs generators emit resolve. Keys already in the bucket are skipped.`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadPattern, "pattern", "*.jpg", "glob of files to upload")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.BucketName == "" {
		return errors.New("bucket_name is not configured")
	}

	awsCfg, err := marketplace.LoadAWSConfig(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	bucket := storage.NewBucket(awsCfg, cfg.BucketName, logger)

	result, err := bucket.Sync(cmd.Context(), cfg.DatasetFolder, uploadPattern)
	if err != nil {
		return err
	}

	if !isTableOutput() {
		return printStructured(os.Stdout, result)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Bucket", cfg.BucketURL())
	table.Append("Uploaded", fmt.Sprintf("%d", len(result.Uploaded)))
	table.Append("Already present", fmt.Sprintf("%d", result.Skipped))
	table.Render()
	return nil
}
