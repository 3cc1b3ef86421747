package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/psantana5/hitctl/internal/config"
	"github.com/psantana5/hitctl/internal/ledger"
	"github.com/psantana5/hitctl/internal/marketplace"
	"github.com/psantana5/hitctl/internal/report"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	cfgDir       string
	outputFormat string
	logLevel     string
	logFormat    string
	logFile      string
	dryRun       bool
	metricsFile  string

	logger  = logging.Discard()
	metrics = report.NewMetrics()

	loadedCfg *config.Config
	client    marketplace.Client
	timing    *report.Timing
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hitctl",
	Short: "CLI for crowdsourcing jobs on Amazon Mechanical Turk",
	Long: `hitctl submits HITs built from a local dataset, keeps a ledger of what was
submitted so nothing is posted twice, and tracks, deletes and bonuses the
resulting HITs.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and runs it with ctx
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnFinalize(finish)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: highest numbered file in --config-dir)")
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config-dir", "config", "directory searched for <N>-*.yaml config files")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "use an in-memory marketplace instead of MTurk")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write run metrics to this file in prometheus text format")
}

func setup(cmd *cobra.Command, args []string) error {
	timing = report.StartTiming()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	switch outputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	level := logging.ParseLevel(logLevel)
	jsonLogs := logFormat == "json"
	if logFile != "" {
		l, err := logging.NewFileLogger(logFile, level, jsonLogs)
		if err != nil {
			return err
		}
		logger = l
	} else {
		logger = logging.NewLogger(level, jsonLogs)
	}
	return nil
}

// finish runs after every command, failed or not, so an aborted submit
// still leaves its counters behind
func finish() {
	if timing == nil {
		return
	}
	metrics.ObserveRun(timing)
	logger.Debug("Command finished", logging.Fields{"duration": timing.Duration().String()})
	timing = nil

	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile); err != nil {
			logger.Error("Failed to write metrics", logging.Fields{"path": metricsFile, "error": err.Error()})
		} else {
			logger.Debug("Metrics written", logging.Fields{"path": metricsFile})
		}
	}
	logger.Close()
}

// loadConfig reads the configuration once per invocation
func loadConfig() (*config.Config, error) {
	if loadedCfg != nil {
		return loadedCfg, nil
	}
	cfg, err := config.Load(viper.New(), cfgFile, cfgDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded", logging.Fields{
		"tasks":   len(cfg.Tasks),
		"sandbox": cfg.IsSandbox(),
	})
	loadedCfg = cfg
	return cfg, nil
}

// marketplaceClient returns the MTurk client, or the in-memory one under --dry-run
func marketplaceClient(ctx context.Context, cfg *config.Config) (marketplace.Client, error) {
	if client != nil {
		return client, nil
	}
	if dryRun {
		logger.Warn("Dry run: HITs go to an in-memory marketplace")
		client = marketplace.NewMemory()
		return client, nil
	}
	c, err := marketplace.NewMTurk(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	client = marketplace.NewThrottled(c, cfg.MTurk.RequestsPerSecond, cfg.MTurk.Burst)
	return client, nil
}

func openLedger(cfg *config.Config) *ledger.Ledger {
	l := ledger.Open(cfg.JobFilename, logger)
	l.ReadOnly = dryRun
	return l
}

// session loads config and connects to the marketplace
func session(cmd *cobra.Command) (*config.Config, marketplace.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := marketplaceClient(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}
