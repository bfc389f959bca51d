package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/scribe/internal/app"
	"github.com/timmy/scribe/internal/config"
	"github.com/timmy/scribe/internal/logger"
)

var (
	configPath string
	verbose    bool
	drainWait  time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scribectl",
	Short: "Manage scribe transcriptions from the command line",
	Long: `Manage scribe transcriptions from the command line.

Commands operate on the same directories as the API server, so records
created here show up in the web UI and the other way round.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		envCfg := logger.LoadFromEnv()
		if verbose {
			envCfg.Level = "debug"
		}
		logger.SetDefaultLogger(logger.NewFromEnv(envCfg))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, transcribeCmd, polishCmd, deleteCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().DurationVar(&drainWait, "wait", 30*time.Minute, "how long to wait for queued work on exit")
}

// withApp builds the pipeline, runs fn and drains the executor.
func withApp(ctx context.Context, workers int, fn func(a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.Build(ctx, cfg, app.Options{Workers: workers})
	if err != nil {
		return err
	}

	runErr := fn(a)

	drainCtx, cancel := context.WithTimeout(context.Background(), drainWait)
	defer cancel()
	if err := a.Close(drainCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
