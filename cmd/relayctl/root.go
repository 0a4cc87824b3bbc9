package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dvmn-mentors/mentor-relay/config"
	"github.com/dvmn-mentors/mentor-relay/internal/app"
	"github.com/dvmn-mentors/mentor-relay/pkg/logger"
)

var (
	envFile string
	verbose bool
	noColor bool
	rootCmd *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "relayctl",
		Short: "Operate the mentor relay from the command line",
		Long: `relayctl delivers weekly plans, counts study days and manages the
run journal using the same configuration as the relay service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before the environment (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored status lines")
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	rootCmd.AddCommand(sendPlanCmd)
	rootCmd.AddCommand(sendPlansCmd)
	rootCmd.AddCommand(studyDaysCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runsCmd)

	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		failure(os.Stderr, "%v", err)
		return err
	}
	return nil
}

// loadConfig reads --env-file, or the optional default .env.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		return config.LoadWithEnvFiles(envFile)
	}
	return config.Load()
}

// bootstrap builds the relay for one command. The caller closes it.
func bootstrap(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logger.Setup(logger.Options{
		Level:  level,
		Format: logger.FormatText,
		Output: cmd.ErrOrStderr(),
	})

	return app.New(cmd.Context(), cfg, log)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
