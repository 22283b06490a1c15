package main

import (
	"fmt"
	"os"
	"runtime"

	"cinodeharvest/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd harvests when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "cinodeharvest",
	Short: "Back up every Cinode attachment into a local folder tree",
	Long: `cinodeharvest downloads the attachments of all customers, their projects and
all sub-contractors of a Cinode company into a local directory tree.

  <output>/<customer>/<attachment>
  <output>/<customer>/<project>/<attachment>
  <output>/_Sub Contractors/<first> <last>/<attachment>
  <output>/_In House Projects/<project>/<attachment>

API responses are cached so an interrupted run resumes without spending the
daily request quota again, and directories that already hold all their files
are skipped.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetQuiet(quiet)
	},
	RunE: runHarvest,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.cinodeharvest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`cinodeharvest {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
