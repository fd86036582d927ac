package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "apimctl",
	Short: "Phased convergence for Apigee infrastructure",
	Long: `apimctl converges a GCP project to a desired Apigee topology by driving
terraform and gcloud through two phases:

  0-bootstrap  provisions a deployer service account under your own credentials
  1-main       converges the Apigee organization as that deployer identity

Variables come from a named template on first creation and from the
discovered state on maintenance runs.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ReportError writes err to w and returns the process exit code. Tool
// failures carry the raw terraform or gcloud output; it is written verbatim
// so the user sees what the tool said, and the tool's own exit code is
// propagated so wrapping scripts can distinguish it from configuration
// errors.
func ReportError(w io.Writer, err error) int {
	fmt.Fprintln(w, err)

	var execErr *engine.ExecError
	if errors.As(err, &execErr) {
		if out := strings.TrimSpace(execErr.Output); out != "" {
			fmt.Fprintln(w, out)
		}
		if execErr.ExitCode > 0 {
			return execErr.ExitCode
		}
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}
