package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/engine"
)

var (
	updateAutoApprove       bool
	updateDeletesAllowed    bool
	updateSkipImpersonation bool
	updateVerbose           bool
	updateTargets           []string
	updateVarFiles          []string
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Re-converge an existing organization",
	Long: `Maintenance run against an organization this tool already manages.

No template is required: variables are derived from the discovered state, so
an update can never silently change an immutable setting. Destructive changes
are refused unless --deletes-allowed is set.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateAutoApprove, "auto-approve", false, "Skip interactive approval before applying")
	updateCmd.Flags().BoolVar(&updateDeletesAllowed, "deletes-allowed", false, "Permit destructive changes")
	updateCmd.Flags().BoolVar(&updateSkipImpersonation, "skip-impersonation", false, "Run the main phase with ambient credentials")
	updateCmd.Flags().BoolVarP(&updateVerbose, "verbose", "v", false, "Stream terraform output")
	updateCmd.Flags().StringArrayVar(&updateTargets, "target", nil, "Restrict the run to a resource address (repeatable)")
	updateCmd.Flags().StringArrayVar(&updateVarFiles, "var-file", nil, "Additional variable file (repeatable)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(false)
	if err != nil {
		return err
	}

	// An update maintains what the tool already manages. Check the state
	// projection up front so a project without an organization gets a
	// pointed message instead of a variable-resolution failure.
	snap, err := loadSnapshot(cfg)
	if err != nil {
		return err
	}
	if !snap.HasOrganization() {
		return fmt.Errorf("state for project %s records no Apigee organization; run 'apimctl create' or 'apimctl import' first", cfg.Project.GCPProjectID)
	}

	plan := &engine.Plan{
		Command:           engine.CommandApply,
		AutoApprove:       updateAutoApprove,
		DeletesAllowed:    updateDeletesAllowed,
		SkipImpersonation: updateSkipImpersonation,
		Verbose:           updateVerbose,
		Targets:           updateTargets,
		Overrides:         updateVarFiles,
	}
	return newOrchestrator(cfg).Converge(cmd.Context(), plan)
}
