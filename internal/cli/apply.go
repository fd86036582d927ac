package cli

import (
	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/template"
)

var (
	applyTemplate          string
	applyAutoApprove       bool
	applyBootstrapOnly     bool
	applySkipImpersonation bool
	applyDeletesAllowed    bool
	applyFakeSecret        bool
	applyAdopt             bool
	applyVerbose           bool
	applyTargets           []string
	applyVarFiles          []string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge the project with explicit control over every knob",
	Long: `Low-level convergence command. create and update are the curated
front doors; apply exposes the full set of switches for unusual situations
such as re-running only the bootstrap phase or converging without
impersonation on a locked-down project.`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyTemplate, "template", "", "Template to converge to instead of discovered state")
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval before applying")
	applyCmd.Flags().BoolVar(&applyBootstrapOnly, "bootstrap-only", false, "Stop after the bootstrap phase")
	applyCmd.Flags().BoolVar(&applySkipImpersonation, "skip-impersonation", false, "Run the main phase with ambient credentials")
	applyCmd.Flags().BoolVar(&applyDeletesAllowed, "deletes-allowed", false, "Permit destructive changes")
	applyCmd.Flags().BoolVar(&applyFakeSecret, "fake-secret", false, "Provision a placeholder secret instead of a real one")
	applyCmd.Flags().BoolVar(&applyAdopt, "adopt", false, "Adopt pre-existing resources before applying")
	applyCmd.Flags().BoolVarP(&applyVerbose, "verbose", "v", false, "Stream terraform output")
	applyCmd.Flags().StringArrayVar(&applyTargets, "target", nil, "Restrict the run to a resource address (repeatable)")
	applyCmd.Flags().StringArrayVar(&applyVarFiles, "var-file", nil, "Additional variable file (repeatable)")
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(false)
	if err != nil {
		return err
	}

	var tmpl *template.Template
	if applyTemplate != "" {
		if tmpl, err = loadTemplate(applyTemplate, cfg); err != nil {
			return err
		}
	}

	plan := &engine.Plan{
		Command:           engine.CommandApply,
		Template:          tmpl,
		AutoApprove:       applyAutoApprove,
		BootstrapOnly:     applyBootstrapOnly,
		SkipImpersonation: applySkipImpersonation,
		DeletesAllowed:    applyDeletesAllowed,
		FakeSecret:        applyFakeSecret,
		Adopt:             applyAdopt,
		Verbose:           applyVerbose,
		Targets:           applyTargets,
		Overrides:         applyVarFiles,
	}
	return newOrchestrator(cfg).Converge(cmd.Context(), plan)
}
