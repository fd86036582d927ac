package cli

import (
	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/template"
)

var (
	planTemplate string
	planVerbose  bool
	planTargets  []string
	planVarFiles []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview the changes a run would make",
	Long: `Runs the full convergence pipeline up to and including terraform plan,
without mutating anything. With --template the plan previews what create
would do; without it, what update would do.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planTemplate, "template", "", "Template to plan against instead of discovered state")
	planCmd.Flags().BoolVarP(&planVerbose, "verbose", "v", false, "Stream terraform output")
	planCmd.Flags().StringArrayVar(&planTargets, "target", nil, "Restrict the plan to a resource address (repeatable)")
	planCmd.Flags().StringArrayVar(&planVarFiles, "var-file", nil, "Additional variable file (repeatable)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(false)
	if err != nil {
		return err
	}

	var tmpl *template.Template
	if planTemplate != "" {
		if tmpl, err = loadTemplate(planTemplate, cfg); err != nil {
			return err
		}
	}

	plan := &engine.Plan{
		Command:   engine.CommandPlan,
		Template:  tmpl,
		Verbose:   planVerbose,
		Targets:   planTargets,
		Overrides: planVarFiles,
	}
	return newOrchestrator(cfg).Converge(cmd.Context(), plan)
}
