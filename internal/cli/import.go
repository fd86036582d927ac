package cli

import (
	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/template"
)

var (
	importTemplate string
	importVerbose  bool
	importVarFiles []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Adopt pre-existing resources into state",
	Long: `Runs only the adoption pass: pre-existing resources (network,
organization, instance, environments) are imported into terraform state and
nothing is applied. Each candidate resolves independently; a resource that
does not exist remotely is reported, not treated as an error.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importTemplate, "template", "", "Template naming the expected topology")
	importCmd.Flags().BoolVarP(&importVerbose, "verbose", "v", false, "Stream terraform output")
	importCmd.Flags().StringArrayVar(&importVarFiles, "var-file", nil, "Additional variable file (repeatable)")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(false)
	if err != nil {
		return err
	}

	var tmpl *template.Template
	if importTemplate != "" {
		if tmpl, err = loadTemplate(importTemplate, cfg); err != nil {
			return err
		}
	}

	plan := &engine.Plan{
		Command:   engine.CommandImport,
		Template:  tmpl,
		Adopt:     true,
		Verbose:   importVerbose,
		Overrides: importVarFiles,
	}
	return newOrchestrator(cfg).Converge(cmd.Context(), plan)
}
