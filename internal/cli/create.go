package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/config"
	"github.com/apim-tools/apimctl/internal/engine"
)

var (
	createProjectID         string
	createAutoApprove       bool
	createBootstrapOnly     bool
	createSkipImpersonation bool
	createFakeSecret        bool
	createVerbose           bool
	createVarFiles          []string
)

var createCmd = &cobra.Command{
	Use:   "create TEMPLATE",
	Short: "Create an Apigee organization from a template",
	Long: `Converges the project to the topology a named template describes.

The template is authoritative: it decides billing type, data residency and
instance placement. Pre-existing resources (a network, an organization left
behind by the console) are adopted into state before applying, so create is
safe to run against a partially provisioned project.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createProjectID, "project", "", "Bind the directory to this GCP project before creating")
	createCmd.Flags().BoolVar(&createAutoApprove, "auto-approve", false, "Skip interactive approval before applying")
	createCmd.Flags().BoolVar(&createBootstrapOnly, "bootstrap-only", false, "Stop after the bootstrap phase")
	createCmd.Flags().BoolVar(&createSkipImpersonation, "skip-impersonation", false, "Run the main phase with ambient credentials")
	createCmd.Flags().BoolVar(&createFakeSecret, "fake-secret", false, "Provision a placeholder secret instead of a real one")
	createCmd.Flags().BoolVarP(&createVerbose, "verbose", "v", false, "Stream terraform output")
	createCmd.Flags().StringArrayVar(&createVarFiles, "var-file", nil, "Additional variable file (repeatable)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	if createProjectID != "" {
		if err := bindProject(createProjectID); err != nil {
			return err
		}
	}

	cfg, err := loadProject(createProjectID != "")
	if err != nil {
		return err
	}
	if cfg.Project.GCPProjectID == "" {
		return fmt.Errorf("no GCP project bound: run 'apimctl init' or pass --project")
	}
	tmpl, err := loadTemplate(args[0], cfg)
	if err != nil {
		return err
	}

	plan := &engine.Plan{
		Command:           engine.CommandApply,
		Template:          tmpl,
		AutoApprove:       createAutoApprove,
		BootstrapOnly:     createBootstrapOnly,
		SkipImpersonation: createSkipImpersonation,
		FakeSecret:        createFakeSecret,
		Adopt:             true,
		Verbose:           createVerbose,
		Overrides:         createVarFiles,
	}
	return newOrchestrator(cfg).Converge(cmd.Context(), plan)
}

// bindProject anchors the working directory to a GCP project: the vars file
// gets the project id, and a .gitignore is seeded so generated artifacts
// never end up committed.
func bindProject(projectID string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := config.WriteProjectID(filepath.Join(wd, config.VarsFile), projectID); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.VarsFile, err)
	}

	gitignore := filepath.Join(wd, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		content := "*.auto.tfvars\n.terraform/\n"
		if err := os.WriteFile(gitignore, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to seed .gitignore: %w", err)
		}
	}
	return nil
}
