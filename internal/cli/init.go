package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/config"
	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/logging"
)

var (
	initProjectID    string
	initProjectLabel string
	initName         string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a project directory",
	Long: `Writes apigee.toml and terraform.tfvars into the current directory.

The GCP project is given explicitly with --project, or discovered by label
with --project-label, which asks gcloud for projects carrying that label and
requires exactly one match.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initProjectID, "project", "", "GCP project ID to bind this directory to")
	initCmd.Flags().StringVar(&initProjectLabel, "project-label", "", "Discover the GCP project by label (key=value)")
	initCmd.Flags().StringVar(&initName, "name", "", "Friendly project name (defaults to the directory name)")
	initCmd.MarkFlagsMutuallyExclusive("project", "project-label")
}

func runInit(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if _, err := os.Stat(filepath.Join(wd, config.ConfigFile)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.ConfigFile, wd)
	}

	projectID := initProjectID
	if projectID == "" && initProjectLabel != "" {
		projectID, err = discoverProject(cmd, initProjectLabel)
		if err != nil {
			return err
		}
	}
	if projectID == "" {
		return fmt.Errorf("either --project or --project-label is required")
	}

	name := initName
	if name == "" {
		name = filepath.Base(wd)
	}

	cfgContent := fmt.Sprintf("[project]\nname = %q\ngcp_project_id = %q\n", name, projectID)
	if err := os.WriteFile(filepath.Join(wd, config.ConfigFile), []byte(cfgContent), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ConfigFile, err)
	}
	if err := config.WriteProjectID(filepath.Join(wd, config.VarsFile), projectID); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.VarsFile, err)
	}

	fmt.Printf("Initialized project %q bound to GCP project %s\n", name, projectID)
	return nil
}

// discoverProject resolves a GCP project ID by label. Ambiguity is an error:
// picking one of several matching projects silently would be worse than
// making the operator disambiguate.
func discoverProject(cmd *cobra.Command, label string) (string, error) {
	runner := engine.ExecRunner{}
	res, err := runner.Run(cmd.Context(), engine.Invocation{
		Binary: "gcloud",
		Args: []string{
			"projects", "list",
			"--filter=labels." + label,
			"--format=value(projectId)",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to run gcloud: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("project discovery failed: %s", strings.TrimSpace(res.Stderr))
	}

	var ids []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if id := strings.TrimSpace(line); id != "" {
			ids = append(ids, id)
		}
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("no GCP project carries label %s", label)
	case 1:
		logging.Debug("discovered project by label", "label", label, "project", ids[0])
		return ids[0], nil
	default:
		return "", fmt.Errorf("label %s matches %d projects (%s), use --project to pick one",
			label, len(ids), strings.Join(ids, ", "))
	}
}
