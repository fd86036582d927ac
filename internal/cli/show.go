package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/config"
	"github.com/apim-tools/apimctl/internal/engine"
	"github.com/apim-tools/apimctl/internal/state"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the discovered project state as JSON",
	Long: `Reads the main-phase state file and prints the discovered topology
(billing type, residency, instances, environments) as JSON. Exits non-zero
when the project has no state yet. With --raw, prints the project's variable
file instead.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the terraform.tfvars file verbatim")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(false)
	if err != nil {
		return err
	}

	if showRaw {
		data, err := os.ReadFile(filepath.Join(cfg.RootDir, config.VarsFile))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", config.VarsFile, err)
		}
		fmt.Print(string(data))
		return nil
	}

	snap, err := loadSnapshot(cfg)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func loadSnapshot(cfg *config.Config) (*state.Snapshot, error) {
	path := config.StatePath(config.DataDir(), cfg.Project.GCPProjectID, engine.PhaseMain, cfg.Apigee.StateSuffix)
	snap, err := state.ReadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("no state found for project %s (nothing created yet?)", cfg.Project.GCPProjectID)
	}
	return snap, nil
}
