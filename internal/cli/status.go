package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apim-tools/apimctl/internal/state"
	"github.com/apim-tools/apimctl/internal/template"
)

var statusTemplate string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the discovered project state",
	Long: `Prints what the state file records about the organization. With
--template, additionally compares each template field against the discovered
value and reports mismatches. Read-only; nothing is planned or applied.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusTemplate, "template", "", "Template to check the discovered state against")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject(false)
	if err != nil {
		return err
	}
	snap, err := loadSnapshot(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Project:        %s\n", snap.ProjectID)
	if !snap.HasOrganization() {
		fmt.Println("Organization:   not provisioned")
		return nil
	}
	fmt.Println("Organization:   provisioned")
	fmt.Printf("Billing type:   %s\n", orDash(snap.BillingType))
	fmt.Printf("Data residency: %s\n", yesNo(snap.DRZ))
	fmt.Printf("Consumer data:  %s\n", orDash(snap.ConsumerDataRegion))
	fmt.Printf("Runtime:        %s\n", orDash(snap.RuntimeLocation))
	fmt.Printf("Analytics:      %s\n", orDash(snap.AnalyticsRegion))
	fmt.Printf("Instances:      %s\n", orDash(strings.Join(snap.Instances, ", ")))
	fmt.Printf("Environments:   %s\n", orDash(strings.Join(snap.Environments, ", ")))
	if snap.SSLStatus != "" && snap.SSLStatus != "-" {
		fmt.Printf("SSL:            %s\n", snap.SSLStatus)
	}

	if statusTemplate == "" {
		return nil
	}
	tmpl, err := loadTemplate(statusTemplate, cfg)
	if err != nil {
		return err
	}
	fmt.Println()
	if mismatches := complianceReport(tmpl, snap); mismatches > 0 {
		return fmt.Errorf("%d field(s) differ from template %s", mismatches, statusTemplate)
	}
	return nil
}

// complianceReport prints a field-by-field comparison of the template against
// the discovered state and returns the number of mismatches. Empty template
// fields are unconstrained and never counted.
func complianceReport(tmpl *template.Template, snap *state.Snapshot) int {
	checks := []struct {
		field string
		want  string
		have  string
	}{
		{"billing_type", tmpl.BillingType, snap.BillingType},
		{"runtime_location", tmpl.RuntimeLocation, snap.RuntimeLocation},
		{"analytics_region", tmpl.AnalyticsRegion, snap.AnalyticsRegion},
		{"consumer_data_region", tmpl.ConsumerDataRegion, snap.ConsumerDataRegion},
		{"control_plane_location", tmpl.ControlPlaneLocation, snap.ControlPlaneLocation},
	}

	mismatches := 0
	for _, c := range checks {
		switch {
		case c.want == "":
			continue
		case c.want == c.have:
			fmt.Printf("%s %s = %s\n", okf("match   "), c.field, c.have)
		default:
			fmt.Printf("%s %s: template %q, state %q\n", errf("mismatch"), c.field, c.want, c.have)
			mismatches++
		}
	}
	if tmpl.DRZ != snap.DRZ {
		fmt.Printf("%s drz: template %v, state %v\n", errf("mismatch"), tmpl.DRZ, snap.DRZ)
		mismatches++
	}
	return mismatches
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
