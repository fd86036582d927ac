package state

import "strings"

// Resource types the inspector projects from.
const (
	typeOrganization = "google_apigee_organization"
	typeInstance     = "google_apigee_instance"
	typeEnvironment  = "google_apigee_environment"
	typeSSLCert      = "google_compute_managed_ssl_certificate"
)

// Snapshot is a read-only projection of a main-phase state file. It never
// reflects live cloud resources, only what terraform last recorded.
type Snapshot struct {
	ProjectID            string   `json:"project_id"`
	BillingType          string   `json:"billing_type"`
	DRZ                  bool     `json:"drz"`
	AnalyticsRegion      string   `json:"analytics_region,omitempty"`
	ConsumerDataRegion   string   `json:"consumer_data_region,omitempty"`
	ControlPlaneLocation string   `json:"control_plane_location,omitempty"`
	RuntimeLocation      string   `json:"runtime_location"`
	SubscriptionType     string   `json:"subscription_type"`
	Environments         []string `json:"environments"`
	Instances            []string `json:"instances"`
	SSLStatus            string   `json:"ssl_status"`
}

// ReadSnapshot loads and projects the state file at path. Returns (nil, nil)
// when no state exists yet.
func ReadSnapshot(path string) (*Snapshot, error) {
	st, err := LoadTFState(path)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	return project(st), nil
}

func project(st *TFState) *Snapshot {
	snap := &Snapshot{
		BillingType:      "-",
		RuntimeLocation:  "-",
		SubscriptionType: "-",
		SSLStatus:        "-",
		Environments:     []string{},
		Instances:        []string{},
	}

	if orgs := st.resourcesOfType(typeOrganization); len(orgs) > 0 {
		attrs := orgs[0].Attributes
		snap.ProjectID = stringAttr(attrs, "project_id")
		if bt := stringAttr(attrs, "billing_type"); bt != "" {
			snap.BillingType = bt
		}
		if sub := stringAttr(attrs, "subscription_type"); sub != "" {
			snap.SubscriptionType = sub
		}
		snap.AnalyticsRegion = stringAttr(attrs, "analytics_region")
		snap.ConsumerDataRegion = stringAttr(attrs, "api_consumer_data_location")
		if snap.ConsumerDataRegion != "" {
			snap.DRZ = true
			snap.ControlPlaneLocation = Jurisdiction(snap.ConsumerDataRegion)
		}
	}

	for _, inst := range st.resourcesOfType(typeInstance) {
		name := stringAttr(inst.Attributes, "name")
		if name == "" {
			name = "UNKNOWN"
		}
		snap.Instances = append(snap.Instances, name)
		if snap.RuntimeLocation == "-" {
			if loc := stringAttr(inst.Attributes, "location"); loc != "" {
				snap.RuntimeLocation = loc
			}
		}
	}

	for _, env := range st.resourcesOfType(typeEnvironment) {
		if name := stringAttr(env.Attributes, "name"); name != "" {
			snap.Environments = append(snap.Environments, name)
		}
	}

	if certs := st.resourcesOfType(typeSSLCert); len(certs) > 0 {
		if managed, ok := certs[0].Attributes["managed"].([]any); ok && len(managed) > 0 {
			if block, ok := managed[0].(map[string]any); ok {
				if status := stringAttr(block, "status"); status != "" {
					snap.SSLStatus = status
				}
			}
		}
	}

	return snap
}

// HasOrganization reports whether the snapshot records an Apigee org.
func (s *Snapshot) HasOrganization() bool {
	return s != nil && s.ProjectID != ""
}

// Vars re-derives the terraform variable map from a previously applied
// state, used for maintenance runs that carry no template.
func (s *Snapshot) Vars() map[string]string {
	vars := map[string]string{}
	if s.ProjectID != "" {
		vars["gcp_project_id"] = s.ProjectID
	}
	if s.BillingType != "" && s.BillingType != "-" {
		vars["apigee_billing_type"] = s.BillingType
	}
	if s.AnalyticsRegion != "" {
		vars["apigee_analytics_region"] = s.AnalyticsRegion
	}
	if s.RuntimeLocation != "" && s.RuntimeLocation != "-" {
		vars["apigee_runtime_location"] = s.RuntimeLocation
	}
	if s.ConsumerDataRegion != "" {
		vars["consumer_data_region"] = s.ConsumerDataRegion
	}
	if s.ControlPlaneLocation != "" {
		vars["control_plane_location"] = s.ControlPlaneLocation
	}
	return vars
}

// jurisdictions maps consumer-data-region prefixes to control plane codes.
// Order matters: first match wins.
var jurisdictions = []struct {
	prefix string
	code   string
}{
	{"northamerica", "ca"},
	{"europe", "eu"},
	{"australia", "au"},
	{"asia", "ap"},
	{"southamerica", "sa"},
	{"me-", "me"},
	{"in-", "in"},
}

// Jurisdiction infers the control plane jurisdiction code from a
// consumer-data-region name. Unknown regions fall back to "us".
func Jurisdiction(region string) string {
	for _, j := range jurisdictions {
		if strings.HasPrefix(region, j.prefix) {
			return j.code
		}
	}
	return "us"
}
