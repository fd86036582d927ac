package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStandardTemplate(t *testing.T) {
	tmpl := &Template{
		BillingType:     BillingPAYG,
		AnalyticsRegion: "us-east1",
		RuntimeLocation: "us-east1",
	}
	require.NoError(t, tmpl.Validate())
}

func TestValidateResidencyTemplate(t *testing.T) {
	tmpl := &Template{
		BillingType:          BillingPAYG,
		DRZ:                  true,
		RuntimeLocation:      "europe-west1",
		ControlPlaneLocation: "eu",
		ConsumerDataRegion:   "europe-west1",
	}
	require.NoError(t, tmpl.Validate())
}

func TestValidateResidencyMatrix(t *testing.T) {
	cases := []struct {
		name    string
		tmpl    Template
		wantMsg string
	}{
		{
			name: "drz forbids analytics region",
			tmpl: Template{
				BillingType: BillingPAYG, DRZ: true, RuntimeLocation: "europe-west1",
				ControlPlaneLocation: "eu", ConsumerDataRegion: "europe-west1",
				AnalyticsRegion: "europe-west1",
			},
			wantMsg: "'analytics_region' must not be set when drz=true",
		},
		{
			name: "drz requires control plane location",
			tmpl: Template{
				BillingType: BillingPAYG, DRZ: true, RuntimeLocation: "europe-west1",
				ConsumerDataRegion: "europe-west1",
			},
			wantMsg: "'control_plane_location' is required when drz=true",
		},
		{
			name: "drz requires consumer data region",
			tmpl: Template{
				BillingType: BillingPAYG, DRZ: true, RuntimeLocation: "europe-west1",
				ControlPlaneLocation: "eu",
			},
			wantMsg: "'consumer_data_region' is required when drz=true",
		},
		{
			name: "drz rejects evaluation billing",
			tmpl: Template{
				BillingType: BillingEvaluation, DRZ: true, RuntimeLocation: "europe-west1",
				ControlPlaneLocation: "eu", ConsumerDataRegion: "europe-west1",
			},
			wantMsg: "'billing_type' cannot be EVALUATION when drz=true",
		},
		{
			name: "standard forbids control plane location",
			tmpl: Template{
				BillingType: BillingPAYG, RuntimeLocation: "us-east1",
				AnalyticsRegion: "us-east1", ControlPlaneLocation: "us",
			},
			wantMsg: "'control_plane_location' is only allowed when drz=true",
		},
		{
			name: "standard forbids consumer data region",
			tmpl: Template{
				BillingType: BillingPAYG, RuntimeLocation: "us-east1",
				AnalyticsRegion: "us-east1", ConsumerDataRegion: "us-east1",
			},
			wantMsg: "'consumer_data_region' is only allowed when drz=true",
		},
		{
			name: "standard requires analytics region",
			tmpl: Template{
				BillingType: BillingPAYG, RuntimeLocation: "us-east1",
			},
			wantMsg: "'analytics_region' is required when drz=false",
		},
		{
			name:    "runtime location always required",
			tmpl:    Template{BillingType: BillingPAYG, AnalyticsRegion: "us-east1"},
			wantMsg: "'runtime_location' is required",
		},
		{
			name: "unknown billing type",
			tmpl: Template{
				BillingType: "FREE", RuntimeLocation: "us-east1", AnalyticsRegion: "us-east1",
			},
			wantMsg: "must be one of EVALUATION, PAYG, SUBSCRIPTION",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tmpl.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Msg, tc.wantMsg)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "billing_type": "PAYG",
  "analytics_region": "us-east1",
  "runtime_location": "us-east1",
  "instance_name": "inst1"
}`), 0o644))

	tmpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BillingPAYG, tmpl.BillingType)
	assert.Equal(t, "inst1", tmpl.InstanceName)
}

func TestLoadDefaultsBillingType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eval.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "analytics_region": "us-east1",
  "runtime_location": "us-east1"
}`), 0o644))

	tmpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BillingEvaluation, tmpl.BillingType)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "billing_typo": "PAYG",
  "runtime_location": "us-east1"
}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestResolveSearchOrder(t *testing.T) {
	workDir := t.TempDir()
	packageDir := t.TempDir()

	packaged := filepath.Join(packageDir, "templates")
	require.NoError(t, os.MkdirAll(packaged, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(packaged, "evaluation.json"), []byte("{}"), 0o644))

	// Only packaged exists.
	path, err := Resolve("evaluation", workDir, packageDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(packaged, "evaluation.json"), path)

	// A work-dir copy shadows the packaged one.
	local := filepath.Join(workDir, "evaluation.json")
	require.NoError(t, os.WriteFile(local, []byte("{}"), 0o644))
	path, err = Resolve("evaluation", workDir, packageDir)
	require.NoError(t, err)
	assert.Equal(t, local, path)

	_, err = Resolve("missing", workDir, packageDir)
	require.Error(t, err)
}

func TestVarsOmitsEmptyFields(t *testing.T) {
	tmpl := &Template{
		BillingType:     BillingPAYG,
		AnalyticsRegion: "us-east1",
		RuntimeLocation: "us-east1",
	}

	vars := tmpl.Vars("demo-project")
	assert.Equal(t, map[string]string{
		"gcp_project_id":          "demo-project",
		"apigee_billing_type":     "PAYG",
		"apigee_analytics_region": "us-east1",
		"apigee_runtime_location": "us-east1",
	}, vars)
}
