package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyImportFailure(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   FailureReason
	}{
		{
			name:   "already managed",
			stderr: "Error: Resource already managed by Terraform",
			want:   ReasonAlreadyManaged,
		},
		{
			name:   "already in state",
			stderr: `Error: resource address "google_apigee_organization.org" already exists in the state`,
			want:   ReasonAlreadyManaged,
		},
		{
			name:   "conflict",
			stderr: "Error: googleapi: Error 409: Conflict",
			want:   ReasonAlreadyManaged,
		},
		{
			name:   "not found remotely",
			stderr: "Error: Cannot import non-existent remote object\n\nWhile attempting to import...",
			want:   ReasonNotFoundRemotely,
		},
		{
			name:   "anything else",
			stderr: "Error: Error when reading or editing Network: Permission denied",
			want:   ReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyImportFailure(tc.stderr))
		})
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), Invocation{
		Binary: "definitely-not-a-real-binary-xyz",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary not found in PATH")
}

func TestVarArgsDeterministic(t *testing.T) {
	vars := map[string]string{
		"gcp_project_id":      "demo",
		"apigee_billing_type": "PAYG",
	}
	want := []string{
		"-var=apigee_billing_type=PAYG",
		"-var=gcp_project_id=demo",
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, varArgs(vars))
	}
}

func TestPlanHasNoChanges(t *testing.T) {
	assert.True(t, planHasNoChanges("Apply complete! Resources: 0 added, 0 changed, 0 destroyed."))
	assert.False(t, planHasNoChanges("Apply complete! Resources: 3 added, 0 changed, 0 destroyed."))
	assert.False(t, planHasNoChanges(""))
}
