package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBootstrapper(t *testing.T, handler func(inv Invocation) (Result, error)) (*Bootstrapper, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{handler: handler}
	b := NewBootstrapper(newTestStager(t), runner)
	b.Sleep = func(time.Duration) {}
	return b, runner
}

func bootstrapHandler(applyOut, identity string) func(inv Invocation) (Result, error) {
	return func(inv Invocation) (Result, error) {
		switch {
		case argsContain(inv, "apply"):
			return Result{Stdout: applyOut}, nil
		case argsContain(inv, "output", "-raw", deployerOutputName):
			return Result{Stdout: identity}, nil
		default:
			return Result{}, nil
		}
	}
}

func TestBootstrapRunFreshProject(t *testing.T) {
	b, runner := newTestBootstrapper(t, bootstrapHandler(
		"Apply complete! Resources: 4 added, 0 changed, 0 destroyed.",
		"deployer@demo.iam.gserviceaccount.com\n"))

	res, err := b.Run(context.Background(), map[string]string{"gcp_project_id": "demo-project"}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "deployer@demo.iam.gserviceaccount.com", res.ServiceAccount)
	assert.True(t, res.Changed)

	// init then apply then output, all inside the staged bootstrap dir.
	calls := runner.terraformCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"init", "-input=false"}, calls[0].Args)
	assert.True(t, argsContain(calls[1], "apply", "-input=false", "-auto-approve"))
	assert.Contains(t, calls[1].Args, "-var=gcp_project_id=demo-project")
	for _, c := range calls {
		assert.Contains(t, c.Dir, PhaseBootstrap)
	}
}

func TestBootstrapRunAlreadyConverged(t *testing.T) {
	b, _ := newTestBootstrapper(t, bootstrapHandler(
		"Apply complete! Resources: 0 added, 0 changed, 0 destroyed.",
		"deployer@demo.iam.gserviceaccount.com\n"))

	res, err := b.Run(context.Background(), nil, nil, false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestBootstrapRunMissingIdentity(t *testing.T) {
	b, _ := newTestBootstrapper(t, bootstrapHandler(
		"Apply complete! Resources: 4 added, 0 changed, 0 destroyed.", "\n"))

	_, err := b.Run(context.Background(), nil, nil, false)
	var idErr *IdentityError
	require.ErrorAs(t, err, &idErr)
}

func TestBootstrapRunApplyFailure(t *testing.T) {
	b, _ := newTestBootstrapper(t, func(inv Invocation) (Result, error) {
		if argsContain(inv, "apply") {
			return Result{ExitCode: 1, Stderr: "Error: quota exceeded"}, nil
		}
		return Result{}, nil
	})

	_, err := b.Run(context.Background(), nil, nil, false)
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.ExitCode)
	assert.Equal(t, PhaseBootstrap, execErr.Phase)
}

func TestEnableFoundationAPIs(t *testing.T) {
	slept := false
	b, runner := newTestBootstrapper(t, nil)
	b.Sleep = func(time.Duration) { slept = true }

	b.EnableFoundationAPIs(context.Background(), "demo-project")

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, gcloudBinary, call.Binary)
	assert.Contains(t, call.Args, "services")
	assert.Contains(t, call.Args, "iamcredentials.googleapis.com")
	assert.Contains(t, call.Args, "demo-project")
	assert.True(t, slept, "must wait out API propagation after enabling")
}

func TestEnableFoundationAPIsFailureIsNonFatal(t *testing.T) {
	slept := false
	b, _ := newTestBootstrapper(t, func(inv Invocation) (Result, error) {
		return Result{ExitCode: 1, Stderr: "permission denied"}, nil
	})
	b.Sleep = func(time.Duration) { slept = true }

	b.EnableFoundationAPIs(context.Background(), "demo-project")
	assert.False(t, slept, "no propagation wait after a failed enable")
}
