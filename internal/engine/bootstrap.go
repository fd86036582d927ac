package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apim-tools/apimctl/internal/logging"
)

// foundationAPIs must be active before the bootstrap phase can create
// anything at all. Enabling them is best-effort: a failure is logged and the
// run proceeds, because terraform surfaces a precise error if an API is
// genuinely unavailable.
var foundationAPIs = []string{
	"cloudresourcemanager.googleapis.com",
	"iam.googleapis.com",
	"serviceusage.googleapis.com",
	"iamcredentials.googleapis.com",
}

// apiSettleDelay gives freshly enabled APIs time to propagate before
// terraform starts hitting them.
const apiSettleDelay = 10 * time.Second

// deployerOutputName is the bootstrap module output holding the service
// account email that all later phases impersonate.
const deployerOutputName = "deployer_sa_email"

// BootstrapResult reports what the bootstrap phase produced.
type BootstrapResult struct {
	// ServiceAccount is the deployer identity email.
	ServiceAccount string
	// Changed is false when the apply was an empty diff, meaning the
	// identity already existed before this run.
	Changed bool
}

// Bootstrapper converges the bootstrap phase under ambient credentials and
// extracts the deployer identity it creates.
type Bootstrapper struct {
	Stager *Stager
	Runner ToolRunner

	// Sleep is swapped out in tests.
	Sleep func(time.Duration)
}

func NewBootstrapper(stager *Stager, runner ToolRunner) *Bootstrapper {
	return &Bootstrapper{Stager: stager, Runner: runner, Sleep: time.Sleep}
}

// EnableFoundationAPIs turns on the service APIs the bootstrap phase
// depends on. Failures are downgraded to warnings.
func (b *Bootstrapper) EnableFoundationAPIs(ctx context.Context, projectID string) {
	args := append([]string{"services", "enable"}, foundationAPIs...)
	args = append(args, "--project", projectID)

	res, err := b.Runner.Run(ctx, Invocation{Binary: gcloudBinary, Args: args})
	if err != nil || res.ExitCode != 0 {
		logging.Warn("could not enable foundation APIs, continuing",
			"project", projectID, "stderr", strings.TrimSpace(res.Stderr))
		return
	}
	logging.Debug("foundation APIs enabled, waiting for propagation", "delay", apiSettleDelay)
	b.Sleep(apiSettleDelay)
}

// Run stages and applies the bootstrap phase, then reads back the deployer
// identity. The bootstrap phase always auto-approves: it manages only the
// minimal identity scaffolding and must be non-interactive so the main
// phase can follow in the same invocation.
func (b *Bootstrapper) Run(ctx context.Context, vars map[string]string, overrides []string, verbose bool) (*BootstrapResult, error) {
	sc, err := b.Stager.StagePhase(PhaseBootstrap, vars, overrides)
	if err != nil {
		return nil, err
	}

	if err := tfInit(ctx, b.Runner, sc, verbose); err != nil {
		return nil, err
	}

	args := []string{"apply", "-input=false", "-auto-approve"}
	args = append(args, varArgs(vars)...)
	res, err := tf(ctx, b.Runner, sc, verbose, nil, args...)
	if err != nil {
		return nil, err
	}
	changed := !planHasNoChanges(res.Stdout)
	if changed {
		logging.Info("bootstrap phase applied changes")
	} else {
		logging.Debug("bootstrap phase already converged")
	}

	email, err := b.deployerIdentity(ctx, sc)
	if err != nil {
		return nil, err
	}
	logging.Info("deployer identity ready", "serviceAccount", email)

	return &BootstrapResult{ServiceAccount: email, Changed: changed}, nil
}

// deployerIdentity reads the deployer service account email from the
// bootstrap outputs. A missing or empty output means the phase did not
// produce a usable identity, which nothing downstream can recover from.
func (b *Bootstrapper) deployerIdentity(ctx context.Context, sc *StagingContext) (string, error) {
	res, err := tf(ctx, b.Runner, sc, false, nil, "output", "-raw", deployerOutputName)
	if err != nil {
		return "", &IdentityError{Msg: "bootstrap produced no deployer identity", Err: err}
	}
	email := strings.TrimSpace(res.Stdout)
	if email == "" {
		return "", &IdentityError{Msg: fmt.Sprintf("bootstrap output %q is empty", deployerOutputName)}
	}
	return email, nil
}
