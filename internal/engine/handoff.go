package engine

import (
	"context"
	"strings"
	"time"

	"github.com/apim-tools/apimctl/internal/logging"
)

// Prober checks whether a service account can already be impersonated by
// the current operator credentials.
type Prober interface {
	Probe(ctx context.Context, serviceAccount string) (bool, error)
}

// GcloudProber asks gcloud to mint an access token for the target identity.
// Success proves the whole impersonation chain (IAM binding plus credential
// propagation) is live, which is exactly what the main phase needs.
type GcloudProber struct {
	Runner ToolRunner
}

func (p *GcloudProber) Probe(ctx context.Context, serviceAccount string) (bool, error) {
	res, err := p.Runner.Run(ctx, Invocation{
		Binary: gcloudBinary,
		Args: []string{
			"auth", "print-access-token",
			"--impersonate-service-account=" + serviceAccount,
		},
	})
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		logging.Debug("impersonation probe refused",
			"serviceAccount", serviceAccount, "stderr", strings.TrimSpace(res.Stderr))
		return false, nil
	}
	return strings.TrimSpace(res.Stdout) != "", nil
}

// Verifier polls until the deployer identity becomes usable or a deadline
// passes. IAM propagation is eventually consistent with no completion
// signal, so polling is the only observable.
type Verifier struct {
	Prober   Prober
	Timeout  time.Duration
	Interval time.Duration

	Sleep func(time.Duration)
	Now   func() time.Time
}

// verification bounds: IAM bindings usually propagate within a minute; two
// gives slow regions headroom without stalling every run on a real failure.
const (
	defaultHandoffTimeout  = 120 * time.Second
	defaultHandoffInterval = 5 * time.Second
)

func NewVerifier(prober Prober) *Verifier {
	return &Verifier{
		Prober:   prober,
		Timeout:  defaultHandoffTimeout,
		Interval: defaultHandoffInterval,
		Sleep:    time.Sleep,
		Now:      time.Now,
	}
}

// WaitUntilUsable polls the probe until it succeeds or the timeout lapses.
// Timing out returns false without an error: the caller proceeds anyway and
// lets the main phase fail with a concrete permission error if the identity
// truly never propagated.
func (v *Verifier) WaitUntilUsable(ctx context.Context, serviceAccount string) (bool, error) {
	deadline := v.Now().Add(v.Timeout)
	attempt := 0
	for {
		attempt++
		ok, err := v.Prober.Probe(ctx, serviceAccount)
		if err != nil {
			return false, &IdentityError{Msg: "impersonation probe could not run", Err: err}
		}
		if ok {
			logging.Debug("impersonation verified", "serviceAccount", serviceAccount, "attempts", attempt)
			return true, nil
		}
		if !v.Now().Add(v.Interval).Before(deadline) {
			logging.Warn("impersonation not verified before deadline, proceeding optimistically",
				"serviceAccount", serviceAccount, "timeout", v.Timeout, "attempts", attempt)
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		v.Sleep(v.Interval)
	}
}
