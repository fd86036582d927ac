package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const (
	terraformBinary = "terraform"
	gcloudBinary    = "gcloud"
)

// noChangeMarker appears in terraform apply output when the plan was empty.
const noChangeMarker = "0 added, 0 changed, 0 destroyed"

// tf issues one terraform command in a staged directory and fails with an
// ExecError carrying the subprocess exit code when terraform itself fails.
func tf(ctx context.Context, r ToolRunner, sc *StagingContext, stream bool, env map[string]string, args ...string) (Result, error) {
	res, err := r.Run(ctx, Invocation{
		Binary: terraformBinary,
		Args:   args,
		Dir:    sc.Dir,
		Env:    env,
		Stream: stream,
	})
	if err != nil {
		return res, fmt.Errorf("failed to run terraform: %w", err)
	}
	if res.ExitCode != 0 {
		return res, &ExecError{Phase: sc.Phase, ExitCode: res.ExitCode, Output: res.Stderr}
	}
	return res, nil
}

// tfInit runs terraform init non-interactively. Init is safe to repeat; the
// orchestrator calls it once per staged directory.
func tfInit(ctx context.Context, r ToolRunner, sc *StagingContext, stream bool) error {
	_, err := tf(ctx, r, sc, stream, nil, "init", "-input=false")
	return err
}

// varArgs renders an explicit variable map as -var flags in deterministic
// order. Generated variable files cover auto-loaded values; -var flags exist
// so the command line itself records what the run was pinned to.
func varArgs(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-var=%s=%s", k, vars[k]))
	}
	return args
}

// planHasNoChanges reports whether apply/plan output declared an empty diff.
func planHasNoChanges(output string) bool {
	return strings.Contains(output, noChangeMarker)
}
