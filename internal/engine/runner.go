package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Invocation describes one external tool call.
type Invocation struct {
	// Binary is the executable name, resolved via PATH.
	Binary string
	Args   []string
	// Dir is the working directory; empty means inherit.
	Dir string
	// Env entries are appended to the inherited environment.
	Env map[string]string
	// Stream connects the child directly to the caller's stdio instead of
	// capturing output. Used for verbose mode and interactive approval.
	Stream bool
}

// Result is the outcome of a completed invocation. A nonzero ExitCode is not
// an error at this layer; callers classify it.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ToolRunner executes external tool invocations. The error return is
// reserved for failures to run at all (binary missing, context cancelled);
// tool-level failures surface through Result.ExitCode.
type ToolRunner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner runs invocations as real subprocesses.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	bin, err := exec.LookPath(inv.Binary)
	if err != nil {
		return Result{}, fmt.Errorf("%q binary not found in PATH: %w", inv.Binary, err)
	}

	cmd := exec.CommandContext(ctx, bin, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = os.Environ()
	for k, v := range inv.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	if inv.Stream {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}
		return Result{}, fmt.Errorf("failed to run %s: %w", inv.Binary, err)
	}

	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// FailureReason classifies a failed terraform import from its stderr text.
// The tool's error surface is plain text, so classification is substring
// matching against known messages, isolated here.
type FailureReason int

const (
	// ReasonNone means the invocation did not fail.
	ReasonNone FailureReason = iota
	// ReasonAlreadyManaged means the resource is already tracked in state.
	ReasonAlreadyManaged
	// ReasonNotFoundRemotely means the remote object does not exist.
	ReasonNotFoundRemotely
	// ReasonUnknown covers every other failure.
	ReasonUnknown
)

var alreadyManagedMarkers = []string{
	"already managed by Terraform",
	"already exists in the state",
	"Conflict",
}

var notFoundMarkers = []string{
	"Cannot import non-existent remote object",
}

// ClassifyImportFailure maps terraform import stderr text onto a closed
// failure reason.
func ClassifyImportFailure(stderr string) FailureReason {
	for _, marker := range alreadyManagedMarkers {
		if strings.Contains(stderr, marker) {
			return ReasonAlreadyManaged
		}
	}
	for _, marker := range notFoundMarkers {
		if strings.Contains(stderr, marker) {
			return ReasonNotFoundRemotely
		}
	}
	return ReasonUnknown
}
