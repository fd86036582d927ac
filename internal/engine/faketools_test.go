package engine

import (
	"context"
	"strings"
)

// fakeRunner records every invocation and answers from a scripted handler.
// The default handler succeeds with empty output.
type fakeRunner struct {
	calls   []Invocation
	handler func(inv Invocation) (Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	f.calls = append(f.calls, inv)
	if f.handler == nil {
		return Result{}, nil
	}
	return f.handler(inv)
}

// argsContain reports whether the invocation's arguments include all of want
// in order, anywhere in the argument list.
func argsContain(inv Invocation, want ...string) bool {
	joined := " " + strings.Join(inv.Args, " ") + " "
	return strings.Contains(joined, " "+strings.Join(want, " ")+" ")
}

// terraformCalls filters the recorded invocations down to terraform ones.
func (f *fakeRunner) terraformCalls() []Invocation {
	var out []Invocation
	for _, c := range f.calls {
		if c.Binary == terraformBinary {
			out = append(out, c)
		}
	}
	return out
}
