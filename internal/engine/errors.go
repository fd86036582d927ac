package engine

import "fmt"

// ConfigError reports ambiguous or conflicting variable sources. It is
// always raised before any cloud-mutating call.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// NewConflictError builds the ConfigError for an immutable field whose
// template value contradicts the value recorded in state.
func NewConflictError(field, templateVal, discoveredVal string) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(
		"conflict on %q: template says %q but existing state says %q; "+
			"immutable fields are never merged, fix the template or detach the state",
		field, templateVal, discoveredVal)}
}

// IdentityError reports a failed bootstrap convergence or an unreadable
// deployer identity. The run cannot continue without the identity unless
// impersonation was explicitly skipped.
type IdentityError struct {
	Msg string
	Err error
}

func (e *IdentityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *IdentityError) Unwrap() error { return e.Err }

// ExecError reports a nonzero exit from a main-phase tool invocation. The
// tool's exit code is propagated verbatim to the process exit code.
type ExecError struct {
	Phase    string
	ExitCode int
	Output   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("terraform failed in phase %s (exit %d)", e.Phase, e.ExitCode)
}

// ModuleNotFoundError reports a missing packaged terraform module tree for a
// phase. Staging has no partial-success mode, so this is fatal.
type ModuleNotFoundError struct {
	Phase string
	Path  string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("terraform module for phase %s not found at %s", e.Phase, e.Path)
}
