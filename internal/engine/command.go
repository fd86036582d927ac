// Package engine implements the phased convergence engine: staging of
// per-phase execution directories, the bootstrap-then-impersonate identity
// handoff, variable resolution, best-effort adoption of pre-existing
// resources and the top-level orchestration loop.
package engine

// Phase names. The bootstrap phase provisions the deployer identity under
// the operator's ambient credentials; the main phase converges everything
// else, normally under the impersonated identity.
const (
	PhaseBootstrap = "0-bootstrap"
	PhaseMain      = "1-main"
)

// Command is the closed set of convergence commands the orchestrator can
// drive. Adding a command means extending every switch over this type.
type Command int

const (
	// CommandPlan previews changes without mutating anything.
	CommandPlan Command = iota
	// CommandApply converges the project to the resolved variable set.
	CommandApply
	// CommandImport adopts pre-existing remote resources into state and
	// stops; it never runs a plan or apply afterwards.
	CommandImport
)

func (c Command) String() string {
	switch c {
	case CommandPlan:
		return "plan"
	case CommandApply:
		return "apply"
	case CommandImport:
		return "import"
	default:
		return "unknown"
	}
}

// mutating reports whether the command changes remote resources or state.
func (c Command) mutating() bool {
	switch c {
	case CommandPlan:
		return false
	case CommandApply, CommandImport:
		return true
	default:
		return false
	}
}
