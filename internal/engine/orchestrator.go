package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/apim-tools/apimctl/internal/config"
	"github.com/apim-tools/apimctl/internal/logging"
	"github.com/apim-tools/apimctl/internal/state"
	"github.com/apim-tools/apimctl/internal/template"
)

// impersonation environment passed to main-phase terraform so the google
// provider acts as the deployer identity instead of the operator.
const (
	envImpersonate     = "GOOGLE_IMPERSONATE_SERVICE_ACCOUNT"
	envProjectOverride = "USER_PROJECT_OVERRIDE"
	envBillingProject  = "GOOGLE_BILLING_PROJECT"
)

// immutableVars cannot change once the organization exists. A template that
// disagrees with discovered state on any of these aborts before a single
// subprocess runs, because terraform would otherwise plan a destroy.
var immutableVars = []string{
	"apigee_runtime_location",
	"apigee_analytics_region",
	"control_plane_location",
	"consumer_data_region",
	"apigee_billing_type",
}

// Plan captures one fully resolved engine invocation.
type Plan struct {
	Command  Command
	Template *template.Template

	AutoApprove       bool
	SkipImpersonation bool
	BootstrapOnly     bool
	DeletesAllowed    bool
	FakeSecret        bool
	Adopt             bool
	Verbose           bool

	Targets   []string
	Overrides []string
}

// SnapshotReader loads the discovered prior state for a project.
type SnapshotReader interface {
	Read(path string) (*state.Snapshot, error)
}

type fileSnapshotReader struct{}

func (fileSnapshotReader) Read(path string) (*state.Snapshot, error) {
	return state.ReadSnapshot(path)
}

type bootstrapper interface {
	EnableFoundationAPIs(ctx context.Context, projectID string)
	Run(ctx context.Context, vars map[string]string, overrides []string, verbose bool) (*BootstrapResult, error)
}

type handoffVerifier interface {
	WaitUntilUsable(ctx context.Context, serviceAccount string) (bool, error)
}

type adopter interface {
	Adopt(ctx context.Context, sc *StagingContext, candidates []Candidate, env map[string]string) []AdoptionRecord
}

// Orchestrator sequences a full convergence run: bootstrap the deployer
// identity, verify it is usable, then converge the main phase as that
// identity. Every collaborator is injected so each stage tests in isolation.
type Orchestrator struct {
	cfg    *config.Config
	stager *Stager
	runner ToolRunner

	bootstrap bootstrapper
	verifier  handoffVerifier
	adopter   adopter
	snapshots SnapshotReader

	newRunID func() string
}

func NewOrchestrator(cfg *config.Config, runner ToolRunner) *Orchestrator {
	stager := NewStager(cfg)
	return &Orchestrator{
		cfg:       cfg,
		stager:    stager,
		runner:    runner,
		bootstrap: NewBootstrapper(stager, runner),
		verifier:  NewVerifier(&GcloudProber{Runner: runner}),
		adopter:   &Adopter{Runner: runner},
		snapshots: fileSnapshotReader{},
		newRunID:  uuid.NewString,
	}
}

// Converge executes the plan end to end. The returned error is nil only when
// every executed phase converged; ExecError carries terraform's exit code
// for the CLI layer to propagate.
func (o *Orchestrator) Converge(ctx context.Context, plan *Plan) error {
	runID := o.newRunID()
	log := logging.With("runId", runID, "project", o.cfg.Project.GCPProjectID, "command", plan.Command.String())
	log.Info("starting convergence run")

	lock := state.NewLock(o.stager.StatePath(PhaseMain))
	if err := lock.Acquire(); err != nil {
		return &ConfigError{Msg: fmt.Sprintf("another run holds the project lock: %v", err)}
	}
	defer lock.Release()

	vars, snap, err := o.resolveVars(plan)
	if err != nil {
		return err
	}

	// With impersonation skipped the main phase runs under ambient
	// credentials and the whole bootstrap phase is unnecessary.
	identity := ""
	if !plan.SkipImpersonation {
		res, err := o.runBootstrap(ctx, plan, vars)
		if err != nil {
			return err
		}
		if plan.BootstrapOnly {
			log.Info("bootstrap-only run complete", "serviceAccount", res.ServiceAccount)
			return nil
		}
		identity = res.ServiceAccount

		if res.Changed {
			if _, err := o.verifier.WaitUntilUsable(ctx, identity); err != nil {
				return err
			}
		} else {
			log.Debug("bootstrap unchanged, skipping impersonation verification")
		}
	}

	if err := o.runMain(ctx, plan, vars, snap, identity); err != nil {
		return err
	}
	log.Info("convergence complete")
	return nil
}

func (o *Orchestrator) runBootstrap(ctx context.Context, plan *Plan, vars map[string]string) (*BootstrapResult, error) {
	o.bootstrap.EnableFoundationAPIs(ctx, o.cfg.Project.GCPProjectID)

	// Destructive-change and placeholder-secret switches apply to the
	// bootstrap phase too; it owns the secret scaffolding.
	bvars := vars
	if plan.DeletesAllowed || plan.FakeSecret {
		bvars = make(map[string]string, len(vars)+2)
		for k, v := range vars {
			bvars[k] = v
		}
		if plan.DeletesAllowed {
			bvars["deletes_allowed"] = "true"
		}
		if plan.FakeSecret {
			bvars["use_fake_secret"] = "true"
		}
	}
	return o.bootstrap.Run(ctx, bvars, plan.Overrides, plan.Verbose)
}

func (o *Orchestrator) runMain(ctx context.Context, plan *Plan, vars map[string]string, snap *state.Snapshot, identity string) error {
	sc, err := o.stager.StagePhase(PhaseMain, vars, plan.Overrides)
	if err != nil {
		return err
	}
	if err := tfInit(ctx, o.runner, sc, plan.Verbose); err != nil {
		return err
	}

	env := o.mainEnv(plan, identity)

	if plan.Command == CommandImport || (plan.Adopt && plan.Command.mutating()) {
		cands := o.adoptionCandidates(vars, snap)
		records := o.adopter.Adopt(ctx, sc, cands, env)
		if plan.Command == CommandImport {
			printAdoptionSummary(records)
			return nil
		}
	}

	args := o.mainArgs(plan, vars)
	interactive := plan.Command == CommandApply && !plan.AutoApprove
	stream := plan.Verbose || interactive

	res, err := tf(ctx, o.runner, sc, stream, env, args...)
	if err != nil {
		return err
	}
	if !stream {
		summarize(res.Stdout)
	}
	return nil
}

func (o *Orchestrator) mainEnv(plan *Plan, identity string) map[string]string {
	if plan.SkipImpersonation || identity == "" {
		return nil
	}
	return map[string]string{
		envImpersonate:     identity,
		envProjectOverride: "true",
		envBillingProject:  o.cfg.Project.GCPProjectID,
	}
}

func (o *Orchestrator) mainArgs(plan *Plan, vars map[string]string) []string {
	args := []string{plan.Command.String(), "-input=false"}
	if plan.Command == CommandApply && plan.AutoApprove {
		args = append(args, "-auto-approve")
	}
	for _, t := range plan.Targets {
		args = append(args, "-target="+t)
	}
	args = append(args, varArgs(vars)...)
	if plan.DeletesAllowed {
		args = append(args, "-var=deletes_allowed=true")
	}
	if plan.FakeSecret {
		args = append(args, "-var=use_fake_secret=true")
	}
	return args
}

func (o *Orchestrator) adoptionCandidates(vars map[string]string, snap *state.Snapshot) []Candidate {
	projectID := o.cfg.Project.GCPProjectID
	instance := vars["apigee_instance_name"]
	runtime := vars["apigee_runtime_location"]
	var envs []string
	if snap != nil {
		envs = snap.Environments
	}
	return DefaultCandidates(projectID, runtime, instance, envs)
}

// resolveVars decides what variables drive this run. An explicit template is
// authoritative and is cross-checked against any discovered state for
// immutable-field conflicts; without a template a prior state snapshot
// supplies the values. With neither, commands that converge to a target
// shape abort, while import falls back to the project configuration: a
// brownfield adoption starts exactly in the no-local-state condition and
// needs only the project identity to import against.
func (o *Orchestrator) resolveVars(plan *Plan) (map[string]string, *state.Snapshot, error) {
	snap, err := o.snapshots.Read(o.stager.StatePath(PhaseMain))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read prior state: %w", err)
	}

	if plan.Template != nil {
		vars := plan.Template.Vars(o.cfg.Project.GCPProjectID)
		if snap != nil && snap.HasOrganization() {
			if err := checkImmutableConflicts(vars, snap.Vars()); err != nil {
				return nil, nil, err
			}
		}
		return vars, snap, nil
	}

	if snap != nil && snap.HasOrganization() {
		logging.Debug("no template supplied, deriving variables from discovered state")
		return snap.Vars(), snap, nil
	}

	if plan.Command == CommandImport {
		logging.Debug("no template and no prior state, deriving variables from project configuration")
		return o.configVars(), snap, nil
	}

	return nil, nil, &ConfigError{Msg: "no prior state and no template: supply a template to create a new organization"}
}

// configVars builds the default variable set from apigee.toml. It is the
// weakest of the three variable origins and is never merged with the others.
func (o *Orchestrator) configVars() map[string]string {
	vars := map[string]string{
		"gcp_project_id": o.cfg.Project.GCPProjectID,
	}
	a := o.cfg.Apigee
	if a.BillingType != "" {
		vars["apigee_billing_type"] = a.BillingType
	}
	if a.AnalyticsRegion != "" {
		vars["apigee_analytics_region"] = a.AnalyticsRegion
	}
	if a.ControlPlaneLocation != "" {
		vars["control_plane_location"] = a.ControlPlaneLocation
	}
	if a.ConsumerDataRegion != "" {
		vars["consumer_data_region"] = a.ConsumerDataRegion
	}
	if a.InstanceName != "" {
		vars["apigee_instance_name"] = a.InstanceName
	}
	if o.cfg.Network.Domain != "" {
		vars["network_domain"] = o.cfg.Network.Domain
	}
	return vars
}

func checkImmutableConflicts(templated, discovered map[string]string) error {
	for _, key := range immutableVars {
		want, inTemplate := templated[key]
		have, inState := discovered[key]
		if inTemplate && inState && want != "" && have != "" && want != have {
			return NewConflictError(key, want, have)
		}
	}
	return nil
}

// summarize prints only the outcome lines from captured terraform output so
// non-verbose runs stay readable.
func summarize(output string) {
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Plan:") ||
			strings.HasPrefix(trimmed, "Apply complete!") ||
			strings.HasPrefix(trimmed, "No changes.") {
			fmt.Println(trimmed)
		}
	}
}

func printAdoptionSummary(records []AdoptionRecord) {
	for _, rec := range records {
		switch rec.Outcome {
		case Failed, SkippedDependency:
			fmt.Printf("%s: %s (%s)\n", rec.Address, rec.Outcome, rec.Detail)
		default:
			fmt.Printf("%s: %s\n", rec.Address, rec.Outcome)
		}
	}
}
