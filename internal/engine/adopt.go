package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/apim-tools/apimctl/internal/logging"
)

// Candidate names one resource the engine will try to adopt into terraform
// state before converging the main phase.
type Candidate struct {
	// Address is the terraform resource address to import into.
	Address string
	// RemoteID is the provider-side identifier of the existing resource.
	RemoteID string
	// DependsOn lists addresses that must have adopted successfully first.
	// An import whose dependency failed is skipped rather than attempted,
	// because terraform would reject it with a confusing provider error.
	DependsOn []string
}

// Outcome classifies what happened to one adoption candidate.
type Outcome int

const (
	// Imported means the resource is now tracked in state.
	Imported Outcome = iota
	// AlreadyManaged means state already tracked it before this run.
	AlreadyManaged
	// NotFoundRemotely means the resource does not exist yet, so terraform
	// will create it. Expected on fresh projects, never an error.
	NotFoundRemotely
	// SkippedDependency means a prerequisite adoption did not land.
	SkippedDependency
	// Failed covers everything else; the run continues and plan/apply
	// surfaces the real problem.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Imported:
		return "imported"
	case AlreadyManaged:
		return "already-managed"
	case NotFoundRemotely:
		return "not-found-remotely"
	case SkippedDependency:
		return "skipped-dependency"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// AdoptionRecord is the per-candidate result of an adoption pass.
type AdoptionRecord struct {
	Address string
	Outcome Outcome
	Detail  string
}

// Adopter imports pre-existing resources into a staged phase's state so
// terraform stops planning to recreate them.
type Adopter struct {
	Runner ToolRunner
}

// DefaultCandidates returns the adoption set for an Apigee project. Ordering
// matters only through DependsOn: the organization must land before anything
// nested under it.
func DefaultCandidates(projectID, runtimeLocation, instanceName string, environments []string) []Candidate {
	orgAddr := "google_apigee_organization.org"
	cands := []Candidate{
		{
			Address:  "google_compute_network.apigee_network",
			RemoteID: fmt.Sprintf("projects/%s/global/networks/apigee-network", projectID),
		},
		{
			Address:  orgAddr,
			RemoteID: "organizations/" + projectID,
		},
	}
	if instanceName != "" && runtimeLocation != "" {
		cands = append(cands, Candidate{
			Address:   "google_apigee_instance.instance",
			RemoteID:  fmt.Sprintf("organizations/%s/instances/%s", projectID, instanceName),
			DependsOn: []string{orgAddr},
		})
	}
	for _, env := range environments {
		cands = append(cands, Candidate{
			Address:   fmt.Sprintf("google_apigee_environment.env[%q]", env),
			RemoteID:  fmt.Sprintf("organizations/%s/environments/%s", projectID, env),
			DependsOn: []string{orgAddr},
		})
	}
	return cands
}

// Adopt attempts every candidate in order and never fails the run: each
// candidate resolves to a terminal outcome and convergence proceeds on
// whatever state the pass left behind.
func (a *Adopter) Adopt(ctx context.Context, sc *StagingContext, candidates []Candidate, env map[string]string) []AdoptionRecord {
	managed := a.managedAddresses(ctx, sc, env)

	records := make([]AdoptionRecord, 0, len(candidates))
	landed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		rec := a.adoptOne(ctx, sc, c, managed, landed, env)
		if rec.Outcome == Imported || rec.Outcome == AlreadyManaged {
			landed[c.Address] = true
		}
		logging.Info("adoption candidate resolved",
			"address", rec.Address, "outcome", rec.Outcome.String())
		records = append(records, rec)
	}
	return records
}

func (a *Adopter) adoptOne(ctx context.Context, sc *StagingContext, c Candidate, managed map[string]bool, landed map[string]bool, env map[string]string) AdoptionRecord {
	if managed[c.Address] {
		return AdoptionRecord{Address: c.Address, Outcome: AlreadyManaged}
	}
	for _, dep := range c.DependsOn {
		if !landed[dep] {
			return AdoptionRecord{
				Address: c.Address,
				Outcome: SkippedDependency,
				Detail:  "prerequisite not in state: " + dep,
			}
		}
	}

	res, err := tf(ctx, a.Runner, sc, false, env,
		"import", "-input=false", "-lock=false", c.Address, c.RemoteID)
	if err == nil {
		return AdoptionRecord{Address: c.Address, Outcome: Imported}
	}

	switch ClassifyImportFailure(res.Stderr) {
	case ReasonAlreadyManaged:
		return AdoptionRecord{Address: c.Address, Outcome: AlreadyManaged}
	case ReasonNotFoundRemotely:
		return AdoptionRecord{Address: c.Address, Outcome: NotFoundRemotely}
	default:
		detail := strings.TrimSpace(res.Stderr)
		logging.Warn("adoption failed, continuing", "address", c.Address, "detail", detail)
		return AdoptionRecord{Address: c.Address, Outcome: Failed, Detail: detail}
	}
}

// managedAddresses lists what the phase's state already tracks so obvious
// already-managed candidates skip the import subprocess entirely. A failed
// state list (for example, no state yet) degrades to an empty set.
func (a *Adopter) managedAddresses(ctx context.Context, sc *StagingContext, env map[string]string) map[string]bool {
	res, err := tf(ctx, a.Runner, sc, false, env, "state", "list")
	if err != nil {
		return nil
	}
	managed := make(map[string]bool)
	for _, line := range strings.Split(res.Stdout, "\n") {
		if addr := strings.TrimSpace(line); addr != "" {
			managed[addr] = true
		}
	}
	return managed
}
