package reconcile

import (
	"context"

	"branchward/internal/gitlab"
	"branchward/internal/retry"
)

// Protection is the desired protected-branch rule for one branch name or
// wildcard pattern.
type Protection struct {
	Name                      string
	PushAccessLevel           int
	MergeAccessLevel          int
	UnprotectAccessLevel      int
	AllowForcePush            bool
	CodeOwnerApprovalRequired bool

	// Wildcard skips the existence pre-check: exact-match lookups are
	// unreliable for patterns, so patterns are always submitted for creation
	// and collisions resolve through fault classification.
	Wildcard bool
}

// IsBranchProtected lists the project's protection rules and compares names
// exactly. No pattern matching: a wildcard rule covering the branch does not
// count, only a rule whose literal name equals name.
func (r *Reconciler) IsBranchProtected(ctx context.Context, projectID int, name string) Presence {
	r.log.Debug("checking branch protection", "project", projectID, "branch", name)
	rules, err := retry.DoValue(ctx, r.exec, "list protected branches", func() ([]gitlab.ProtectedBranch, error) {
		return r.api.ListProtectedBranches(ctx, projectID)
	})
	if err != nil {
		r.log.Error("protection check failed", "project", projectID, "branch", name, "err", err)
		return CheckFailed
	}
	for _, rule := range rules {
		if rule.Name == name {
			return Present
		}
	}
	return Absent
}

// ProtectBranch ensures a protection rule exists for p.Name.
func (r *Reconciler) ProtectBranch(ctx context.Context, projectID int, p Protection) Outcome {
	r.log.Debug("protecting branch", "project", projectID, "branch", p.Name, "wildcard", p.Wildcard)
	if !p.Wildcard && r.IsBranchProtected(ctx, projectID, p.Name) == Present {
		return Outcome{Status: StatusAlreadyProtected, Message: "branch is already protected"}
	}

	err := r.exec.Do(ctx, "protect branch", func() error {
		return r.api.ProtectBranch(ctx, projectID, gitlab.ProtectOptions{
			Name:                      p.Name,
			PushAccessLevel:           p.PushAccessLevel,
			MergeAccessLevel:          p.MergeAccessLevel,
			UnprotectAccessLevel:      p.UnprotectAccessLevel,
			AllowForcePush:            p.AllowForcePush,
			CodeOwnerApprovalRequired: p.CodeOwnerApprovalRequired,
		})
	})
	if err != nil {
		if ClassifyCreateFault(err, r.markers.BranchProtected) == FaultAlreadyExists {
			return Outcome{Status: StatusAlreadyProtected, Message: "branch is already protected"}
		}
		return failed(err)
	}
	return Outcome{Status: StatusProtected, Message: "branch protected"}
}
