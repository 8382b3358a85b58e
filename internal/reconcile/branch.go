package reconcile

import (
	"context"

	"branchward/internal/gitlab"
	"branchward/internal/retry"
)

// BranchExists probes for a branch by name. A not-found fault means Absent;
// any other fault (after the executor's retries) means CheckFailed.
func (r *Reconciler) BranchExists(ctx context.Context, projectID int, name string) Presence {
	r.log.Debug("checking branch existence", "project", projectID, "branch", name)
	_, err := retry.DoValue(ctx, r.exec, "get branch", func() (gitlab.Branch, error) {
		return r.api.GetBranch(ctx, projectID, name)
	})
	if err == nil {
		return Present
	}
	if gitlab.IsNotFound(err) {
		return Absent
	}
	r.log.Error("branch existence check failed", "project", projectID, "branch", name, "err", err)
	return CheckFailed
}

// CreateBranch ensures a branch exists, creating it from ref if absent.
// A failed existence probe falls through to creation; a benign collision
// there resolves the ambiguity.
func (r *Reconciler) CreateBranch(ctx context.Context, projectID int, name, ref string) Outcome {
	r.log.Debug("creating branch", "project", projectID, "branch", name, "ref", ref)
	if r.BranchExists(ctx, projectID, name) == Present {
		return Outcome{Status: StatusAlreadyExists, Message: "branch already exists"}
	}

	err := r.exec.Do(ctx, "create branch", func() error {
		return r.api.CreateBranch(ctx, projectID, name, ref)
	})
	if err != nil {
		if ClassifyCreateFault(err, r.markers.BranchExists) == FaultAlreadyExists {
			return Outcome{Status: StatusAlreadyExists, Message: "branch already exists"}
		}
		return failed(err)
	}
	return Outcome{Status: StatusCreated, Message: "branch created"}
}
