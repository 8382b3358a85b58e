package reconcile

import (
	"context"
	"fmt"

	"branchward/internal/gitlab"
	"branchward/internal/retry"
)

// DefaultApprovalRuleName is used when the caller supplies no rule name.
const DefaultApprovalRuleName = "Maintainers Approval"

// ApprovalRuleExists lists the project's approval rules and compares names
// exactly. Rule names are project-scoped, not branch-scoped: two branches
// requesting the same name collide and the second sees Present.
func (r *Reconciler) ApprovalRuleExists(ctx context.Context, projectID int, ruleName string) Presence {
	r.log.Debug("checking approval rule", "project", projectID, "rule", ruleName)
	rules, err := retry.DoValue(ctx, r.exec, "list approval rules", func() ([]gitlab.ApprovalRule, error) {
		return r.api.ListApprovalRules(ctx, projectID)
	})
	if err != nil {
		r.log.Error("approval rule check failed", "project", projectID, "rule", ruleName, "err", err)
		return CheckFailed
	}
	for _, rule := range rules {
		if rule.Name == ruleName {
			return Present
		}
	}
	return Absent
}

// AddApprovalRule ensures a one-approval rule with groupID as the approver
// group exists under ruleName. branchName appears in display text only.
func (r *Reconciler) AddApprovalRule(ctx context.Context, projectID int, branchName string, groupID int, ruleName string) Outcome {
	if ruleName == "" {
		ruleName = DefaultApprovalRuleName
	}
	r.log.Debug("adding approval rule", "project", projectID, "branch", branchName, "rule", ruleName)

	if r.ApprovalRuleExists(ctx, projectID, ruleName) == Present {
		return Outcome{Status: StatusAlreadyExists, Message: fmt.Sprintf("approval rule already exists for %q", branchName)}
	}

	err := r.exec.Do(ctx, "create approval rule", func() error {
		return r.api.CreateApprovalRule(ctx, projectID, gitlab.ApprovalRuleOptions{
			Name:                          ruleName,
			ApprovalsRequired:             1,
			GroupIDs:                      []int{groupID},
			AppliesToAllProtectedBranches: false,
			RuleType:                      "regular",
		})
	})
	if err != nil {
		if ClassifyCreateFault(err, r.markers.RuleTaken) == FaultAlreadyExists {
			return Outcome{Status: StatusAlreadyExists, Message: fmt.Sprintf("approval rule already exists for %q", branchName)}
		}
		return failed(err)
	}
	return Outcome{Status: StatusCreated, Message: fmt.Sprintf("approval rule added for %q", branchName)}
}
