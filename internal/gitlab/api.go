package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Group is a GitLab group or subgroup.
type Group struct {
	ID       int
	Name     string
	FullPath string
	ParentID int
}

// Project addresses a single project; PathWithNamespace is for display only.
type Project struct {
	ID                int
	PathWithNamespace string
}

type Branch struct {
	Name string
}

type ProtectedBranch struct {
	ID   int
	Name string
}

type ApprovalRule struct {
	ID   int
	Name string
}

// ProtectOptions describes a protected-branch rule to create. Name may be a
// literal branch name or a wildcard pattern; GitLab treats both the same way
// on creation.
type ProtectOptions struct {
	Name                      string
	PushAccessLevel           int
	MergeAccessLevel          int
	UnprotectAccessLevel      int
	AllowForcePush            bool
	CodeOwnerApprovalRequired bool
}

// ApprovalRuleOptions describes a project-level approval rule to create.
type ApprovalRuleOptions struct {
	Name                          string
	ApprovalsRequired             int
	GroupIDs                      []int
	ProtectedBranchIDs            []int
	AppliesToAllProtectedBranches bool
	RuleType                      string
}

// API is the remote capability set the reconciliation engine consumes.
// Every method issues exactly one logical remote operation and returns an
// *APIError on failure so callers can classify by status code.
type API interface {
	// ListGroups lists the top-level groups visible to the token; subgroups
	// come from ListSubgroups.
	ListGroups(ctx context.Context) ([]Group, error)
	ListSubgroups(ctx context.Context, groupID int) ([]Group, error)
	ListProjects(ctx context.Context, groupID int) ([]Project, error)

	GetBranch(ctx context.Context, projectID int, name string) (Branch, error)
	CreateBranch(ctx context.Context, projectID int, name, ref string) error

	ListProtectedBranches(ctx context.Context, projectID int) ([]ProtectedBranch, error)
	ProtectBranch(ctx context.Context, projectID int, opt ProtectOptions) error

	ListApprovalRules(ctx context.Context, projectID int) ([]ApprovalRule, error)
	CreateApprovalRule(ctx context.Context, projectID int, opt ApprovalRuleOptions) error
}

// APIError is the typed fault every API method returns on failure.
// StatusCode is 0 when the failure never reached the HTTP layer (transport
// errors, canceled contexts); the retry executor treats those as unclassified.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gitlab: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("gitlab: %s", e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCodeOf extracts the HTTP-like status code carried on err, or 0 when
// err carries none. All fault classification goes through this single probe.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 fault.
func IsNotFound(err error) bool {
	return StatusCodeOf(err) == http.StatusNotFound
}
