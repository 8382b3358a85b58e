package gitlab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	gogitlab "gitlab.com/gitlab-org/api/client-go"
)

const listPageSize = 100

// Client implements API on top of the official GitLab SDK. Retries are
// disabled on the SDK itself; the retry executor owns that policy.
type Client struct {
	gl *gogitlab.Client
}

var _ API = (*Client)(nil)

type options struct {
	verbose bool
	// writer controls where verbose HTTP logs are written (typically stderr)
	// so interactive menus and status lines on stdout stay clean.
	writer io.Writer
}

type Option func(*options)

func WithVerbose(enabled bool, writer io.Writer) Option {
	return func(o *options) {
		o.verbose = enabled
		o.writer = writer
	}
}

// loggingRoundTripper wraps an underlying transport and emits one line per
// request and response (including latency) when verbose logging is enabled.
type loggingRoundTripper struct {
	base http.RoundTripper
	w    io.Writer
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if t.w != nil {
		_, _ = fmt.Fprintf(t.w, "[verbose] gitlab api: %s %s\n", req.Method, req.URL.String())
	}
	resp, err := t.base.RoundTrip(req)
	dur := time.Since(start)
	if t.w != nil {
		if err != nil {
			_, _ = fmt.Fprintf(t.w, "[verbose] gitlab api: error after %s: %v\n", dur.Truncate(time.Millisecond), err)
		} else {
			_, _ = fmt.Fprintf(t.w, "[verbose] gitlab api: %d %s (%s)\n", resp.StatusCode, http.StatusText(resp.StatusCode), dur.Truncate(time.Millisecond))
		}
	}
	return resp, err
}

func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("gitlab client: token is empty")
	}

	o := &options{}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}
	if o.verbose && o.writer == nil {
		o.writer = os.Stderr
	}

	transport := http.DefaultTransport
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, w: o.writer}
	}
	hc := &http.Client{Transport: transport}

	gl, err := gogitlab.NewClient(token,
		gogitlab.WithBaseURL(baseURL),
		gogitlab.WithHTTPClient(hc),
		// The SDK retries 429/5xx on its own by default; disable so the
		// executor's classification and backoff are the only retry layer.
		gogitlab.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &Client{gl: gl}, nil
}

func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var out []Group
	opt := &gogitlab.ListGroupsOptions{
		ListOptions:  gogitlab.ListOptions{PerPage: listPageSize, Page: 1},
		TopLevelOnly: gogitlab.Ptr(true),
	}
	for {
		groups, resp, err := c.gl.Groups.ListGroups(opt, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, convertErr(err)
		}
		for _, g := range groups {
			out = append(out, Group{ID: g.ID, Name: g.Name, FullPath: g.FullPath, ParentID: g.ParentID})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) ListSubgroups(ctx context.Context, groupID int) ([]Group, error) {
	var out []Group
	opt := &gogitlab.ListSubGroupsOptions{
		ListOptions: gogitlab.ListOptions{PerPage: listPageSize, Page: 1},
	}
	for {
		groups, resp, err := c.gl.Groups.ListSubGroups(groupID, opt, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, convertErr(err)
		}
		for _, g := range groups {
			out = append(out, Group{ID: g.ID, Name: g.Name, FullPath: g.FullPath, ParentID: g.ParentID})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) ListProjects(ctx context.Context, groupID int) ([]Project, error) {
	var out []Project
	opt := &gogitlab.ListGroupProjectsOptions{
		ListOptions: gogitlab.ListOptions{PerPage: listPageSize, Page: 1},
	}
	for {
		projects, resp, err := c.gl.Groups.ListGroupProjects(groupID, opt, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, convertErr(err)
		}
		for _, p := range projects {
			out = append(out, Project{ID: p.ID, PathWithNamespace: p.PathWithNamespace})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) GetBranch(ctx context.Context, projectID int, name string) (Branch, error) {
	b, _, err := c.gl.Branches.GetBranch(projectID, name, gogitlab.WithContext(ctx))
	if err != nil {
		return Branch{}, convertErr(err)
	}
	return Branch{Name: b.Name}, nil
}

func (c *Client) CreateBranch(ctx context.Context, projectID int, name, ref string) error {
	_, _, err := c.gl.Branches.CreateBranch(projectID, &gogitlab.CreateBranchOptions{
		Branch: gogitlab.Ptr(name),
		Ref:    gogitlab.Ptr(ref),
	}, gogitlab.WithContext(ctx))
	return convertErr(err)
}

func (c *Client) ListProtectedBranches(ctx context.Context, projectID int) ([]ProtectedBranch, error) {
	var out []ProtectedBranch
	opt := &gogitlab.ListProtectedBranchesOptions{
		ListOptions: gogitlab.ListOptions{PerPage: listPageSize, Page: 1},
	}
	for {
		branches, resp, err := c.gl.ProtectedBranches.ListProtectedBranches(projectID, opt, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, convertErr(err)
		}
		for _, pb := range branches {
			out = append(out, ProtectedBranch{ID: pb.ID, Name: pb.Name})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) ProtectBranch(ctx context.Context, projectID int, opt ProtectOptions) error {
	_, _, err := c.gl.ProtectedBranches.ProtectRepositoryBranches(projectID, &gogitlab.ProtectRepositoryBranchesOptions{
		Name:                      gogitlab.Ptr(opt.Name),
		PushAccessLevel:           gogitlab.Ptr(gogitlab.AccessLevelValue(opt.PushAccessLevel)),
		MergeAccessLevel:          gogitlab.Ptr(gogitlab.AccessLevelValue(opt.MergeAccessLevel)),
		UnprotectAccessLevel:      gogitlab.Ptr(gogitlab.AccessLevelValue(opt.UnprotectAccessLevel)),
		AllowForcePush:            gogitlab.Ptr(opt.AllowForcePush),
		CodeOwnerApprovalRequired: gogitlab.Ptr(opt.CodeOwnerApprovalRequired),
	}, gogitlab.WithContext(ctx))
	return convertErr(err)
}

func (c *Client) ListApprovalRules(ctx context.Context, projectID int) ([]ApprovalRule, error) {
	var out []ApprovalRule
	opt := &gogitlab.GetProjectApprovalRulesListsOptions{PerPage: listPageSize, Page: 1}
	for {
		rules, resp, err := c.gl.Projects.GetProjectApprovalRules(projectID, opt, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, convertErr(err)
		}
		for _, r := range rules {
			out = append(out, ApprovalRule{ID: r.ID, Name: r.Name})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) CreateApprovalRule(ctx context.Context, projectID int, opt ApprovalRuleOptions) error {
	createOpt := &gogitlab.CreateProjectLevelRuleOptions{
		Name:                          gogitlab.Ptr(opt.Name),
		ApprovalsRequired:             gogitlab.Ptr(opt.ApprovalsRequired),
		AppliesToAllProtectedBranches: gogitlab.Ptr(opt.AppliesToAllProtectedBranches),
	}
	if len(opt.GroupIDs) > 0 {
		createOpt.GroupIDs = &opt.GroupIDs
	}
	if len(opt.ProtectedBranchIDs) > 0 {
		createOpt.ProtectedBranchIDs = &opt.ProtectedBranchIDs
	}
	if opt.RuleType != "" {
		createOpt.RuleType = gogitlab.Ptr(opt.RuleType)
	}
	_, _, err := c.gl.Projects.CreateProjectApprovalRule(projectID, createOpt, gogitlab.WithContext(ctx))
	return convertErr(err)
}

// convertErr maps SDK errors onto *APIError so the rest of the program never
// sees SDK types. nil stays nil.
func convertErr(err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Message: err.Error(), Err: err}
	var er *gogitlab.ErrorResponse
	if errors.As(err, &er) {
		if er.Response != nil {
			apiErr.StatusCode = er.Response.StatusCode
		}
		if er.Message != "" {
			apiErr.Message = er.Message
		}
	}
	return apiErr
}
