// Package engine drives the per-project reconciliation loop: strictly
// sequential, fixed pacing between remote operations, failures isolated per
// resource.
package engine

import (
	"context"
	"log/slog"
	"time"

	"branchward/internal/config"
	"branchward/internal/gitlab"
	"branchward/internal/output"
	"branchward/internal/reconcile"
)

// Op labels what a Result describes.
type Op string

const (
	OpCreateBranch  Op = "branch"
	OpProtectBranch Op = "protect"
	OpApprovalRule  Op = "approval"
	OpWildcard      Op = "wildcard"
)

// Result pairs one desired resource with its terminal outcome.
type Result struct {
	Resource string
	Op       Op
	Outcome  reconcile.Outcome
}

// Summary tallies a whole run.
type Summary struct {
	Projects int
	Created  int
	Already  int
	Failed   int
}

type Runner struct {
	rec     *reconcile.Reconciler
	cfg     *config.Config
	console *output.Console
	log     *slog.Logger
	pace    time.Duration
	sleep   func(context.Context, time.Duration) error
}

type Option func(*Runner)

// WithSleep replaces the pacing sleep; tests use it to run without delays.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

func NewRunner(rec *reconcile.Reconciler, cfg *config.Config, console *output.Console, opts ...Option) *Runner {
	r := &Runner{
		rec:     rec,
		cfg:     cfg,
		console: console,
		log:     slog.Default(),
		pace:    cfg.Pacing.Std(),
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, apply := range opts {
		if apply != nil {
			apply(r)
		}
	}
	return r
}

// Run reconciles every configured resource on every project, in order.
// approvalGroupID is the group whose members approve merges. A non-nil error
// means the run itself broke (context canceled); per-resource failures are
// tallied in the Summary instead.
func (r *Runner) Run(ctx context.Context, approvalGroupID int, projects []gitlab.Project) (Summary, error) {
	var sum Summary
	var rows []output.SummaryRow
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			r.console.Summary(rows)
			return sum, err
		}
		results, err := r.runProject(ctx, approvalGroupID, project)

		var s Summary
		tally(&s, results)
		rows = append(rows, output.SummaryRow{
			Project: project.PathWithNamespace,
			Created: s.Created,
			Already: s.Already,
			Failed:  s.Failed,
		})
		sum.Created += s.Created
		sum.Already += s.Already
		sum.Failed += s.Failed
		sum.Projects++

		if err != nil {
			r.console.Summary(rows)
			return sum, err
		}
	}
	r.console.Summary(rows)
	return sum, nil
}

func (r *Runner) runProject(ctx context.Context, approvalGroupID int, project gitlab.Project) ([]Result, error) {
	r.console.ProjectHeader(project.PathWithNamespace)
	r.log.Info("processing project", "project", project.PathWithNamespace, "id", project.ID)

	var results []Result
	record := func(resource string, op Op, oc reconcile.Outcome) {
		r.console.ResultLine(resource, string(op), oc)
		results = append(results, Result{Resource: resource, Op: op, Outcome: oc})
	}

	for _, branch := range r.cfg.CoreBranches {
		oc := r.rec.CreateBranch(ctx, project.ID, branch.Name, branch.Ref)
		record(branch.Name, OpCreateBranch, oc)

		prot := r.rec.ProtectBranch(ctx, project.ID, reconcile.Protection{
			Name:                 branch.Name,
			PushAccessLevel:      r.cfg.Level(branch.PushAccessLevel),
			MergeAccessLevel:     r.cfg.Level(branch.MergeAccessLevel),
			UnprotectAccessLevel: r.cfg.UnprotectLevel(),
		})
		record(branch.Name, OpProtectBranch, prot)

		if branch.ApprovalRequired {
			oc := r.rec.AddApprovalRule(ctx, project.ID, branch.Name, approvalGroupID, r.cfg.ApprovalRuleName)
			record(branch.Name, OpApprovalRule, oc)
		}

		if err := r.sleep(ctx, r.pace); err != nil {
			return results, err
		}
	}

	for _, wildcard := range r.cfg.WildcardBranches {
		oc := r.rec.ProtectBranch(ctx, project.ID, reconcile.Protection{
			Name:                 wildcard.Pattern,
			PushAccessLevel:      r.cfg.Level(wildcard.PushAccessLevel),
			MergeAccessLevel:     r.cfg.Level(wildcard.MergeAccessLevel),
			UnprotectAccessLevel: r.cfg.UnprotectLevel(),
			Wildcard:             true,
		})
		record(wildcard.Pattern, OpWildcard, oc)

		if err := r.sleep(ctx, r.pace); err != nil {
			return results, err
		}
	}

	return results, nil
}

func tally(sum *Summary, results []Result) {
	for _, res := range results {
		switch res.Outcome.Status {
		case reconcile.StatusCreated, reconcile.StatusProtected:
			sum.Created++
		case reconcile.StatusAlreadyExists, reconcile.StatusAlreadyProtected:
			sum.Already++
		default:
			sum.Failed++
		}
	}
}

// ExitCode maps a run to the process exit contract:
// 0 = clean run, 1 = some resources failed, 2 = fatal error (run aborted).
func ExitCode(fatal bool, sum Summary) int {
	if fatal {
		return 2
	}
	if sum.Failed > 0 {
		return 1
	}
	return 0
}
