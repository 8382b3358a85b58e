package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"branchward/internal/config"
	"branchward/internal/engine"
	"branchward/internal/gitlab"
	"branchward/internal/output"
	"branchward/internal/reconcile"
	"branchward/internal/retry"
	"branchward/internal/ui"
)

var applyOpts struct {
	configPath  string
	url         string
	token       string
	groupID     int
	projectIDs  []int
	allProjects bool
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile branch protection across the selected projects",
	Long: `Apply reconciles every project against the configured desired state, in
order: create each core branch from its ref, protect it, attach the group
approval rule where required, then protect each wildcard pattern.

Processing is strictly sequential with a fixed delay between operations to
respect API rate limits. A failure on one resource never aborts the rest of
the run.

Exit codes:
  0  clean run
  1  some resources failed to reconcile
  2  fatal error (configuration, authentication, or project listing)`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runApply())
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyOpts.configPath, "config", "c", "configs/branch_protection.yml", "Path to the branch protection configuration file")
	applyCmd.Flags().StringVar(&applyOpts.url, "url", "", "GitLab instance URL (overrides config and GITLAB_URL)")
	applyCmd.Flags().StringVar(&applyOpts.token, "token", "", "GitLab API token (overrides config; falls back to GITLAB_TOKEN, ACCESS_TOKEN, then glab)")
	applyCmd.Flags().IntVar(&applyOpts.groupID, "group", 0, "Target group ID (skips the interactive group menu)")
	applyCmd.Flags().IntSliceVar(&applyOpts.projectIDs, "projects", nil, "Project IDs to configure (skips the interactive project menu)")
	applyCmd.Flags().BoolVar(&applyOpts.allProjects, "all-projects", false, "Configure every project in the group")
	rootCmd.AddCommand(applyCmd)
}

func runApply() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(applyOpts.configPath)
	if err != nil {
		log.Error("configuration error", "err", err)
		return 2
	}

	provided := applyOpts.token
	if provided == "" {
		provided = cfg.GitLab.Token
	}
	token, source, err := gitlab.ResolveAuthToken(ctx, provided)
	if err != nil {
		log.Error("token resolution failed", "err", err)
		return 2
	}
	if token == "" {
		log.Error("no GitLab token found; set GITLAB_TOKEN or run glab auth login")
		return 2
	}
	log.Debug("resolved token", "source", source)

	baseURL := cfg.GitLab.URL
	if applyOpts.url != "" {
		baseURL = applyOpts.url
	}
	client, err := gitlab.NewClient(baseURL, token, gitlab.WithVerbose(verbose, os.Stderr))
	if err != nil {
		log.Error("client setup failed", "err", err)
		return 2
	}

	var execOpts []retry.Option
	if cfg.Retry.MaxRetries > 0 {
		execOpts = append(execOpts, retry.WithMaxRetries(cfg.Retry.MaxRetries))
	}
	if cfg.Retry.Delay > 0 {
		execOpts = append(execOpts, retry.WithBaseDelay(cfg.Retry.Delay.Std()))
	}
	exec := retry.New(log, execOpts...)

	menu := ui.NewMenu(client, exec)

	groupID := applyOpts.groupID
	if groupID == 0 {
		groupID = cfg.GitLab.GroupID
	}
	if groupID == 0 {
		group, err := menu.SelectGroup(ctx)
		if err != nil {
			if errors.Is(err, ui.ErrCancelled) {
				fmt.Fprintln(os.Stderr, "cancelled")
				return 0
			}
			log.Error("group selection failed", "err", err)
			return 2
		}
		groupID = group.ID
	}

	projects, err := resolveProjects(ctx, client, exec, menu, groupID, log)
	if err != nil {
		if errors.Is(err, ui.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			return 0
		}
		log.Error("project selection failed", "err", err)
		return 2
	}

	rec := reconcile.New(client, exec,
		reconcile.WithLogger(log),
		reconcile.WithMarkers(reconcile.Markers{
			BranchExists:    cfg.Detection.BranchExists,
			BranchProtected: cfg.Detection.BranchProtected,
			RuleTaken:       cfg.Detection.RuleTaken,
		}),
	)
	runner := engine.NewRunner(rec, cfg, output.NewConsole(os.Stdout), engine.WithLogger(log))

	sum, err := runner.Run(ctx, groupID, projects)
	if err != nil {
		log.Error("run aborted", "err", err)
		return engine.ExitCode(true, sum)
	}
	log.Info("all projects processed",
		"projects", sum.Projects, "created", sum.Created, "already", sum.Already, "failed", sum.Failed)
	return engine.ExitCode(false, sum)
}

// resolveProjects picks the target projects: an explicit ID list, the whole
// group, or the interactive menu.
func resolveProjects(ctx context.Context, client gitlab.API, exec *retry.Executor, menu *ui.Menu, groupID int, log *slog.Logger) ([]gitlab.Project, error) {
	if !applyOpts.allProjects && len(applyOpts.projectIDs) == 0 {
		return menu.SelectProjects(ctx, groupID)
	}

	all, err := retry.DoValue(ctx, exec, "list projects", func() ([]gitlab.Project, error) {
		return client.ListProjects(ctx, groupID)
	})
	if err != nil {
		return nil, fmt.Errorf("list projects for group %d: %w", groupID, err)
	}
	log.Info("found projects", "group", groupID, "count", len(all))

	if applyOpts.allProjects {
		return all, nil
	}

	wanted := make(map[int]bool, len(applyOpts.projectIDs))
	for _, id := range applyOpts.projectIDs {
		wanted[id] = true
	}
	var selected []gitlab.Project
	for _, p := range all {
		if wanted[p.ID] {
			selected = append(selected, p)
			delete(wanted, p.ID)
		}
	}
	if len(wanted) > 0 {
		missing := make([]int, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		return nil, fmt.Errorf("projects %v not found in group %d", missing, groupID)
	}
	return selected, nil
}
