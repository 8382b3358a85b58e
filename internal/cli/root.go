package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "branchward",
	Short: "Bulk-configure branch protection across GitLab group projects",
	Long: `Branchward configures GitLab projects in a group: it creates the configured
core branches, applies access-level branch protection, attaches group
approval rules, and protects wildcard branch patterns.

Runs are idempotent: resources that already exist are reported and skipped,
never modified or deleted.

Examples:
	# Interactive group and project selection
	branchward apply --config configs/branch_protection.yml

	# Preselected group, all of its projects
	branchward apply --group 1234 --all-projects

	# Print build info
	branchward version`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging (prints every GitLab API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
