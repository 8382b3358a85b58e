// Package config loads and validates the declarative branch-protection
// configuration. The configuration is constructed once at startup and passed
// by reference into the engine; nothing here is mutated after Load returns.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultURL    = "https://gitlab.com"
	DefaultPacing = 500 * time.Millisecond

	defaultCorePush      = "maintainer"
	defaultCoreMerge     = "maintainer"
	defaultWildcardPush  = "developer"
	defaultWildcardMerge = "developer"
)

// Duration parses YAML scalars like "500ms" or "1s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type GitLab struct {
	// URL is the GitLab instance base URL.
	URL string `yaml:"url"`

	// Token is the API token. Usually left empty in the file; see
	// gitlab.ResolveAuthToken for the fallback chain.
	Token string `yaml:"token"`

	// GroupID preselects the target group, skipping the interactive menu.
	GroupID int `yaml:"group_id"`
}

type CoreBranch struct {
	Name             string `yaml:"name"`
	Ref              string `yaml:"ref"`
	PushAccessLevel  string `yaml:"push_access_level"`
	MergeAccessLevel string `yaml:"merge_access_level"`
	ApprovalRequired bool   `yaml:"approval_required"`
}

type WildcardBranch struct {
	Pattern          string `yaml:"pattern"`
	PushAccessLevel  string `yaml:"push_access_level"`
	MergeAccessLevel string `yaml:"merge_access_level"`
}

type Retry struct {
	// MaxRetries and Delay override the executor's env/default tunables when
	// set. Zero values defer to MAX_RETRIES / RETRY_DELAY.
	MaxRetries int      `yaml:"max_retries"`
	Delay      Duration `yaml:"delay"`
}

// Detection overrides the already-exists fault-message substrings. Empty
// slices keep the built-in fixtures.
type Detection struct {
	BranchExists    []string `yaml:"branch_exists"`
	BranchProtected []string `yaml:"branch_protected"`
	RuleTaken       []string `yaml:"rule_taken"`
}

type Config struct {
	GitLab           GitLab           `yaml:"gitlab"`
	AccessLevels     map[string]int   `yaml:"access_levels"`
	CoreBranches     []CoreBranch     `yaml:"core_branches"`
	WildcardBranches []WildcardBranch `yaml:"wildcard_branches"`
	Retry            Retry            `yaml:"retry"`
	Pacing           Duration         `yaml:"pacing"`
	ApprovalRuleName string           `yaml:"approval_rule_name"`
	Detection        Detection        `yaml:"detection"`
}

// New returns a configuration with platform defaults. AccessLevels is left
// empty on purpose: the file must declare the role map explicitly so that
// Validate can hold it to the superset invariant.
func New() *Config {
	return &Config{
		GitLab: GitLab{URL: DefaultURL},
		Pacing: Duration(DefaultPacing),
	}
}

// StandardAccessLevels returns the GitLab role ordinals, for callers that
// build a Config in code rather than from a file.
func StandardAccessLevels() map[string]int {
	return map[string]int{
		"no_access":  0,
		"guest":      10,
		"reporter":   20,
		"developer":  30,
		"maintainer": 40,
		"owner":      50,
	}
}

// Load reads the YAML file at path on top of the defaults, applies
// environment fallbacks, and validates.
func Load(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if env := os.Getenv("GITLAB_URL"); env != "" && c.GitLab.URL == DefaultURL {
		c.GitLab.URL = env
	}
	if c.GitLab.GroupID == 0 {
		if env := os.Getenv("GROUP_ID"); env != "" {
			if id, err := strconv.Atoi(env); err == nil && id > 0 {
				c.GitLab.GroupID = id
			}
		}
	}
	// Token fallbacks live in gitlab.ResolveAuthToken so the precedence is
	// testable in one place.
}

// Validate enforces the access-level superset invariant: every role name
// referenced by a branch definition must resolve in AccessLevels. After Validate
// succeeds the engine may assume all Level lookups hit.
func (c *Config) Validate() error {
	if c.GitLab.URL == "" {
		return errors.New("gitlab.url must not be empty")
	}
	if len(c.AccessLevels) == 0 {
		return errors.New("access_levels must not be empty")
	}
	if _, ok := c.AccessLevels[defaultCorePush]; !ok {
		return fmt.Errorf("access_levels must define %q (used as the unprotect level)", defaultCorePush)
	}

	for i := range c.CoreBranches {
		b := &c.CoreBranches[i]
		if b.Name == "" {
			return fmt.Errorf("core_branches[%d]: name must not be empty", i)
		}
		if b.Ref == "" {
			return fmt.Errorf("core branch %q: ref must not be empty", b.Name)
		}
		if b.PushAccessLevel == "" {
			b.PushAccessLevel = defaultCorePush
		}
		if b.MergeAccessLevel == "" {
			b.MergeAccessLevel = defaultCoreMerge
		}
		if err := c.checkRole("core branch "+b.Name, "push_access_level", b.PushAccessLevel); err != nil {
			return err
		}
		if err := c.checkRole("core branch "+b.Name, "merge_access_level", b.MergeAccessLevel); err != nil {
			return err
		}
	}

	for i := range c.WildcardBranches {
		w := &c.WildcardBranches[i]
		if w.Pattern == "" {
			return fmt.Errorf("wildcard_branches[%d]: pattern must not be empty", i)
		}
		if w.PushAccessLevel == "" {
			w.PushAccessLevel = defaultWildcardPush
		}
		if w.MergeAccessLevel == "" {
			w.MergeAccessLevel = defaultWildcardMerge
		}
		if err := c.checkRole("wildcard "+w.Pattern, "push_access_level", w.PushAccessLevel); err != nil {
			return err
		}
		if err := c.checkRole("wildcard "+w.Pattern, "merge_access_level", w.MergeAccessLevel); err != nil {
			return err
		}
	}

	if c.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if c.Retry.Delay < 0 {
		return errors.New("retry.delay must be >= 0")
	}
	if c.Pacing <= 0 {
		c.Pacing = Duration(DefaultPacing)
	}
	return nil
}

func (c *Config) checkRole(where, field, role string) error {
	if _, ok := c.AccessLevels[role]; !ok {
		return fmt.Errorf("%s: unknown %s %q (not in access_levels)", where, field, role)
	}
	return nil
}

// Level resolves a role name to its numeric access level. Validate has
// already guaranteed the lookup succeeds for every configured role.
func (c *Config) Level(role string) int {
	return c.AccessLevels[role]
}

// UnprotectLevel is the access level required to remove a protection rule;
// always the maintainer ordinal.
func (c *Config) UnprotectLevel() int {
	return c.AccessLevels[defaultCorePush]
}
