package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"

	"branchward/internal/gitlab"
	"branchward/internal/retry"
)

// ErrCancelled is returned when the user backs out of a menu.
var ErrCancelled = errors.New("selection cancelled")

// Menu drives the interactive group and project selection. Remote list calls
// go through the retry executor like every other operation.
type Menu struct {
	api  gitlab.API
	exec *retry.Executor
	out  io.Writer
}

func NewMenu(api gitlab.API, exec *retry.Executor) *Menu {
	return &Menu{api: api, exec: exec, out: os.Stdout}
}

// SelectGroup fetches all visible groups, shows them as an indented tree, and
// returns the chosen one.
func (m *Menu) SelectGroup(ctx context.Context) (gitlab.Group, error) {
	groups, err := withSpinner(" fetching groups...", func() ([]gitlab.Group, error) {
		return m.fetchAllGroups(ctx)
	})
	if err != nil {
		return gitlab.Group{}, fmt.Errorf("fetch groups: %w", err)
	}
	if len(groups) == 0 {
		return gitlab.Group{}, errors.New("no groups visible to this token")
	}

	entries := FlattenTree(BuildGroupTree(groups))

	t := table.NewWriter()
	t.SetOutputMirror(m.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Group", "Path"})
	for i, e := range entries {
		indent := strings.Repeat("  ", e.Depth)
		t.AppendRow(table.Row{i + 1, indent + e.Group.Name, e.Group.FullPath})
	}
	t.Render()

	line, err := m.prompt(fmt.Sprintf("Select a group (1-%d, 0 to exit): ", len(entries)))
	if err != nil {
		return gitlab.Group{}, err
	}
	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || choice < 0 || choice > len(entries) {
		return gitlab.Group{}, fmt.Errorf("invalid group selection %q", line)
	}
	if choice == 0 {
		return gitlab.Group{}, ErrCancelled
	}

	selected := entries[choice-1].Group
	fmt.Fprintf(m.out, "Selected group: %s (%s)\n", selected.Name, selected.FullPath)
	return selected, nil
}

// fetchAllGroups walks the group hierarchy breadth-first: top-level groups
// first, then each group's subgroups. Every list call goes through the retry
// executor.
func (m *Menu) fetchAllGroups(ctx context.Context) ([]gitlab.Group, error) {
	all, err := retry.DoValue(ctx, m.exec, "list groups", func() ([]gitlab.Group, error) {
		return m.api.ListGroups(ctx)
	})
	if err != nil {
		return nil, err
	}

	queue := append([]gitlab.Group(nil), all...)
	for len(queue) > 0 {
		group := queue[0]
		queue = queue[1:]

		subs, err := retry.DoValue(ctx, m.exec, "list subgroups", func() ([]gitlab.Group, error) {
			return m.api.ListSubgroups(ctx, group.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("subgroups of %s: %w", group.FullPath, err)
		}
		all = append(all, subs...)
		queue = append(queue, subs...)
	}
	return all, nil
}

// SelectProjects fetches the group's projects and returns the chosen subset.
func (m *Menu) SelectProjects(ctx context.Context, groupID int) ([]gitlab.Project, error) {
	projects, err := withSpinner(" fetching projects...", func() ([]gitlab.Project, error) {
		return retry.DoValue(ctx, m.exec, "list projects", func() ([]gitlab.Project, error) {
			return m.api.ListProjects(ctx, groupID)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("fetch projects: %w", err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("no projects found in group %d", groupID)
	}

	t := table.NewWriter()
	t.SetOutputMirror(m.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Project"})
	for i, p := range projects {
		t.AppendRow(table.Row{i + 1, p.PathWithNamespace})
	}
	t.Render()

	line, err := m.prompt("Select projects (e.g. 1,3-5 or all, 0 to exit): ")
	if err != nil {
		return nil, err
	}
	indices, err := ParseSelection(line, len(projects))
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, ErrCancelled
	}

	selected := make([]gitlab.Project, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, projects[i])
	}
	fmt.Fprintf(m.out, "Selected %d projects:\n", len(selected))
	for _, p := range selected {
		fmt.Fprintf(m.out, "  -> %s\n", p.PathWithNamespace)
	}
	return selected, nil
}

func (m *Menu) prompt(label string) (string, error) {
	rl, err := readline.New(label)
	if err != nil {
		return "", fmt.Errorf("open prompt: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		// Ctrl-C / Ctrl-D back out of the menu.
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", ErrCancelled
		}
		return "", err
	}
	return line, nil
}

// withSpinner shows a spinner on stderr while fetch runs, so stdout stays
// reserved for the menus themselves.
func withSpinner[T any](suffix string, fetch func() (T, error)) (T, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	defer s.Stop()
	return fetch()
}
