// Package ui implements the interactive group and project selection menus.
package ui

import "branchward/internal/gitlab"

// GroupNode is one group with its nested subgroups.
type GroupNode struct {
	Group    gitlab.Group
	Children []*GroupNode
}

// MenuEntry is a flattened tree row; Depth drives menu indentation.
type MenuEntry struct {
	Group gitlab.Group
	Depth int
}

// BuildGroupTree arranges a flat group list into a parent/child hierarchy.
// Groups whose parent is not in the list become roots. Input order is
// preserved at every level.
func BuildGroupTree(groups []gitlab.Group) []*GroupNode {
	nodes := make(map[int]*GroupNode, len(groups))
	for _, g := range groups {
		nodes[g.ID] = &GroupNode{Group: g}
	}

	var roots []*GroupNode
	for _, g := range groups {
		node := nodes[g.ID]
		if parent, ok := nodes[g.ParentID]; ok && g.ParentID != 0 {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

// FlattenTree walks the tree depth-first into menu entries.
func FlattenTree(roots []*GroupNode) []MenuEntry {
	var entries []MenuEntry
	var walk func(nodes []*GroupNode, depth int)
	walk = func(nodes []*GroupNode, depth int) {
		for _, n := range nodes {
			entries = append(entries, MenuEntry{Group: n.Group, Depth: depth})
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)
	return entries
}
