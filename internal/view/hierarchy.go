package view

import (
	"metagrid/internal/entity"
	"metagrid/internal/hierarchy"
	"metagrid/internal/schema"
)

// TreeNode is the hierarchy projection: the node's card plus recursively
// projected children. Children of collapsed nodes are omitted, not hidden
// client-side.
type TreeNode struct {
	Card     Card       `json:"card"`
	Expanded bool       `json:"expanded"`
	HasKids  bool       `json:"hasChildren"`
	Children []TreeNode `json:"children,omitempty"`
}

// ProjectHierarchy renders the tree engine's root list recursively.
func ProjectHierarchy(s *schema.Schema, records []entity.Record, expand *hierarchy.ExpandState) []TreeNode {
	tree := hierarchy.Build(records)
	return projectNodes(s, tree.Roots, expand)
}

func projectNodes(s *schema.Schema, nodes []*hierarchy.Node, expand *hierarchy.ExpandState) []TreeNode {
	out := make([]TreeNode, 0, len(nodes))
	for _, n := range nodes {
		tn := TreeNode{
			Card:     ProjectCard(s, n.Record),
			Expanded: expand != nil && expand.IsExpanded(n.ID),
			HasKids:  len(n.Children) > 0,
		}
		if tn.Expanded {
			tn.Children = projectNodes(s, n.Children, expand)
		}
		out = append(out, tn)
	}
	return out
}
