package tree

import (
	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/internal/network/domain"
)

// Build reassembles the downline tree of rootID from its closure rows.
// subtree holds the edges where rootID is the ancestor, depth 0 through the
// requested bound. parentEdges holds the depth-1 edges whose descendant is
// one of the subtree members, which pins each node under its direct parent.
// Members whose parent sits outside the depth bound are dropped rather than
// misattached.
func Build(rootID snowflake.ID, subtree []*domain.NetworkEdge, parentEdges []*domain.NetworkEdge) *domain.TreeNode {
	nodes := make(map[snowflake.ID]*domain.TreeNode, len(subtree))
	for _, edge := range subtree {
		nodes[edge.DescendantID] = &domain.TreeNode{
			UserID:        edge.DescendantID,
			Depth:         edge.Depth,
			CommissionBPS: edge.CommissionBPS,
			TotalEarnings: edge.TotalEarnings,
		}
	}

	root, ok := nodes[rootID]
	if !ok {
		return nil
	}
	root.Depth = 0

	parentOf := make(map[snowflake.ID]snowflake.ID, len(parentEdges))
	for _, edge := range parentEdges {
		parentOf[edge.DescendantID] = edge.AncestorID
	}

	// Walk the ordered edge list, not the map, so sibling order follows the
	// repository's depth asc, created_at desc ordering.
	for _, edge := range subtree {
		if edge.DescendantID == rootID {
			continue
		}
		parentID, ok := parentOf[edge.DescendantID]
		if !ok {
			continue
		}
		parent, ok := nodes[parentID]
		if !ok {
			continue
		}
		parent.Children = append(parent.Children, nodes[edge.DescendantID])
	}

	return root
}

// Size counts the members reachable from node, node included.
func Size(node *domain.TreeNode) int {
	if node == nil {
		return 0
	}
	total := 1
	for _, child := range node.Children {
		total += Size(child)
	}
	return total
}
