package tree

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/internal/network/domain"
)

func TestBuildAttachesByDirectParent(t *testing.T) {
	root := snowflake.ID(1)
	a := snowflake.ID(2)
	b := snowflake.ID(3)
	c := snowflake.ID(4)

	subtree := []*domain.NetworkEdge{
		{AncestorID: root, DescendantID: root, Depth: 0},
		{AncestorID: root, DescendantID: a, Depth: 1, TotalEarnings: 10},
		{AncestorID: root, DescendantID: b, Depth: 1},
		{AncestorID: root, DescendantID: c, Depth: 2},
	}
	parents := []*domain.NetworkEdge{
		{AncestorID: root, DescendantID: a, Depth: 1},
		{AncestorID: root, DescendantID: b, Depth: 1},
		{AncestorID: a, DescendantID: c, Depth: 1},
	}

	node := Build(root, subtree, parents)
	if node == nil {
		t.Fatal("expected root node")
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(node.Children))
	}
	if node.Children[0].UserID != a || node.Children[0].TotalEarnings != 10 {
		t.Fatalf("unexpected first child: %+v", node.Children[0])
	}
	if len(node.Children[0].Children) != 1 || node.Children[0].Children[0].UserID != c {
		t.Fatalf("c not under a: %+v", node.Children[0].Children)
	}
	if Size(node) != 4 {
		t.Fatalf("expected size 4, got %d", Size(node))
	}
}

func TestBuildDropsOrphanedMembers(t *testing.T) {
	root := snowflake.ID(1)
	far := snowflake.ID(5)

	subtree := []*domain.NetworkEdge{
		{AncestorID: root, DescendantID: root, Depth: 0},
		{AncestorID: root, DescendantID: far, Depth: 2},
	}
	// far's direct parent lies outside the depth bound.
	node := Build(root, subtree, nil)
	if node == nil {
		t.Fatal("expected root node")
	}
	if len(node.Children) != 0 {
		t.Fatalf("expected orphan dropped, got %+v", node.Children)
	}
	if Size(node) != 1 {
		t.Fatalf("expected size 1, got %d", Size(node))
	}
}

func TestBuildUnknownRoot(t *testing.T) {
	if node := Build(snowflake.ID(9), nil, nil); node != nil {
		t.Fatalf("expected nil for unknown root, got %+v", node)
	}
}
