package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEdges writes the given closure rows. Callers wrap it in a
	// transaction when the rows must land together.
	InsertEdges(ctx context.Context, db *gorm.DB, edges []*NetworkEdge) error
	// FindByAncestor returns edges where userID is the ancestor, ordered by
	// depth ascending then created_at descending.
	FindByAncestor(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, depth DepthRange) ([]*NetworkEdge, error)
	// FindByDescendant returns edges where userID is the descendant, same order.
	FindByDescendant(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, depth DepthRange) ([]*NetworkEdge, error)
	// Exists reports whether any edge matches ancestor, descendant and range.
	Exists(ctx context.Context, db *gorm.DB, orgID, ancestorID, descendantID snowflake.ID, depth DepthRange) (bool, error)
	// IncrementEarnings adds amount to the edge's running total.
	IncrementEarnings(ctx context.Context, db *gorm.DB, orgID, edgeID snowflake.ID, amount int64) error
	// StatsByAncestor aggregates descendant counts and earnings per depth.
	StatsByAncestor(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) ([]DepthStat, error)
	// FindDirectParents returns the depth-1 edges whose descendant is in ids.
	FindDirectParents(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*NetworkEdge, error)
}
