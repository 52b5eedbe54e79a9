package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/internal/network/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEdges(ctx context.Context, db *gorm.DB, edges []*domain.NetworkEdge) error {
	for _, edge := range edges {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO network_edges (id, org_id, ancestor_id, descendant_id, depth, commission_bps, total_earnings, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			edge.ID,
			edge.OrgID,
			edge.AncestorID,
			edge.DescendantID,
			edge.Depth,
			edge.CommissionBPS,
			edge.TotalEarnings,
			edge.CreatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByAncestor(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, depth domain.DepthRange) ([]*domain.NetworkEdge, error) {
	var edges []*domain.NetworkEdge
	stmt := db.WithContext(ctx).
		Model(&domain.NetworkEdge{}).
		Where("org_id = ?", orgID).
		Where("ancestor_id = ?", userID)
	stmt = applyDepthRange(stmt, depth)
	err := stmt.
		Order("depth asc, created_at desc").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repo) FindByDescendant(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID, depth domain.DepthRange) ([]*domain.NetworkEdge, error) {
	var edges []*domain.NetworkEdge
	stmt := db.WithContext(ctx).
		Model(&domain.NetworkEdge{}).
		Where("org_id = ?", orgID).
		Where("descendant_id = ?", userID)
	stmt = applyDepthRange(stmt, depth)
	err := stmt.
		Order("depth asc, created_at desc").
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, orgID, ancestorID, descendantID snowflake.ID, depth domain.DepthRange) (bool, error) {
	var count int64
	stmt := db.WithContext(ctx).
		Model(&domain.NetworkEdge{}).
		Where("org_id = ?", orgID).
		Where("ancestor_id = ?", ancestorID).
		Where("descendant_id = ?", descendantID)
	stmt = applyDepthRange(stmt, depth)
	if err := stmt.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) IncrementEarnings(ctx context.Context, db *gorm.DB, orgID, edgeID snowflake.ID, amount int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE network_edges SET total_earnings = total_earnings + ? WHERE org_id = ? AND id = ?`,
		amount,
		orgID,
		edgeID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repo) StatsByAncestor(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) ([]domain.DepthStat, error) {
	var stats []domain.DepthStat
	err := db.WithContext(ctx).Raw(
		`SELECT depth, COUNT(*) AS count, SUM(total_earnings) AS earnings
		 FROM network_edges
		 WHERE org_id = ? AND ancestor_id = ? AND depth >= 1
		 GROUP BY depth
		 ORDER BY depth asc`,
		orgID,
		userID,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *repo) FindDirectParents(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*domain.NetworkEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var edges []*domain.NetworkEdge
	err := db.WithContext(ctx).
		Model(&domain.NetworkEdge{}).
		Where("org_id = ?", orgID).
		Where("depth = ?", 1).
		Where("descendant_id IN ?", ids).
		Find(&edges).Error
	if err != nil {
		return nil, err
	}
	return edges, nil
}

func applyDepthRange(stmt *gorm.DB, depth domain.DepthRange) *gorm.DB {
	if depth.Min > 0 {
		stmt = stmt.Where("depth >= ?", depth.Min)
	}
	if depth.Max > 0 {
		stmt = stmt.Where("depth <= ?", depth.Max)
	}
	return stmt
}
