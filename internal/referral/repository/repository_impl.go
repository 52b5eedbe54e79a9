package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/internal/referral/domain"
	"github.com/trmhq/trm/pkg/db/option"
	"github.com/trmhq/trm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, referral *domain.Referral) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO referrals (id, org_id, referrer_id, candidate_email, candidate_name, position, status, reward_amount, metadata, converted_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		referral.ID,
		referral.OrgID,
		referral.ReferrerID,
		referral.CandidateEmail,
		referral.CandidateName,
		referral.Position,
		string(referral.Status),
		referral.RewardAmount,
		referral.Metadata,
		referral.ConvertedAt,
		referral.CreatedAt,
		referral.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Referral, error) {
	var referral domain.Referral
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, referrer_id, candidate_email, candidate_name, position, status, reward_amount, metadata, converted_at, created_at, updated_at
		 FROM referrals WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&referral).Error
	if err != nil {
		return nil, err
	}
	if referral.ID == 0 {
		return nil, nil
	}
	return &referral, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from, to domain.Status, reward int64, convertedAt *time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE referrals SET status = ?, reward_amount = ?, converted_at = COALESCE(?, converted_at), updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ?`,
		string(to),
		reward,
		convertedAt,
		time.Now().UTC(),
		orgID,
		id,
		string(from),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListReferralFilter, page pagination.Pagination) ([]*domain.Referral, error) {
	var referrals []*domain.Referral
	stmt := db.WithContext(ctx).
		Model(&domain.Referral{}).
		Where("org_id = ?", orgID)
	if filter.ReferrerID != "" {
		stmt = stmt.Where("referrer_id = ?", filter.ReferrerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}
