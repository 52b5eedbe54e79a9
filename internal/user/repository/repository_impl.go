package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/internal/user/domain"
	"github.com/trmhq/trm/pkg/db/option"
	"github.com/trmhq/trm/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, org_id, email, name, avatar_url, tier, referral_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.OrgID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.Tier,
		user.ReferralCode,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, email, name, avatar_url, tier, referral_code, created_at, updated_at
		 FROM users WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("org_id = ?", orgID).
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, email, name, avatar_url, tier, referral_code, created_at, updated_at
		 FROM users WHERE org_id = ? AND email = ?`,
		orgID,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByReferralCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, email, name, avatar_url, tier, referral_code, created_at, updated_at
		 FROM users WHERE org_id = ? AND referral_code = ?`,
		orgID,
		code,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListUserFilter, page pagination.Pagination) ([]*domain.User, error) {
	var users []*domain.User
	stmt := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("org_id = ?", orgID)
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
