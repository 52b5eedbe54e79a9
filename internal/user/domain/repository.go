package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*User, error)
	FindByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*User, error)
	FindByReferralCode(ctx context.Context, db *gorm.DB, orgID snowflake.ID, code string) (*User, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListUserFilter, page pagination.Pagination) ([]*User, error)
}
