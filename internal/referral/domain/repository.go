package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, referral *Referral) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Referral, error)
	// UpdateStatus moves the row from one status to another. It reports
	// false when the row no longer carries the expected status. A non-nil
	// convertedAt stamps the conversion time.
	UpdateStatus(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, from, to Status, reward int64, convertedAt *time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListReferralFilter, page pagination.Pagination) ([]*Referral, error)
}
