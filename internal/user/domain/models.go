package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Email        string       `gorm:"not null" json:"email"`
	Name         string       `gorm:"not null" json:"name"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Tier         string       `gorm:"not null;default:'member'" json:"tier"`
	ReferralCode string       `gorm:"not null" json:"referral_code"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
