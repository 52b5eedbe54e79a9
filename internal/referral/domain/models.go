package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusSubmitted    Status = "submitted"
	StatusScreening    Status = "screening"
	StatusInterviewing Status = "interviewing"
	StatusHired        Status = "hired"
	StatusRejected     Status = "rejected"
	StatusWithdrawn    Status = "withdrawn"
)

// transitions lists the allowed next statuses. Hired, rejected and
// withdrawn are terminal.
var transitions = map[Status][]Status{
	StatusSubmitted:    {StatusScreening, StatusRejected, StatusWithdrawn},
	StatusScreening:    {StatusInterviewing, StatusRejected, StatusWithdrawn},
	StatusInterviewing: {StatusHired, StatusRejected, StatusWithdrawn},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether the value names a known status.
func ValidStatus(status Status) bool {
	switch status {
	case StatusSubmitted, StatusScreening, StatusInterviewing, StatusHired, StatusRejected, StatusWithdrawn:
		return true
	default:
		return false
	}
}

type Referral struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID `gorm:"not null;index" json:"organization_id"`
	ReferrerID     snowflake.ID `gorm:"not null;index" json:"referrer_id"`
	CandidateEmail string       `gorm:"not null" json:"candidate_email"`
	CandidateName  string       `gorm:"not null" json:"candidate_name"`
	Position       string       `gorm:"not null" json:"position"`
	Status         Status       `gorm:"type:text;not null;default:'submitted'" json:"status"`
	RewardAmount   int64        `gorm:"not null;default:0" json:"reward_amount"`
	// Metadata carries free-form attributes such as the role level or
	// sourcing channel.
	Metadata datatypes.JSON `json:"metadata,omitempty"`
	// ConvertedAt is set once, when the referral reaches hired.
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Referral) TableName() string {
	return "referrals"
}
