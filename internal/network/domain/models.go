package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// NetworkEdge is one closure table row: ancestor reaches descendant in
// depth hops. Every member carries a depth-0 self edge.
type NetworkEdge struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID `gorm:"not null;index" json:"organization_id"`
	AncestorID    snowflake.ID `gorm:"not null" json:"ancestor_id"`
	DescendantID  snowflake.ID `gorm:"not null" json:"descendant_id"`
	Depth         int          `gorm:"not null" json:"depth"`
	CommissionBPS int64        `gorm:"column:commission_bps;not null;default:0" json:"commission_bps"`
	TotalEarnings int64        `gorm:"not null;default:0" json:"total_earnings"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Profile identifies the member the listing refers to: the descendant in
	// downline reads, the ancestor in upline reads. Filled from the user
	// directory, never stored.
	Profile *Profile `gorm:"-" json:"profile,omitempty"`
}

func (NetworkEdge) TableName() string {
	return "network_edges"
}

// CommissionPercent renders the stored basis points as a percentage.
func (e NetworkEdge) CommissionPercent() float64 {
	return float64(e.CommissionBPS) / 100
}

// DepthRange filters closure reads by depth. Zero values leave the bound open.
type DepthRange struct {
	Min int
	Max int
}

// DepthStat aggregates one downline level.
type DepthStat struct {
	Depth    int   `json:"depth"`
	Count    int64 `json:"count"`
	Earnings int64 `json:"earnings"`
}

// Profile is the member identity attached to tree and listing responses.
type Profile struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	AvatarURL string       `json:"avatar_url,omitempty"`
	Tier      string       `json:"tier,omitempty"`
}
