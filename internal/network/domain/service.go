package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type AddToNetworkRequest struct {
	UserID   string `json:"user_id"`
	ParentID string `json:"parent_id,omitempty"`
}

type AddToNetworkResponse struct {
	UserID       snowflake.ID `json:"user_id"`
	ParentID     snowflake.ID `json:"parent_id,omitempty"`
	Root         bool         `json:"root"`
	EdgesWritten int          `json:"edges_written"`
}

type ListEdgesRequest struct {
	UserID   string
	MinDepth int
	MaxDepth int
}

type ListEdgesResponse struct {
	Edges []NetworkEdge `json:"edges"`
}

type IsInDownlineRequest struct {
	AncestorID   string
	DescendantID string
}

type RecordEarningsRequest struct {
	UserID string `json:"user_id"`
	// Amount is the transaction value in minor currency units.
	Amount int64 `json:"amount"`
	// SourceID ties the credit back to its originating event.
	SourceID string `json:"source_id,omitempty"`
}

type CommissionCredit struct {
	AncestorID snowflake.ID `json:"ancestor_id"`
	Depth      int          `json:"depth"`
	Percent    float64      `json:"percent"`
	Amount     int64        `json:"amount"`
}

type RecordEarningsResponse struct {
	UserID  snowflake.ID       `json:"user_id"`
	Amount  int64              `json:"amount"`
	Credits []CommissionCredit `json:"credits"`
}

type NetworkStatsRequest struct {
	UserID string
}

type NetworkStatsResponse struct {
	UserID          snowflake.ID `json:"user_id"`
	DirectReferrals int64        `json:"direct_referrals"`
	TotalSize       int64        `json:"total_size"`
	TotalEarnings   int64        `json:"total_earnings"`
	ByDepth         []DepthStat  `json:"by_depth"`
}

type NetworkTreeRequest struct {
	UserID   string
	MaxDepth int
}

// TreeNode is one member in a reconstructed downline tree.
type TreeNode struct {
	UserID        snowflake.ID `json:"user_id"`
	Depth         int          `json:"depth"`
	CommissionBPS int64        `json:"commission_bps"`
	TotalEarnings int64        `json:"total_earnings"`
	Profile       *Profile     `json:"profile,omitempty"`
	Children      []*TreeNode  `json:"children,omitempty"`
}

type NetworkTreeResponse struct {
	Root *TreeNode `json:"root"`
	Size int       `json:"size"`
}

type Service interface {
	// AddToNetwork registers userID under parentID, writing the self edge
	// plus one closure row per ancestor in a single transaction. An empty
	// parent makes the member a root.
	AddToNetwork(context.Context, AddToNetworkRequest) (AddToNetworkResponse, error)
	// GetDescendants lists the downline of a member within the depth range.
	GetDescendants(context.Context, ListEdgesRequest) (ListEdgesResponse, error)
	// GetAncestors lists the upline chain of a member within the depth range.
	GetAncestors(context.Context, ListEdgesRequest) (ListEdgesResponse, error)
	// IsInDownline reports whether descendant sits anywhere under ancestor.
	IsInDownline(context.Context, IsInDownlineRequest) (bool, error)
	// RecordEarnings credits each proper ancestor its depth-based share of
	// the amount.
	RecordEarnings(context.Context, RecordEarningsRequest) (RecordEarningsResponse, error)
	// GetNetworkStats aggregates downline size and earnings per depth.
	GetNetworkStats(context.Context, NetworkStatsRequest) (NetworkStatsResponse, error)
	// GetNetworkTree rebuilds the bounded downline tree of a member.
	GetNetworkTree(context.Context, NetworkTreeRequest) (NetworkTreeResponse, error)
}

// CommissionPolicy maps a proper-ancestor depth to a commission rate in
// basis points.
type CommissionPolicy interface {
	RateBPS(depth int) int64
}

// Directory resolves member profiles for presentation. The network package
// stores ids only.
type Directory interface {
	ResolveProfiles(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) (map[snowflake.ID]Profile, error)
}
