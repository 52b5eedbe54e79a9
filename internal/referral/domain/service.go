package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/trmhq/trm/pkg/db/pagination"
)

type CreateReferralRequest struct {
	ReferrerID     string          `json:"referrer_id"`
	CandidateEmail string          `json:"candidate_email"`
	CandidateName  string          `json:"candidate_name"`
	Position       string          `json:"position"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

type GetReferralRequest struct {
	ID string
}

type UpdateStatusRequest struct {
	ID     string `json:"-"`
	Status string `json:"status"`
	// RewardAmount is required when moving to hired. Minor currency units.
	RewardAmount int64 `json:"reward_amount,omitempty"`
}

type ListReferralRequest struct {
	PageToken  string
	PageSize   int32
	ReferrerID string
	Status     string
}

type ListReferralFilter struct {
	ReferrerID string
	Status     Status
}

type ListReferralResponse struct {
	pagination.PageInfo
	Referrals []Referral `json:"referrals"`
}

type Service interface {
	Create(context.Context, CreateReferralRequest) (Referral, error)
	GetByID(context.Context, GetReferralRequest) (Referral, error)
	List(context.Context, ListReferralRequest) (ListReferralResponse, error)
	// UpdateStatus applies one lifecycle transition. Moving to hired pays
	// the referrer's reward and rolls commissions up the referrer's chain.
	UpdateStatus(context.Context, UpdateStatusRequest) (Referral, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidReward       = errors.New("invalid_reward")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrNotFound            = errors.New("not_found")
	ErrConcurrentUpdate    = errors.New("concurrent_update")
)
