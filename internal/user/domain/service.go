package domain

import (
	"context"
	"errors"

	"github.com/trmhq/trm/pkg/db/pagination"
)

type RegisterRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	// ReferralCode names the sponsor. Empty registers a network root.
	ReferralCode string `json:"referral_code,omitempty"`
}

type RegisterResponse struct {
	User User `json:"user"`
	// SponsorID is zero for roots.
	SponsorID string `json:"sponsor_id,omitempty"`
}

type GetUserRequest struct {
	ID string
}

type ListUserRequest struct {
	PageToken string
	PageSize  int32
	Email     string
}

type ListUserFilter struct {
	Email string
}

type ListUserResponse struct {
	pagination.PageInfo
	Users []User `json:"users"`
}

type Service interface {
	// Register creates the member row and places it in the referral network.
	Register(context.Context, RegisterRequest) (RegisterResponse, error)
	GetByID(context.Context, GetUserRequest) (User, error)
	List(context.Context, ListUserRequest) (ListUserResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrEmailTaken          = errors.New("email_taken")
	ErrUnknownReferralCode = errors.New("unknown_referral_code")
)
