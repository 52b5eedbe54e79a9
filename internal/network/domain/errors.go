package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrAlreadyRegistered   = errors.New("already_registered")
	ErrParentNotFound      = errors.New("parent_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrCycleDetected       = errors.New("cycle_detected")
	ErrTransactionAborted  = errors.New("transaction_aborted")
)

// PartialEarningsError reports a best-effort earnings run where some
// ancestor credits landed and others failed.
type PartialEarningsError struct {
	Credited []CommissionCredit
	Failed   []snowflake.ID
}

func (e *PartialEarningsError) Error() string {
	return fmt.Sprintf("partial_earnings: %d credited, %d failed", len(e.Credited), len(e.Failed))
}
