package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryDirection represents debit or credit postings.
type EntryDirection string

const (
	EntryDirectionDebit  EntryDirection = "debit"
	EntryDirectionCredit EntryDirection = "credit"
)

type SourceType string

const (
	// SourceTypeReferralReward books the payout owed for a hired referral.
	SourceTypeReferralReward SourceType = "referral_reward"
	// SourceTypeCommission books the upline commission for a recorded earning.
	SourceTypeCommission SourceType = "commission"
)

type AccountCode string

const (
	AccountCodeCommissionExpense AccountCode = "commission_expense"
	AccountCodeCommissionPayable AccountCode = "commission_payable"
	AccountCodeRewardExpense     AccountCode = "reward_expense"
	AccountCodeRewardPayable     AccountCode = "reward_payable"
)

type AccountType string

const (
	AccountTypeExpense   AccountType = "expense"
	AccountTypeLiability AccountType = "liability"
)

// Account defines a chart-of-accounts entry.
type Account struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_org_code,priority:1"`
	Code      AccountCode  `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_org_code,priority:2"`
	Name      string       `gorm:"type:text;not null"`
	Type      AccountType  `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Account) TableName() string { return "ledger_accounts" }

// Entry captures the immutable header for a financial event.
type Entry struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	OrgID      snowflake.ID `gorm:"not null;index"`
	SourceType SourceType   `gorm:"type:text;not null;index"`
	SourceID   string       `gorm:"type:text;not null;index"`
	Memo       string       `gorm:"type:text;not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Entry) TableName() string { return "ledger_entries" }

// EntryLine is a double-entry posting line.
type EntryLine struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	EntryID   snowflake.ID   `gorm:"not null;index"`
	AccountID snowflake.ID   `gorm:"not null;index"`
	Direction EntryDirection `gorm:"type:text;not null"`
	Amount    int64          `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EntryLine) TableName() string { return "ledger_entry_lines" }

// Posting pairs an account code with an amount and direction. The service
// resolves codes to account rows.
type Posting struct {
	Account   AccountCode
	Direction EntryDirection
	Amount    int64
}

type Service interface {
	// CreateEntry writes one balanced double-entry record. A repeated
	// (sourceType, sourceID) pair is a no-op.
	CreateEntry(ctx context.Context, orgID snowflake.ID, sourceType SourceType, sourceID, memo string, postings []Posting) error
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidSourceType   = errors.New("invalid_source_type")
	ErrInvalidSourceID     = errors.New("invalid_source_id")
	ErrInvalidPostings     = errors.New("invalid_postings")
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrInvalidDirection    = errors.New("invalid_direction")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrUnbalancedEntry     = errors.New("unbalanced_entry")
)

// ValidateBalanced checks that debits equal credits.
func ValidateBalanced(postings []Posting) error {
	var debits, credits int64
	for _, posting := range postings {
		switch posting.Direction {
		case EntryDirectionDebit:
			debits += posting.Amount
		case EntryDirectionCredit:
			credits += posting.Amount
		default:
			return ErrInvalidDirection
		}
	}
	if debits != credits {
		return ErrUnbalancedEntry
	}
	return nil
}
