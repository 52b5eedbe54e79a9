package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/trmhq/trm/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateEntry(
	ctx context.Context,
	orgID snowflake.ID,
	sourceType ledgerdomain.SourceType,
	sourceID string,
	memo string,
	postings []ledgerdomain.Posting,
) error {
	if orgID == 0 {
		return ledgerdomain.ErrInvalidOrganization
	}
	if strings.TrimSpace(string(sourceType)) == "" {
		return ledgerdomain.ErrInvalidSourceType
	}
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return ledgerdomain.ErrInvalidSourceID
	}
	if len(postings) < 2 {
		return ledgerdomain.ErrInvalidPostings
	}
	for _, posting := range postings {
		if strings.TrimSpace(string(posting.Account)) == "" {
			return ledgerdomain.ErrInvalidAccount
		}
		if posting.Amount < 0 {
			return ledgerdomain.ErrInvalidAmount
		}
	}
	if err := ledgerdomain.ValidateBalanced(postings); err != nil {
		return err
	}

	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entryID := s.genID.Generate()
		now := time.Now().UTC()
		result := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_entries (id, org_id, source_type, source_id, memo, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (org_id, source_type, source_id) DO NOTHING`,
			entryID,
			orgID,
			string(sourceType),
			sourceID,
			memo,
			now,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		inserted = true

		for _, posting := range postings {
			accountID, err := s.ensureAccount(ctx, tx, orgID, posting.Account)
			if err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Exec(
				`INSERT INTO ledger_entry_lines (id, entry_id, account_id, direction, amount, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				s.genID.Generate(),
				entryID,
				accountID,
				string(posting.Direction),
				posting.Amount,
				now,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Debug("ledger entry already recorded",
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", sourceID),
		)
	}
	return nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, code ledgerdomain.AccountCode) (snowflake.ID, error) {
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, org_id, code, name, type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (org_id, code) DO NOTHING`,
		s.genID.Generate(),
		orgID,
		string(code),
		accountName(code),
		string(accountType(code)),
		time.Now().UTC(),
	).Error; err != nil {
		return 0, err
	}

	var account ledgerdomain.Account
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, code, name, type, created_at
		 FROM ledger_accounts WHERE org_id = ? AND code = ?`,
		orgID,
		string(code),
	).Scan(&account).Error
	if err != nil {
		return 0, err
	}
	if account.ID == 0 {
		return 0, ledgerdomain.ErrInvalidAccount
	}
	return account.ID, nil
}

func accountName(code ledgerdomain.AccountCode) string {
	switch code {
	case ledgerdomain.AccountCodeCommissionExpense:
		return "Commission Expense"
	case ledgerdomain.AccountCodeCommissionPayable:
		return "Commission Payable"
	case ledgerdomain.AccountCodeRewardExpense:
		return "Reward Expense"
	case ledgerdomain.AccountCodeRewardPayable:
		return "Reward Payable"
	default:
		return string(code)
	}
}

func accountType(code ledgerdomain.AccountCode) ledgerdomain.AccountType {
	switch code {
	case ledgerdomain.AccountCodeCommissionPayable, ledgerdomain.AccountCodeRewardPayable:
		return ledgerdomain.AccountTypeLiability
	default:
		return ledgerdomain.AccountTypeExpense
	}
}
