package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ledgerdomain "github.com/trmhq/trm/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestCreateEntryPostsBalancedLines(t *testing.T) {
	node := mustNode(t)
	service, db := setupLedgerService(t, node)
	orgID := node.Generate()

	err := service.CreateEntry(context.Background(), orgID,
		ledgerdomain.SourceTypeReferralReward,
		node.Generate().String(),
		"referral reward",
		[]ledgerdomain.Posting{
			{Account: ledgerdomain.AccountCodeRewardExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: 50_000},
			{Account: ledgerdomain.AccountCodeRewardPayable, Direction: ledgerdomain.EntryDirectionCredit, Amount: 50_000},
		},
	)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if got := count(t, db, "SELECT COUNT(*) FROM ledger_entries"); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM ledger_entry_lines"); got != 2 {
		t.Fatalf("expected 2 lines, got %d", got)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM ledger_accounts"); got != 2 {
		t.Fatalf("expected 2 accounts, got %d", got)
	}
}

func TestCreateEntryIdempotentPerSource(t *testing.T) {
	node := mustNode(t)
	service, db := setupLedgerService(t, node)
	orgID := node.Generate()
	sourceID := node.Generate().String()

	postings := []ledgerdomain.Posting{
		{Account: ledgerdomain.AccountCodeCommissionExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: 8_000},
		{Account: ledgerdomain.AccountCodeCommissionPayable, Direction: ledgerdomain.EntryDirectionCredit, Amount: 8_000},
	}
	for i := 0; i < 3; i++ {
		err := service.CreateEntry(context.Background(), orgID,
			ledgerdomain.SourceTypeCommission, sourceID, "upline commission", postings)
		if err != nil {
			t.Fatalf("create entry attempt %d: %v", i, err)
		}
	}

	if got := count(t, db, "SELECT COUNT(*) FROM ledger_entries"); got != 1 {
		t.Fatalf("expected a single entry for the source, got %d", got)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM ledger_entry_lines"); got != 2 {
		t.Fatalf("expected lines written once, got %d", got)
	}
}

func TestCreateEntryReusesAccounts(t *testing.T) {
	node := mustNode(t)
	service, db := setupLedgerService(t, node)
	orgID := node.Generate()

	for i := 0; i < 2; i++ {
		err := service.CreateEntry(context.Background(), orgID,
			ledgerdomain.SourceTypeCommission,
			node.Generate().String(),
			"upline commission",
			[]ledgerdomain.Posting{
				{Account: ledgerdomain.AccountCodeCommissionExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: 1_000},
				{Account: ledgerdomain.AccountCodeCommissionPayable, Direction: ledgerdomain.EntryDirectionCredit, Amount: 1_000},
			},
		)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}

	if got := count(t, db, "SELECT COUNT(*) FROM ledger_accounts"); got != 2 {
		t.Fatalf("expected accounts created once, got %d", got)
	}
	if got := count(t, db, "SELECT COUNT(*) FROM ledger_entries"); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}

func TestCreateEntryRejectsUnbalanced(t *testing.T) {
	node := mustNode(t)
	service, _ := setupLedgerService(t, node)
	orgID := node.Generate()

	err := service.CreateEntry(context.Background(), orgID,
		ledgerdomain.SourceTypeReferralReward,
		node.Generate().String(),
		"",
		[]ledgerdomain.Posting{
			{Account: ledgerdomain.AccountCodeRewardExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: 100},
			{Account: ledgerdomain.AccountCodeRewardPayable, Direction: ledgerdomain.EntryDirectionCredit, Amount: 99},
		},
	)
	if !errors.Is(err, ledgerdomain.ErrUnbalancedEntry) {
		t.Fatalf("expected unbalanced_entry, got %v", err)
	}
}

func TestCreateEntryRequiresTwoPostings(t *testing.T) {
	node := mustNode(t)
	service, _ := setupLedgerService(t, node)
	orgID := node.Generate()

	err := service.CreateEntry(context.Background(), orgID,
		ledgerdomain.SourceTypeReferralReward,
		node.Generate().String(),
		"",
		[]ledgerdomain.Posting{
			{Account: ledgerdomain.AccountCodeRewardExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: 100},
		},
	)
	if !errors.Is(err, ledgerdomain.ErrInvalidPostings) {
		t.Fatalf("expected invalid_postings, got %v", err)
	}
}

func setupLedgerService(t *testing.T, node *snowflake.Node) (ledgerdomain.Service, *gorm.DB) {
	t.Helper()

	db := openLedgerDB(t)
	service := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	return service, db
}

func openLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	prepareLedgerSchema(t, db)
	return db
}

func prepareLedgerSchema(t *testing.T, db *gorm.DB) {
	t.Helper()

	stmts := []string{
		`CREATE TABLE ledger_accounts (
			id INTEGER PRIMARY KEY,
			org_id INTEGER NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_ledger_accounts_org_code ON ledger_accounts (org_id, code)`,
		`CREATE TABLE ledger_entries (
			id INTEGER PRIMARY KEY,
			org_id INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			memo TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_ledger_entries_source ON ledger_entries (org_id, source_type, source_id)`,
		`CREATE TABLE ledger_entry_lines (
			id INTEGER PRIMARY KEY,
			entry_id INTEGER NOT NULL,
			account_id INTEGER NOT NULL,
			direction TEXT NOT NULL CHECK (direction IN ('debit', 'credit')),
			amount INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func count(t *testing.T, db *gorm.DB, query string) int64 {
	t.Helper()
	var n int64
	if err := db.Raw(query).Scan(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
