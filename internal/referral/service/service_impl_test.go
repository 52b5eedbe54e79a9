package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	ledgerdomain "github.com/trmhq/trm/internal/ledger/domain"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
	"github.com/trmhq/trm/internal/notify"
	"github.com/trmhq/trm/internal/orgcontext"
	"github.com/trmhq/trm/internal/referral/domain"
	"github.com/trmhq/trm/internal/referral/repository"
	userdomain "github.com/trmhq/trm/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type userServiceMock struct {
	mock.Mock
}

func (m *userServiceMock) Register(ctx context.Context, req userdomain.RegisterRequest) (userdomain.RegisterResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(userdomain.RegisterResponse), args.Error(1)
}

func (m *userServiceMock) GetByID(ctx context.Context, req userdomain.GetUserRequest) (userdomain.User, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(userdomain.User), args.Error(1)
}

func (m *userServiceMock) List(ctx context.Context, req userdomain.ListUserRequest) (userdomain.ListUserResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(userdomain.ListUserResponse), args.Error(1)
}

type networkServiceMock struct {
	mock.Mock
}

func (m *networkServiceMock) AddToNetwork(ctx context.Context, req networkdomain.AddToNetworkRequest) (networkdomain.AddToNetworkResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(networkdomain.AddToNetworkResponse), args.Error(1)
}

func (m *networkServiceMock) GetDescendants(ctx context.Context, req networkdomain.ListEdgesRequest) (networkdomain.ListEdgesResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(networkdomain.ListEdgesResponse), args.Error(1)
}

func (m *networkServiceMock) GetAncestors(ctx context.Context, req networkdomain.ListEdgesRequest) (networkdomain.ListEdgesResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(networkdomain.ListEdgesResponse), args.Error(1)
}

func (m *networkServiceMock) IsInDownline(ctx context.Context, req networkdomain.IsInDownlineRequest) (bool, error) {
	args := m.Called(ctx, req)
	return args.Bool(0), args.Error(1)
}

func (m *networkServiceMock) RecordEarnings(ctx context.Context, req networkdomain.RecordEarningsRequest) (networkdomain.RecordEarningsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(networkdomain.RecordEarningsResponse), args.Error(1)
}

func (m *networkServiceMock) GetNetworkStats(ctx context.Context, req networkdomain.NetworkStatsRequest) (networkdomain.NetworkStatsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(networkdomain.NetworkStatsResponse), args.Error(1)
}

func (m *networkServiceMock) GetNetworkTree(ctx context.Context, req networkdomain.NetworkTreeRequest) (networkdomain.NetworkTreeResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(networkdomain.NetworkTreeResponse), args.Error(1)
}

type ledgerServiceMock struct {
	mock.Mock
}

func (m *ledgerServiceMock) CreateEntry(ctx context.Context, orgID snowflake.ID, sourceType ledgerdomain.SourceType, sourceID, memo string, postings []ledgerdomain.Posting) error {
	args := m.Called(ctx, orgID, sourceType, sourceID, memo, postings)
	return args.Error(0)
}

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Notify(ctx context.Context, event notify.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestCreateReferral(t *testing.T) {
	node := mustNode(t)
	orgID := node.Generate()
	referrerID := node.Generate()

	users := &userServiceMock{}
	users.On("GetByID", mock.Anything, userdomain.GetUserRequest{ID: referrerID.String()}).
		Return(userdomain.User{ID: referrerID, OrgID: orgID}, nil)

	service, _ := setupReferralService(t, node, users, &networkServiceMock{}, &ledgerServiceMock{}, nil)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	referral, err := service.Create(ctx, domain.CreateReferralRequest{
		ReferrerID:     referrerID.String(),
		CandidateEmail: "Candidate@Example.com",
		CandidateName:  "Candidate",
		Position:       "Engineer",
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, referral.Status)
	assert.Equal(t, "candidate@example.com", referral.CandidateEmail)
	users.AssertExpectations(t)
}

func TestCreateReferralUnknownReferrer(t *testing.T) {
	node := mustNode(t)
	orgID := node.Generate()

	users := &userServiceMock{}
	users.On("GetByID", mock.Anything, mock.Anything).
		Return(userdomain.User{}, userdomain.ErrNotFound)

	service, _ := setupReferralService(t, node, users, &networkServiceMock{}, &ledgerServiceMock{}, nil)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	_, err := service.Create(ctx, domain.CreateReferralRequest{
		ReferrerID:     node.Generate().String(),
		CandidateEmail: "candidate@example.com",
	})
	assert.ErrorIs(t, err, userdomain.ErrNotFound)
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	node := mustNode(t)
	orgID := node.Generate()
	referrerID := node.Generate()

	users := &userServiceMock{}
	users.On("GetByID", mock.Anything, mock.Anything).
		Return(userdomain.User{ID: referrerID, OrgID: orgID}, nil)

	service, _ := setupReferralService(t, node, users, &networkServiceMock{}, &ledgerServiceMock{}, nil)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	referral, err := service.Create(ctx, domain.CreateReferralRequest{
		ReferrerID:     referrerID.String(),
		CandidateEmail: "candidate@example.com",
	})
	assert.NoError(t, err)

	// submitted cannot jump straight to hired.
	_, err = service.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:           referral.ID.String(),
		Status:       string(domain.StatusHired),
		RewardAmount: 1000,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatusHiredConverts(t *testing.T) {
	node := mustNode(t)
	orgID := node.Generate()
	referrerID := node.Generate()
	uplineID := node.Generate()

	users := &userServiceMock{}
	users.On("GetByID", mock.Anything, mock.Anything).
		Return(userdomain.User{ID: referrerID, OrgID: orgID}, nil)

	network := &networkServiceMock{}
	network.On("RecordEarnings", mock.Anything, mock.MatchedBy(func(req networkdomain.RecordEarningsRequest) bool {
		return req.UserID == referrerID.String() && req.Amount == 50_000
	})).Return(networkdomain.RecordEarningsResponse{
		UserID: referrerID,
		Amount: 50_000,
		Credits: []networkdomain.CommissionCredit{
			{AncestorID: uplineID, Depth: 1, Percent: 5, Amount: 2500},
		},
	}, nil)

	ledger := &ledgerServiceMock{}
	ledger.On("CreateEntry", mock.Anything, orgID, ledgerdomain.SourceTypeReferralReward, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ledger.On("CreateEntry", mock.Anything, orgID, ledgerdomain.SourceTypeCommission, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	notifier := &notifierMock{}
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)

	service, _ := setupReferralService(t, node, users, network, ledger, notifier)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	referral, err := service.Create(ctx, domain.CreateReferralRequest{
		ReferrerID:     referrerID.String(),
		CandidateEmail: "candidate@example.com",
	})
	assert.NoError(t, err)

	for _, status := range []domain.Status{domain.StatusScreening, domain.StatusInterviewing} {
		referral, err = service.UpdateStatus(ctx, domain.UpdateStatusRequest{
			ID:     referral.ID.String(),
			Status: string(status),
		})
		assert.NoError(t, err)
	}

	referral, err = service.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:           referral.ID.String(),
		Status:       string(domain.StatusHired),
		RewardAmount: 50_000,
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusHired, referral.Status)
	assert.Equal(t, int64(50_000), referral.RewardAmount)

	network.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestUpdateStatusHiredRequiresReward(t *testing.T) {
	node := mustNode(t)
	orgID := node.Generate()
	referrerID := node.Generate()

	users := &userServiceMock{}
	users.On("GetByID", mock.Anything, mock.Anything).
		Return(userdomain.User{ID: referrerID, OrgID: orgID}, nil)

	service, _ := setupReferralService(t, node, users, &networkServiceMock{}, &ledgerServiceMock{}, nil)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	referral, err := service.Create(ctx, domain.CreateReferralRequest{
		ReferrerID:     referrerID.String(),
		CandidateEmail: "candidate@example.com",
	})
	assert.NoError(t, err)

	for _, status := range []domain.Status{domain.StatusScreening, domain.StatusInterviewing} {
		referral, err = service.UpdateStatus(ctx, domain.UpdateStatusRequest{
			ID:     referral.ID.String(),
			Status: string(status),
		})
		assert.NoError(t, err)
	}

	_, err = service.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     referral.ID.String(),
		Status: string(domain.StatusHired),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReward)
}

func TestUpdateStatusHiredSurfacesRollupFailure(t *testing.T) {
	node := mustNode(t)
	orgID := node.Generate()
	referrerID := node.Generate()

	users := &userServiceMock{}
	users.On("GetByID", mock.Anything, mock.Anything).
		Return(userdomain.User{ID: referrerID, OrgID: orgID}, nil)

	network := &networkServiceMock{}
	network.On("RecordEarnings", mock.Anything, mock.Anything).
		Return(networkdomain.RecordEarningsResponse{}, errors.New("rollup failed"))

	ledger := &ledgerServiceMock{}
	ledger.On("CreateEntry", mock.Anything, orgID, ledgerdomain.SourceTypeReferralReward, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service, _ := setupReferralService(t, node, users, network, ledger, nil)
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))

	referral, err := service.Create(ctx, domain.CreateReferralRequest{
		ReferrerID:     referrerID.String(),
		CandidateEmail: "candidate@example.com",
	})
	assert.NoError(t, err)

	for _, status := range []domain.Status{domain.StatusScreening, domain.StatusInterviewing} {
		referral, err = service.UpdateStatus(ctx, domain.UpdateStatusRequest{
			ID:     referral.ID.String(),
			Status: string(status),
		})
		assert.NoError(t, err)
	}

	updated, err := service.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:           referral.ID.String(),
		Status:       string(domain.StatusHired),
		RewardAmount: 1000,
	})
	assert.Error(t, err)
	// The hire itself stands even when the rollup fails.
	assert.Equal(t, domain.StatusHired, updated.Status)
}

func setupReferralService(
	t *testing.T,
	node *snowflake.Node,
	users userdomain.Service,
	network networkdomain.Service,
	ledger ledgerdomain.Service,
	notifier notify.Notifier,
) (domain.Service, *gorm.DB) {
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
	prepareReferralSchema(t, db)

	service := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Users:    users,
		Network:  network,
		Ledger:   ledger,
		Notifier: notifier,
	})
	return service, db
}

func prepareReferralSchema(t *testing.T, db *gorm.DB) {
	t.Helper()

	err := db.Exec(`CREATE TABLE referrals (
		id INTEGER PRIMARY KEY,
		org_id INTEGER NOT NULL,
		referrer_id INTEGER NOT NULL,
		candidate_email TEXT NOT NULL,
		candidate_name TEXT NOT NULL DEFAULT '',
		position TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'submitted',
		reward_amount INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		converted_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error
	if err != nil {
		t.Fatalf("prepare schema: %v", err)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
