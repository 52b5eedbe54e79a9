package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/trmhq/trm/internal/ledger/domain"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
	"github.com/trmhq/trm/internal/notify"
	"github.com/trmhq/trm/internal/observability/metrics"
	"github.com/trmhq/trm/internal/orgcontext"
	"github.com/trmhq/trm/internal/referral/domain"
	userdomain "github.com/trmhq/trm/internal/user/domain"
	"github.com/trmhq/trm/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Users    userdomain.Service
	Network  networkdomain.Service
	Ledger   ledgerdomain.Service
	Notifier notify.Notifier  `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	users    userdomain.Service
	network  networkdomain.Service
	ledger   ledgerdomain.Service
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("referral.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		users:    p.Users,
		network:  p.Network,
		ledger:   p.Ledger,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateReferralRequest) (domain.Referral, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Referral{}, domain.ErrInvalidOrganization
	}

	referrer, err := s.users.GetByID(ctx, userdomain.GetUserRequest{ID: req.ReferrerID})
	if err != nil {
		return domain.Referral{}, err
	}

	email := strings.ToLower(strings.TrimSpace(req.CandidateEmail))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Referral{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	referral := domain.Referral{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		ReferrerID:     referrer.ID,
		CandidateEmail: email,
		CandidateName:  strings.TrimSpace(req.CandidateName),
		Position:       strings.TrimSpace(req.Position),
		Status:         domain.StatusSubmitted,
		Metadata:       datatypes.JSON(req.Metadata),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &referral); err != nil {
		return domain.Referral{}, err
	}
	return referral, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetReferralRequest) (domain.Referral, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Referral{}, domain.ErrInvalidOrganization
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Referral{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Referral{}, err
	}
	if item == nil {
		return domain.Referral{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListReferralRequest) (domain.ListReferralResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListReferralResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListReferralFilter{
		ReferrerID: strings.TrimSpace(req.ReferrerID),
	}
	if status := domain.Status(strings.TrimSpace(req.Status)); status != "" {
		if !domain.ValidStatus(status) {
			return domain.ListReferralResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListReferralResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(referral *domain.Referral) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        referral.ID.String(),
			CreatedAt: referral.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	referrals := make([]domain.Referral, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		referrals = append(referrals, *item)
	}

	resp := domain.ListReferralResponse{Referrals: referrals}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Referral, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Referral{}, domain.ErrInvalidOrganization
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Referral{}, err
	}

	next := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !domain.ValidStatus(next) {
		return domain.Referral{}, domain.ErrInvalidStatus
	}

	current, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Referral{}, err
	}
	if current == nil {
		return domain.Referral{}, domain.ErrNotFound
	}
	if !domain.CanTransition(current.Status, next) {
		return domain.Referral{}, domain.ErrInvalidTransition
	}

	reward := current.RewardAmount
	var convertedAt *time.Time
	if next == domain.StatusHired {
		if req.RewardAmount <= 0 {
			return domain.Referral{}, domain.ErrInvalidReward
		}
		reward = req.RewardAmount
		now := time.Now().UTC()
		convertedAt = &now
	}

	moved, err := s.repo.UpdateStatus(ctx, s.db, orgID, id, current.Status, next, reward, convertedAt)
	if err != nil {
		return domain.Referral{}, err
	}
	if !moved {
		return domain.Referral{}, domain.ErrConcurrentUpdate
	}

	updated := *current
	updated.Status = next
	updated.RewardAmount = reward
	if convertedAt != nil {
		updated.ConvertedAt = convertedAt
	}
	updated.UpdatedAt = time.Now().UTC()

	if next == domain.StatusHired {
		if err := s.convert(ctx, orgID, &updated); err != nil {
			return updated, err
		}
	}

	s.notify(ctx, orgID, &updated, notify.EventReferralStatusChanged)
	return updated, nil
}

// convert settles a hired referral: book the referrer's reward and roll
// commissions up the referrer's chain. The status change has already
// committed, so a failure here surfaces without undoing the hire.
func (s *Service) convert(ctx context.Context, orgID snowflake.ID, referral *domain.Referral) error {
	if err := s.ledger.CreateEntry(ctx, orgID,
		ledgerdomain.SourceTypeReferralReward,
		referral.ID.String(),
		"referral reward for "+referral.CandidateEmail,
		[]ledgerdomain.Posting{
			{Account: ledgerdomain.AccountCodeRewardExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: referral.RewardAmount},
			{Account: ledgerdomain.AccountCodeRewardPayable, Direction: ledgerdomain.EntryDirectionCredit, Amount: referral.RewardAmount},
		},
	); err != nil {
		return err
	}

	earnings, err := s.network.RecordEarnings(ctx, networkdomain.RecordEarningsRequest{
		UserID:   referral.ReferrerID.String(),
		Amount:   referral.RewardAmount,
		SourceID: referral.ID.String(),
	})
	if err != nil {
		s.log.Error("commission rollup failed",
			zap.String("referral_id", referral.ID.String()),
			zap.Error(err),
		)
		return err
	}

	var commissionTotal int64
	for _, credit := range earnings.Credits {
		commissionTotal += credit.Amount
	}
	if commissionTotal > 0 {
		if err := s.ledger.CreateEntry(ctx, orgID,
			ledgerdomain.SourceTypeCommission,
			referral.ID.String(),
			"upline commission for referral "+referral.ID.String(),
			[]ledgerdomain.Posting{
				{Account: ledgerdomain.AccountCodeCommissionExpense, Direction: ledgerdomain.EntryDirectionDebit, Amount: commissionTotal},
				{Account: ledgerdomain.AccountCodeCommissionPayable, Direction: ledgerdomain.EntryDirectionCredit, Amount: commissionTotal},
			},
		); err != nil {
			return err
		}
	}

	s.metrics.RecordReferralConversion(ctx, attribute.String("org_id", orgID.String()))
	s.notify(ctx, orgID, referral, notify.EventReferralConverted)
	for _, credit := range earnings.Credits {
		if credit.Amount == 0 {
			continue
		}
		s.notifyCredit(ctx, orgID, credit, referral.ID)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, orgID snowflake.ID, referral *domain.Referral, eventType string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Event{
		OrgID:   orgID,
		UserID:  referral.ReferrerID,
		Type:    eventType,
		Message: "referral " + referral.CandidateEmail + " is now " + string(referral.Status),
		Data: map[string]any{
			"referral_id": referral.ID.String(),
			"status":      string(referral.Status),
		},
	})
	if err != nil {
		s.log.Warn("notification failed", zap.Error(err))
	}
}

func (s *Service) notifyCredit(ctx context.Context, orgID snowflake.ID, credit networkdomain.CommissionCredit, referralID snowflake.ID) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Event{
		OrgID:  orgID,
		UserID: credit.AncestorID,
		Type:   notify.EventCommissionCredited,
		Data: map[string]any{
			"referral_id": referralID.String(),
			"depth":       credit.Depth,
			"amount":      credit.Amount,
		},
	})
	if err != nil {
		s.log.Warn("notification failed", zap.Error(err))
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
