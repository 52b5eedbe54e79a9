package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
	"github.com/trmhq/trm/internal/orgcontext"
	"github.com/trmhq/trm/internal/user/domain"
	"github.com/trmhq/trm/pkg/db"
	"github.com/trmhq/trm/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Network networkdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	network networkdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("user.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		network: p.Network,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.RegisterResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.RegisterResponse{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RegisterResponse{}, domain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.RegisterResponse{}, domain.ErrInvalidEmail
	}

	var sponsor *domain.User
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		found, err := s.repo.FindByReferralCode(ctx, s.db, orgID, code)
		if err != nil {
			return domain.RegisterResponse{}, err
		}
		if found == nil {
			return domain.RegisterResponse{}, domain.ErrUnknownReferralCode
		}
		sponsor = found
	}

	now := time.Now().UTC()
	id := s.genID.Generate()
	user := domain.User{
		ID:           id,
		OrgID:        orgID,
		Email:        email,
		Name:         name,
		AvatarURL:    strings.TrimSpace(req.AvatarURL),
		Tier:         "member",
		ReferralCode: strings.ToUpper(id.Base36()),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.adoptStranded(ctx, orgID, email, sponsor)
		}
		return domain.RegisterResponse{}, err
	}

	networkReq := networkdomain.AddToNetworkRequest{UserID: user.ID.String()}
	if sponsor != nil {
		networkReq.ParentID = sponsor.ID.String()
	}
	if _, err := s.network.AddToNetwork(ctx, networkReq); err != nil {
		return domain.RegisterResponse{}, err
	}

	resp := domain.RegisterResponse{User: user}
	if sponsor != nil {
		resp.SponsorID = sponsor.ID.String()
	}
	return resp, nil
}

// adoptStranded retries network placement for a user row whose earlier
// registration failed between the insert and AddToNetwork. A row that
// already carries its self-edge is a genuine duplicate.
func (s *Service) adoptStranded(ctx context.Context, orgID snowflake.ID, email string, sponsor *domain.User) (domain.RegisterResponse, error) {
	existing, err := s.repo.FindByEmail(ctx, s.db, orgID, email)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	if existing == nil {
		return domain.RegisterResponse{}, domain.ErrEmailTaken
	}

	networkReq := networkdomain.AddToNetworkRequest{UserID: existing.ID.String()}
	if sponsor != nil {
		networkReq.ParentID = sponsor.ID.String()
	}
	if _, err := s.network.AddToNetwork(ctx, networkReq); err != nil {
		if errors.Is(err, networkdomain.ErrAlreadyRegistered) {
			return domain.RegisterResponse{}, domain.ErrEmailTaken
		}
		return domain.RegisterResponse{}, err
	}

	s.log.Info("stranded member placed in network",
		zap.String("user_id", existing.ID.String()),
	)

	resp := domain.RegisterResponse{User: *existing}
	if sponsor != nil {
		resp.SponsorID = sponsor.ID.String()
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetUserRequest) (domain.User, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.User{}, domain.ErrInvalidOrganization
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.User{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.User{}, err
	}
	if item == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListUserRequest) (domain.ListUserResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListUserResponse{}, domain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, domain.ListUserFilter{
		Email: strings.TrimSpace(req.Email),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListUserResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(user *domain.User) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        user.ID.String(),
			CreatedAt: user.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}

	resp := domain.ListUserResponse{Users: users}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
