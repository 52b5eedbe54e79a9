package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/trmhq/trm/internal/config"
	"github.com/trmhq/trm/internal/network/domain"
	"github.com/trmhq/trm/internal/network/tree"
	"github.com/trmhq/trm/internal/observability/metrics"
	"github.com/trmhq/trm/internal/orgcontext"
	"github.com/trmhq/trm/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Config    config.Config
	Repo      domain.Repository
	Policy    domain.CommissionPolicy
	Directory domain.Directory `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cfg       config.NetworkConfig
	repo      domain.Repository
	policy    domain.CommissionPolicy
	directory domain.Directory
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("network.service"),
		genID:     p.GenID,
		cfg:       p.Config.Network,
		repo:      p.Repo,
		policy:    p.Policy,
		directory: p.Directory,
		metrics:   p.Metrics,
	}
}

func (s *Service) AddToNetwork(ctx context.Context, req domain.AddToNetworkRequest) (domain.AddToNetworkResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.AddToNetworkResponse{}, domain.ErrInvalidOrganization
	}

	userID, err := s.parseID(req.UserID)
	if err != nil {
		return domain.AddToNetworkResponse{}, err
	}

	var parentID snowflake.ID
	if strings.TrimSpace(req.ParentID) != "" {
		parentID, err = s.parseID(req.ParentID)
		if err != nil {
			return domain.AddToNetworkResponse{}, err
		}
	}
	if parentID == userID {
		return domain.AddToNetworkResponse{}, domain.ErrCycleDetected
	}

	var written int
	txErr := s.transact(ctx, func(tx *gorm.DB) error {
		registered, err := s.repo.Exists(ctx, tx, orgID, userID, userID, domain.DepthRange{})
		if err != nil {
			return err
		}
		if registered {
			return domain.ErrAlreadyRegistered
		}

		if parentID != 0 {
			inDownline, err := s.repo.Exists(ctx, tx, orgID, userID, parentID, domain.DepthRange{Min: 1})
			if err != nil {
				return err
			}
			if inDownline {
				return domain.ErrCycleDetected
			}
		}

		var chain []*domain.NetworkEdge
		if parentID != 0 {
			chain, err = s.repo.FindByDescendant(ctx, tx, orgID, parentID, domain.DepthRange{})
			if err != nil {
				return err
			}
			if len(chain) == 0 {
				if s.cfg.MissingParentPolicy == config.MissingParentAdoptRoot {
					parentID = 0
				} else {
					return domain.ErrParentNotFound
				}
			}
		}

		now := time.Now().UTC()
		edges := []*domain.NetworkEdge{{
			ID:           s.genID.Generate(),
			OrgID:        orgID,
			AncestorID:   userID,
			DescendantID: userID,
			Depth:        0,
			CreatedAt:    now,
		}}
		for _, ancestor := range chain {
			depth := ancestor.Depth + 1
			edges = append(edges, &domain.NetworkEdge{
				ID:            s.genID.Generate(),
				OrgID:         orgID,
				AncestorID:    ancestor.AncestorID,
				DescendantID:  userID,
				Depth:         depth,
				CommissionBPS: s.policy.RateBPS(depth),
				CreatedAt:     now,
			})
		}

		if err := s.repo.InsertEdges(ctx, tx, edges); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyRegistered
			}
			return err
		}
		written = len(edges)
		return nil
	})
	if txErr != nil {
		return domain.AddToNetworkResponse{}, txErr
	}

	s.metrics.RecordEdgesInserted(ctx, int64(written), attribute.String("org_id", orgID.String()))
	s.log.Info("member registered",
		zap.String("user_id", userID.String()),
		zap.String("parent_id", parentID.String()),
		zap.Int("edges", written),
	)

	return domain.AddToNetworkResponse{
		UserID:       userID,
		ParentID:     parentID,
		Root:         parentID == 0,
		EdgesWritten: written,
	}, nil
}

func (s *Service) GetDescendants(ctx context.Context, req domain.ListEdgesRequest) (domain.ListEdgesResponse, error) {
	orgID, userID, err := s.resolveMember(ctx, req.UserID)
	if err != nil {
		return domain.ListEdgesResponse{}, err
	}

	items, err := s.repo.FindByAncestor(ctx, s.db, orgID, userID, domain.DepthRange{Min: max(req.MinDepth, 1), Max: req.MaxDepth})
	if err != nil {
		return domain.ListEdgesResponse{}, err
	}

	edges := collect(items)
	s.expandProfiles(ctx, orgID, edges, func(edge *domain.NetworkEdge) snowflake.ID {
		return edge.DescendantID
	})
	return domain.ListEdgesResponse{Edges: edges}, nil
}

func (s *Service) GetAncestors(ctx context.Context, req domain.ListEdgesRequest) (domain.ListEdgesResponse, error) {
	orgID, userID, err := s.resolveMember(ctx, req.UserID)
	if err != nil {
		return domain.ListEdgesResponse{}, err
	}

	items, err := s.repo.FindByDescendant(ctx, s.db, orgID, userID, domain.DepthRange{Min: max(req.MinDepth, 1), Max: req.MaxDepth})
	if err != nil {
		return domain.ListEdgesResponse{}, err
	}

	edges := collect(items)
	s.expandProfiles(ctx, orgID, edges, func(edge *domain.NetworkEdge) snowflake.ID {
		return edge.AncestorID
	})
	return domain.ListEdgesResponse{Edges: edges}, nil
}

func (s *Service) IsInDownline(ctx context.Context, req domain.IsInDownlineRequest) (bool, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return false, domain.ErrInvalidOrganization
	}

	ancestorID, err := s.parseID(req.AncestorID)
	if err != nil {
		return false, err
	}
	descendantID, err := s.parseID(req.DescendantID)
	if err != nil {
		return false, err
	}

	return s.repo.Exists(ctx, s.db, orgID, ancestorID, descendantID, domain.DepthRange{Min: 1})
}

func (s *Service) RecordEarnings(ctx context.Context, req domain.RecordEarningsRequest) (domain.RecordEarningsResponse, error) {
	orgID, userID, err := s.resolveMember(ctx, req.UserID)
	if err != nil {
		return domain.RecordEarningsResponse{}, err
	}
	if req.Amount <= 0 {
		return domain.RecordEarningsResponse{}, domain.ErrInvalidAmount
	}

	ancestors, err := s.repo.FindByDescendant(ctx, s.db, orgID, userID, domain.DepthRange{Min: 1})
	if err != nil {
		return domain.RecordEarningsResponse{}, err
	}

	credits := make([]domain.CommissionCredit, 0, len(ancestors))
	for _, edge := range ancestors {
		credits = append(credits, domain.CommissionCredit{
			AncestorID: edge.AncestorID,
			Depth:      edge.Depth,
			Percent:    edge.CommissionPercent(),
			Amount:     commissionAmount(req.Amount, edge.CommissionBPS),
		})
	}

	if s.cfg.EarningsAtomicity == config.EarningsBestEffort {
		if err := s.creditBestEffort(ctx, orgID, ancestors, credits); err != nil {
			return domain.RecordEarningsResponse{}, err
		}
	} else {
		err := s.transact(ctx, func(tx *gorm.DB) error {
			for i, edge := range ancestors {
				if credits[i].Amount == 0 {
					continue
				}
				if err := s.repo.IncrementEarnings(ctx, tx, orgID, edge.ID, credits[i].Amount); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return domain.RecordEarningsResponse{}, err
		}
	}

	s.metrics.RecordEarnings(ctx, int64(len(credits)), attribute.String("org_id", orgID.String()))
	s.log.Info("earnings recorded",
		zap.String("user_id", userID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int("ancestors", len(credits)),
		zap.String("source_id", req.SourceID),
	)

	return domain.RecordEarningsResponse{
		UserID:  userID,
		Amount:  req.Amount,
		Credits: credits,
	}, nil
}

func (s *Service) creditBestEffort(ctx context.Context, orgID snowflake.ID, ancestors []*domain.NetworkEdge, credits []domain.CommissionCredit) error {
	credited := make([]domain.CommissionCredit, 0, len(credits))
	var failed []snowflake.ID
	for i, edge := range ancestors {
		if credits[i].Amount == 0 {
			credited = append(credited, credits[i])
			continue
		}
		if err := s.repo.IncrementEarnings(ctx, s.db, orgID, edge.ID, credits[i].Amount); err != nil {
			s.log.Warn("ancestor credit failed",
				zap.String("ancestor_id", edge.AncestorID.String()),
				zap.Error(err),
			)
			failed = append(failed, edge.AncestorID)
			continue
		}
		credited = append(credited, credits[i])
	}
	if len(failed) > 0 {
		return &domain.PartialEarningsError{Credited: credited, Failed: failed}
	}
	return nil
}

func (s *Service) GetNetworkStats(ctx context.Context, req domain.NetworkStatsRequest) (domain.NetworkStatsResponse, error) {
	orgID, userID, err := s.resolveMember(ctx, req.UserID)
	if err != nil {
		return domain.NetworkStatsResponse{}, err
	}

	stats, err := s.repo.StatsByAncestor(ctx, s.db, orgID, userID)
	if err != nil {
		return domain.NetworkStatsResponse{}, err
	}

	resp := domain.NetworkStatsResponse{
		UserID:  userID,
		ByDepth: stats,
	}
	for _, stat := range stats {
		if stat.Depth == 1 {
			resp.DirectReferrals = stat.Count
		}
		resp.TotalSize += stat.Count
		resp.TotalEarnings += stat.Earnings
	}
	return resp, nil
}

func (s *Service) GetNetworkTree(ctx context.Context, req domain.NetworkTreeRequest) (domain.NetworkTreeResponse, error) {
	orgID, userID, err := s.resolveMember(ctx, req.UserID)
	if err != nil {
		return domain.NetworkTreeResponse{}, err
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = s.cfg.MaxTreeDepth
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}

	subtree, err := s.repo.FindByAncestor(ctx, s.db, orgID, userID, domain.DepthRange{Max: maxDepth})
	if err != nil {
		return domain.NetworkTreeResponse{}, err
	}

	ids := make([]snowflake.ID, 0, len(subtree))
	for _, edge := range subtree {
		if edge.DescendantID != userID {
			ids = append(ids, edge.DescendantID)
		}
	}

	parentEdges, err := s.repo.FindDirectParents(ctx, s.db, orgID, ids)
	if err != nil {
		return domain.NetworkTreeResponse{}, err
	}

	root := tree.Build(userID, subtree, parentEdges)
	if root == nil {
		return domain.NetworkTreeResponse{}, domain.ErrMemberNotFound
	}

	if s.directory != nil {
		s.attachProfiles(ctx, orgID, root)
	}

	return domain.NetworkTreeResponse{Root: root, Size: tree.Size(root)}, nil
}

// expandProfiles fills each edge's Profile with one batched directory
// lookup. pick names the member a listing row refers to. Resolution
// failures leave the edges bare rather than failing the read.
func (s *Service) expandProfiles(ctx context.Context, orgID snowflake.ID, edges []domain.NetworkEdge, pick func(*domain.NetworkEdge) snowflake.ID) {
	if s.directory == nil || len(edges) == 0 {
		return
	}

	seen := make(map[snowflake.ID]struct{}, len(edges))
	ids := make([]snowflake.ID, 0, len(edges))
	for i := range edges {
		id := pick(&edges[i])
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	profiles, err := s.directory.ResolveProfiles(ctx, orgID, ids)
	if err != nil {
		s.log.Warn("profile resolution failed", zap.Error(err))
		return
	}
	for i := range edges {
		if profile, ok := profiles[pick(&edges[i])]; ok {
			p := profile
			edges[i].Profile = &p
		}
	}
}

func (s *Service) attachProfiles(ctx context.Context, orgID snowflake.ID, root *domain.TreeNode) {
	var ids []snowflake.ID
	var walk func(node *domain.TreeNode)
	walk = func(node *domain.TreeNode) {
		ids = append(ids, node.UserID)
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(root)

	profiles, err := s.directory.ResolveProfiles(ctx, orgID, ids)
	if err != nil {
		s.log.Warn("profile resolution failed", zap.Error(err))
		return
	}

	var apply func(node *domain.TreeNode)
	apply = func(node *domain.TreeNode) {
		if profile, ok := profiles[node.UserID]; ok {
			p := profile
			node.Profile = &p
		}
		for _, child := range node.Children {
			apply(child)
		}
	}
	apply(root)
}

// transact runs fc inside a transaction. Postgres and MySQL get serializable
// isolation; sqlite serializes writers on its own and its driver rejects
// explicit isolation options. Serialization conflicts and lock timeouts
// surface as the retryable ErrTransactionAborted.
func (s *Service) transact(ctx context.Context, fc func(tx *gorm.DB) error) error {
	var err error
	switch s.db.Dialector.Name() {
	case "postgres", "mysql":
		err = s.db.WithContext(ctx).Transaction(fc, &sql.TxOptions{Isolation: sql.LevelSerializable})
	default:
		err = s.db.WithContext(ctx).Transaction(fc)
	}
	if db.IsSerializationErr(err) {
		s.log.Warn("transaction aborted", zap.Error(err))
		return domain.ErrTransactionAborted
	}
	return err
}

func (s *Service) resolveMember(ctx context.Context, rawID string) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, 0, domain.ErrInvalidOrganization
	}

	userID, err := s.parseID(rawID)
	if err != nil {
		return 0, 0, err
	}

	registered, err := s.repo.Exists(ctx, s.db, orgID, userID, userID, domain.DepthRange{})
	if err != nil {
		return 0, 0, err
	}
	if !registered {
		return 0, 0, domain.ErrMemberNotFound
	}
	return orgID, userID, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// commissionAmount applies a basis-point rate with round-half-up.
func commissionAmount(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

func collect(items []*domain.NetworkEdge) []domain.NetworkEdge {
	edges := make([]domain.NetworkEdge, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		edges = append(edges, *item)
	}
	return edges
}
