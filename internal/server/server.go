package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trmhq/trm/internal/config"
	"github.com/trmhq/trm/internal/ledger"
	"github.com/trmhq/trm/internal/migration"
	"github.com/trmhq/trm/internal/network"
	networkdomain "github.com/trmhq/trm/internal/network/domain"
	"github.com/trmhq/trm/internal/notify"
	"github.com/trmhq/trm/internal/observability"
	obsmiddleware "github.com/trmhq/trm/internal/observability/logger"
	obsmetrics "github.com/trmhq/trm/internal/observability/metrics"
	obstracing "github.com/trmhq/trm/internal/observability/tracing"
	"github.com/trmhq/trm/internal/ratelimit"
	"github.com/trmhq/trm/internal/referral"
	referraldomain "github.com/trmhq/trm/internal/referral/domain"
	"github.com/trmhq/trm/internal/user"
	userdomain "github.com/trmhq/trm/internal/user/domain"
	"github.com/trmhq/trm/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	db.Module,
	migration.Module,
	fx.Provide(registerGin),
	network.Module,
	user.Module,
	ledger.Module,
	referral.Module,
	notify.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	genID       *snowflake.Node
	userSvc     userdomain.Service
	networkSvc  networkdomain.Service
	referralSvc referraldomain.Service
	limiter     *ratelimit.TokenBucket
	obsMetrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	GenID       *snowflake.Node
	UserSvc     userdomain.Service
	NetworkSvc  networkdomain.Service
	ReferralSvc referraldomain.Service
	Limiter     *ratelimit.TokenBucket `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		userSvc:     p.UserSvc,
		networkSvc:  p.NetworkSvc,
		referralSvc: p.ReferralSvc,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.OrgContext())

	// -------- Members --------
	api.POST("/members", s.RegisterMember)
	api.GET("/members", s.ListMembers)
	api.GET("/members/:id", s.GetMemberByID)
	api.GET("/members/:id/downline", s.GetDownline)
	api.GET("/members/:id/downline/:descendantId", s.CheckDownline)
	api.GET("/members/:id/upline", s.GetUpline)
	api.GET("/members/:id/stats", s.GetNetworkStats)
	api.GET("/members/:id/tree", s.GetNetworkTree)

	// -------- Earnings --------
	api.POST("/earnings", s.EarningsRateLimit(), s.RecordEarnings)

	// -------- Referrals --------
	api.POST("/referrals", s.CreateReferral)
	api.GET("/referrals", s.ListReferrals)
	api.GET("/referrals/:id", s.GetReferralByID)
	api.PATCH("/referrals/:id/status", s.UpdateReferralStatus)
}
