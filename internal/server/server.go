// Package server exposes the serving-path and admin operations over HTTP.
// The serving endpoints are consumed by the storefront render and redirect
// paths; the admin endpoints by internal tooling and the sweeper.
package server

import (
	activationdomain "github.com/adlanelabs/adlane/internal/activation/domain"
	adeventsdomain "github.com/adlanelabs/adlane/internal/adevents/domain"
	billingdomain "github.com/adlanelabs/adlane/internal/billing/domain"
	"github.com/adlanelabs/adlane/internal/config"
	frauddomain "github.com/adlanelabs/adlane/internal/fraud/domain"
	lifecycledomain "github.com/adlanelabs/adlane/internal/lifecycle/domain"
	"github.com/adlanelabs/adlane/internal/observability"
	rankingdomain "github.com/adlanelabs/adlane/internal/ranking/domain"
	walletdomain "github.com/adlanelabs/adlane/internal/wallet/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	router *gin.Engine
	log    *zap.Logger
	cfg    config.Config
	db     *gorm.DB

	activationSvc activationdomain.Service
	billingSvc    billingdomain.Service
	fraudSvc      frauddomain.Service
	lifecycleSvc  lifecycledomain.Service
	rankingSvc    rankingdomain.Service
	walletSvc     walletdomain.Service
	eventsSvc     adeventsdomain.Recorder
}

type ServerParam struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	DB      *gorm.DB
	Metrics *observability.Metrics

	Activation activationdomain.Service
	Billing    billingdomain.Service
	Fraud      frauddomain.Service
	Lifecycle  lifecycledomain.Service
	Ranking    rankingdomain.Service
	Wallet     walletdomain.Service
	Events     adeventsdomain.Recorder
}

func NewServer(p ServerParam) *Server {
	if !p.Config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router: gin.New(),
		log:    p.Log.Named("server"),
		cfg:    p.Config,
		db:     p.DB,

		activationSvc: p.Activation,
		billingSvc:    p.Billing,
		fraudSvc:      p.Fraud,
		lifecycleSvc:  p.Lifecycle,
		rankingSvc:    p.Ranking,
		walletSvc:     p.Wallet,
		eventsSvc:     p.Events,
	}

	s.router.Use(gin.Recovery(), requestLogger(s.log))

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		p.Metrics.Registry,
		promhttp.HandlerOpts{},
	)))

	api := s.router.Group("/api/v1")
	{
		ads := api.Group("/ads")
		{
			ads.POST("/:id/validate", s.ValidateAd)
			ads.POST("/:id/activate", s.ActivateAd)
			ads.POST("/:id/resume", s.ResumeAd)
			ads.POST("/:id/upfront-paid", s.MarkUpfrontPaid)
			ads.POST("/:id/suspend", s.SuspendAd)
			ads.GET("/:id/events", s.ListAdEvents)

			ads.GET("/:id/can-show", s.CanShow)
			ads.POST("/:id/views", s.LogAdView)
			ads.POST("/:id/clicks", s.LogAdClick)
		}

		api.GET("/fraud/check", s.CheckClickFraud)

		placements := api.Group("/placements")
		{
			placements.GET("/sponsored", s.GetSponsoredCandidates)
			placements.POST("/results", s.BuildPlacementResults)
		}

		wallets := api.Group("/wallets")
		{
			wallets.GET("/:seller_id/balance", s.GetWalletBalance)
			wallets.POST("/:seller_id/credit", s.CreditWallet)
		}

		admin := api.Group("/admin")
		{
			admin.POST("/sweeps/status", s.RunStatusSweep)
			admin.POST("/sweeps/daily-reset", s.RunDailyReset)
			admin.POST("/sweeps/expiry", s.RunExpirySweep)
		}
	}

	return s
}

func (s *Server) Handler() *gin.Engine { return s.router }

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() >= 500 {
			log.Warn("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
			)
		}
	}
}
