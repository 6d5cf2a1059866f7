package server

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	balancedomain "github.com/smallbiznis/bookkeeper/internal/balance/domain"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	obsmiddleware "github.com/smallbiznis/bookkeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	obstracing "github.com/smallbiznis/bookkeeper/internal/observability/tracing"
	reportdomain "github.com/smallbiznis/bookkeeper/internal/report/domain"
	voucherdomain "github.com/smallbiznis/bookkeeper/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName reports validation failures under the JSON or form name.
func jsonFieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(RequestTimeout(cfg.HTTPRequestTimeout))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, cfg config.Config) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, cfg)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine     *gin.Engine
	db         *gorm.DB
	accountSvc accountdomain.Service
	voucherSvc voucherdomain.Service
	balanceSvc balancedomain.Service
	reportSvc  reportdomain.Service
	auditSvc   auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	DB         *gorm.DB
	AccountSvc accountdomain.Service
	VoucherSvc voucherdomain.Service
	BalanceSvc balancedomain.Service
	ReportSvc  reportdomain.Service
	AuditSvc   auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		db:         p.DB,
		accountSvc: p.AccountSvc,
		voucherSvc: p.VoucherSvc,
		balanceSvc: p.BalanceSvc,
		reportSvc:  p.ReportSvc,
		auditSvc:   p.AuditSvc,
	}

	svc.engine.GET("/health", svc.Health)
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Chart of Accounts --------
	api.GET("/groups", s.ListGroups)
	api.POST("/groups", s.CreateGroup)
	api.GET("/groups/:id", s.GetGroup)
	api.GET("/chart-of-accounts", s.ChartOfAccounts)

	// -------- Ledgers --------
	api.GET("/ledgers", s.ListLedgers)
	api.POST("/ledgers", s.CreateLedger)
	api.GET("/ledgers/:id", s.GetLedger)
	api.PATCH("/ledgers/:id", s.UpdateLedger)
	api.DELETE("/ledgers/:id", s.DeleteLedger)
	api.POST("/ledgers/:id/activate", s.ActivateLedger)
	api.POST("/ledgers/:id/deactivate", s.DeactivateLedger)
	api.GET("/ledgers/:id/balance", s.GetLedgerBalance)

	// -------- Vouchers --------
	api.GET("/vouchers", s.ListVouchers)
	api.POST("/vouchers", s.PostVoucher)
	api.GET("/vouchers/:id", s.GetVoucher)
	api.POST("/vouchers/:id/reverse", s.ReverseVoucher)

	// -------- Reports --------
	reports := api.Group("/reports")
	reports.GET("/trial-balance", s.TrialBalance)
	reports.GET("/profit-and-loss", s.ProfitAndLoss)
	reports.GET("/balance-sheet", s.BalanceSheet)
	reports.GET("/ledger-vouchers", s.LedgerVouchers)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
