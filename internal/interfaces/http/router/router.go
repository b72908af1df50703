package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/infrastructure/auth"
	"github.com/storefront/analytics/internal/infrastructure/config"
	"github.com/storefront/analytics/internal/interfaces/http/handler"
	"github.com/storefront/analytics/internal/interfaces/http/middleware"
)

// Dependencies holds everything the router needs
type Dependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	JWTService    *auth.JWTService
	SystemHandler *handler.SystemHandler
	Reports       *handler.ReportsHandler
}

// New builds the gin engine with all routes and middleware wired
func New(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(deps.Config.HTTP.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(deps.Config.HTTP.TrustedProxies)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.Recovery(deps.Logger),
		middleware.CORS(deps.Config.HTTP),
	)

	engine.GET("/healthz", deps.SystemHandler.Health)
	engine.GET("/readyz", deps.SystemHandler.Ready)

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuth(deps.JWTService))

	reports := api.Group("/reports")
	{
		reports.GET("/revenue",
			middleware.RequireScope(auth.ScopeReportsRead),
			deps.Reports.RevenueStats)
		reports.GET("/jobs",
			middleware.RequireScope(auth.ScopeReportsRead),
			deps.Reports.Jobs)
		reports.POST("/regenerate",
			middleware.RequireScope(auth.ScopeReportsManage),
			deps.Reports.Regenerate)
		reports.POST("/orders/:id/sync",
			middleware.RequireScope(auth.ScopeReportsManage),
			deps.Reports.SyncOrder)
	}

	return engine
}
