package handler

import (
	"net/http"

	"micro-savings-wallet/internal/adapter/http/middleware"
	"micro-savings-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc      ports.LedgerService
	ReportingSvc   ports.ReportingService
	AuditSvc       ports.AuditService
	UserSvc        ports.UserService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	HTTPMetrics    middleware.HTTPObserver // nil = no request metrics
	MetricsHandler http.Handler            // nil = no metrics endpoint
	MetricsPath    string                  // default /metrics
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "" {
		deps.Mode = gin.ReleaseMode
	}
	gin.SetMode(deps.Mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	health := HealthCheck(deps.HealthCheckers...)
	r.GET("/health", health)
	r.GET("/api/health", health)
	if deps.MetricsHandler != nil {
		if deps.MetricsPath == "" {
			deps.MetricsPath = "/metrics"
		}
		r.GET(deps.MetricsPath, gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	dashboardHandler := NewDashboardHandler(deps.ReportingSvc, deps.AuditSvc)
	txHandler := NewTransactionHandler(deps.ReportingSvc)
	userHandler := NewUserHandler(deps.UserSvc)

	v1 := r.Group("/api/v1")

	dashboard := v1.Group("/dashboard")
	{
		dashboard.POST("/deposit", rl(middleware.GroupMoneyMovement), ledgerHandler.Deposit)
		dashboard.POST("/transfer", rl(middleware.GroupMoneyMovement), ledgerHandler.Transfer)
		dashboard.POST("/withdraw", rl(middleware.GroupMoneyMovement), ledgerHandler.Withdraw)

		dashboard.GET("/summary", rl(middleware.GroupDashboard), dashboardHandler.Summary)
		dashboard.GET("/transactions", rl(middleware.GroupDashboard), dashboardHandler.ListTransactions)
		dashboard.GET("/activity", rl(middleware.GroupDashboard), dashboardHandler.Activity)
		dashboard.GET("/activity/:userId", rl(middleware.GroupDashboard), dashboardHandler.UserActivity)
		dashboard.GET("/balance/:userId", rl(middleware.GroupDashboard), txHandler.GetBalance)
		dashboard.GET("/user-transactions/:userId", rl(middleware.GroupDashboard), txHandler.GetUserTransactions)
	}

	transactions := v1.Group("/transactions")
	{
		transactions.GET("/balance/:userId", rl(middleware.GroupDashboard), txHandler.GetBalance)
		transactions.GET("/:userId", rl(middleware.GroupDashboard), txHandler.GetUserTransactions)
	}

	users := v1.Group("/users")
	{
		users.GET("", rl(middleware.GroupUsers), userHandler.List)
		users.POST("", rl(middleware.GroupUsers), userHandler.Create)
		users.GET("/:userId", rl(middleware.GroupUsers), userHandler.Get)
	}

	return r
}
