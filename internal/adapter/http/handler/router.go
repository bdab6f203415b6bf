package handler

import (
	"slices"
	"time"

	"relief-offline-ledger/internal/adapter/http/middleware"
	"relief-offline-ledger/internal/adapter/metrics"
	"relief-offline-ledger/internal/core/ports"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	IOUSvc         ports.IOUService
	ReconcileSvc   ports.ReconcileService
	AuthSvc        ports.AuthService
	TokenSvc       ports.TokenService
	RateLimiter    middleware.Limiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	AllowedOrigins []string           // empty = no CORS headers, "*" = any origin
	Metrics        *metrics.Metrics   // nil = no /metrics endpoint
	OpenAPIDoc     []byte             // empty = no /swagger routes
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	if len(deps.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(deps.AllowedOrigins))
	}
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	if len(deps.OpenAPIDoc) > 0 {
		swagger := r.Group("/swagger")
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", OpenAPIDocument(deps.OpenAPIDoc))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/admin-token", rl("admin_login"), authHandler.AdminToken)

	iouHandler := NewIOUHandler(deps.IOUSvc)
	reconcileHandler := NewReconcileHandler(deps.ReconcileSvc)

	offline := v1.Group("/offline")
	{
		offline.POST("/create-iou", rl("create_iou"), iouHandler.Create)
		offline.GET("/iou/:id", rl("read"), iouHandler.Get)
		offline.GET("/merchant/:address/ious", rl("read"), iouHandler.ListByMerchant)
		offline.POST("/bulk-sync", rl("bulk_sync"), reconcileHandler.BulkSync)
		offline.GET("/bulk-sync/:batchId", rl("read"), reconcileHandler.Report)
		offline.POST("/mark-settled", rl("bulk_sync"), iouHandler.MarkSettled)
	}

	admin := offline.Group("", middleware.JWTAuth(deps.TokenSvc, ports.RoleAdmin), rl("admin"))
	{
		admin.GET("/all-ious", iouHandler.ListAll)
		admin.DELETE("/iou/:id", iouHandler.Delete)
		admin.POST("/sweep", reconcileHandler.Sweep)
	}

	return r
}

// corsMiddleware lets merchant browsers on the listed origins call the API.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{middleware.HeaderRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
