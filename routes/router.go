package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/isyourdayok/backend/config"
	"github.com/isyourdayok/backend/controllers"
	"github.com/isyourdayok/backend/metrics"
	"github.com/isyourdayok/backend/middleware"
	"github.com/isyourdayok/backend/services"
	"github.com/isyourdayok/backend/utils"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Users      *services.UserService
	Activities *services.ActivityService
	Stats      *services.StatsService
	Mints      *services.MintCoordinator
	Reconciler *services.Reconciler
	Authz      *services.Authorizer
	Chat       *services.ChatService
	Nonces     *utils.NonceStore
	Revoked    *utils.Revocations
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, d Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		r.Use(utils.RecoveryWithZap(utils.L(), true))
	}
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "minting": d.Mints.Enabled()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authController := controllers.NewAuthController(d.Users, d.Authz, d.Nonces, d.Revoked, time.Duration(cfg.JWTTTLHours)*time.Hour)
	activityController := controllers.NewActivityController(d.Activities)
	statsController := controllers.NewStatsController(d.Users, d.Stats)
	achievementController := controllers.NewAchievementController(d.Users, d.Mints, d.Reconciler, cfg.BaseURL)
	chatController := controllers.NewChatController(d.Chat)
	adminController := controllers.NewAdminController(d.Users, d.Authz, d.Reconciler)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	r.GET("/nft-metadata/:file", achievementController.Metadata)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.POST("/nonce", authController.Nonce)
	authGroup.POST("/wallet", authController.WalletLogin)
	authGroup.POST("/logout", middleware.AuthRequired(d.Revoked), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(d.Revoked), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(d.Revoked), authController.UpdateProfile)

	api.GET("/achievement-types", achievementController.Types)
	api.GET("/chat", chatController.List)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(d.Revoked), limiter.Middleware())

	protected.POST("/journals", activityController.CreateJournal)
	protected.GET("/journals", activityController.ListJournals)
	protected.POST("/moods", activityController.CreateMood)
	protected.GET("/moods", activityController.ListMoods)
	protected.POST("/meditations", activityController.CreateMeditation)
	protected.PATCH("/meditations/:id", activityController.CompleteMeditation)
	protected.GET("/meditations", activityController.ListMeditations)
	protected.GET("/daily-activity", activityController.DailyActivity)

	protected.GET("/stats/me", statsController.Me)

	protected.GET("/achievements", achievementController.List)
	protected.POST("/achievements/mint", achievementController.Mint)

	protected.POST("/chat", middleware.RequireCapability(d.Authz, services.CapChatBroadcast), chatController.Post)
	protected.DELETE("/chat/:id", middleware.RequireCapability(d.Authz, services.CapChatModerate), chatController.Delete)

	admin := protected.Group("/admin")
	admin.GET("/users", middleware.RequireCapability(d.Authz, services.CapUsersList), adminController.ListUsers)
	admin.POST("/reconcile", middleware.RequireCapability(d.Authz, services.CapMintsReconcile), adminController.Reconcile)
	admin.POST("/roles", middleware.RequireCapability(d.Authz, services.CapRolesManage), adminController.GrantRole)
	admin.DELETE("/roles/:address/:role", middleware.RequireCapability(d.Authz, services.CapRolesManage), adminController.RevokeRole)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
