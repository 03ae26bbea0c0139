// Package server assembles the HTTP API.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"senfret/internal/auth"
	"senfret/internal/devis"
	"senfret/internal/handlers"
	"senfret/internal/metrics"
	"senfret/internal/middleware"
	"senfret/internal/models"
	"senfret/internal/moderation"
	"senfret/internal/notify"
	"senfret/internal/reviews"
	"senfret/internal/store"
	"senfret/internal/uploads"
)

const defaultKeepAlive = 25 * time.Second

type Deps struct {
	Auth          *auth.Service
	Devis         *devis.Service
	Reviews       *reviews.Service
	Moderation    *moderation.Service
	Notifications store.NotificationStore
	Hub           *notify.Hub
	Files         *uploads.Storage

	// RateLimiter is optional.
	RateLimiter *middleware.RateLimiter
	// KeepAlive is the ping period of the notification stream.
	KeepAlive time.Duration
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(handlers.Recovery(), middleware.RequestID(), middleware.AccessLog(), metrics.Middleware())
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Middleware())
	}
	r.NoRoute(handlers.NoRoute())

	keepAlive := d.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static("/uploads", d.Files.Root)

	protect := middleware.Protect(d.Auth)
	clientOnly := middleware.Authorize(models.AccountUser)
	translataireOnly := middleware.Authorize(models.AccountTranslataire)
	adminOnly := middleware.Authorize(models.AccountAdmin)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register/client", handlers.RegisterClient(d.Auth))
		authGroup.POST("/register/translataire", handlers.RegisterTranslataire(d.Auth))
		authGroup.GET("/verify/:token", handlers.VerifyEmail(d.Auth))
		authGroup.POST("/login", handlers.Login(d.Auth))
		authGroup.POST("/google", handlers.GoogleLogin(d.Auth))
		authGroup.POST("/forgot-password", handlers.ForgotPassword(d.Auth))
		authGroup.PUT("/reset-password/:token", handlers.ResetPassword(d.Auth))
		authGroup.POST("/logout", protect, handlers.Logout(d.Auth))
		authGroup.GET("/me", protect, handlers.Me())
	}

	users := api.Group("/users", protect, clientOnly)
	{
		users.POST("/demande-devis", handlers.RequestDevis(d.Devis, d.Files))
		users.POST("/demande-devis/:id", handlers.RequestDevis(d.Devis, d.Files))
		users.GET("/mes-devis", handlers.ListClientDevis(d.Devis))
		users.GET("/devis/:id", handlers.GetClientDevis(d.Devis))
		users.PUT("/devis/:id", handlers.UpdateClientDevis(d.Devis, d.Files))
		users.DELETE("/devis/:id", handlers.DeleteClientDevis(d.Devis))
		users.PUT("/devis/:id/cancel", handlers.CancelClientDevis(d.Devis))
	}

	translataires := api.Group("/translataires")
	{
		translataires.GET("", handlers.ListPublicTranslataires(d.Moderation))
		translataires.GET("/:id", handlers.GetPublicTranslataire(d.Moderation))

		own := translataires.Group("/devis", protect, translataireOnly, middleware.RequireApproved())
		own.GET("", handlers.ListTranslataireDevis(d.Devis))
		own.GET("/:id", handlers.GetTranslataireDevis(d.Devis))
		own.PUT("/:id", handlers.RespondDevis(d.Devis, d.Files))
	}

	reviewGroup := api.Group("/reviews")
	{
		reviewGroup.GET("/translataire/:id", handlers.ListTranslataireReviews(d.Reviews))
		reviewGroup.POST("", protect, clientOnly, handlers.CreateReview(d.Reviews, d.Files))
		reviewGroup.GET("/me", protect, clientOnly, handlers.ListMyReviews(d.Reviews))
		reviewGroup.PUT("/:id", protect, clientOnly, handlers.UpdateReview(d.Reviews, d.Files))
		reviewGroup.DELETE("/:id", protect, middleware.Authorize(models.AccountUser, models.AccountAdmin), handlers.DeleteReview(d.Reviews))
	}

	api.GET("/notifications/stream", middleware.ProtectStream(d.Auth), handlers.StreamNotifications(d.Hub, keepAlive))
	notifications := api.Group("/notifications", protect)
	{
		notifications.GET("", handlers.ListNotifications(d.Notifications))
		notifications.GET("/unread-count", handlers.UnreadNotificationCount(d.Notifications))
		notifications.POST("/read-all", handlers.MarkAllNotificationsRead(d.Notifications))
		notifications.POST("/:id/read", handlers.MarkNotificationRead(d.Notifications))
	}

	admin := api.Group("/admin", protect, adminOnly)
	{
		for _, t := range []models.AccountType{models.AccountUser, models.AccountTranslataire} {
			accounts := admin.Group("/" + string(t) + "s")
			accounts.GET("", handlers.ListAccounts(d.Moderation, t))
			accounts.GET("/:id", handlers.GetAccount(d.Moderation, t))
			accounts.PUT("/:id/approve", handlers.ApproveAccount(d.Moderation, t))
			accounts.PUT("/:id/block", handlers.ToggleBlockAccount(d.Moderation, t))
			accounts.DELETE("/:id", handlers.DeleteAccount(d.Moderation, t))
			accounts.POST("/bulk/:action", handlers.BulkAccounts(d.Moderation, t))
		}

		admin.GET("/admins", handlers.ListAdmins(d.Moderation))
		admin.POST("/admins", handlers.CreateAdmin(d.Moderation))
		admin.DELETE("/admins/:id", handlers.DeleteAdmin(d.Moderation))

		admin.GET("/devis", handlers.AdminListDevis(d.Devis))
		admin.GET("/devis/:id", handlers.AdminGetDevis(d.Devis))
		admin.PUT("/devis/:id/archive", handlers.AdminArchiveDevis(d.Devis))
		admin.DELETE("/devis/:id", handlers.AdminDeleteDevis(d.Devis))

		admin.PUT("/reviews/:id/approval", handlers.SetReviewApproval(d.Reviews))
		admin.GET("/statistics", handlers.Statistics(d.Moderation))
	}

	return r
}
