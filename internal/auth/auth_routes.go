package auth

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kevi308111/annualLeaveForm/internal/middleware"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, logger *zap.Logger) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", middleware.RateLimitByIP(0.08, 5), handler.Login)
		auth.POST("/refresh", handler.RefreshToken)
		auth.POST("/logout", middleware.RateLimitByUser(2, 5), handler.Logout)
	}

	me := r.Group("/auth")
	me.Use(middleware.AuthMiddleware())
	me.Use(middleware.ExtractUserID())
	me.Use(middleware.ContextLogger(logger))
	{
		me.GET("/me", middleware.RateLimitByUser(2, 5), handler.Me)
		me.POST("/change-password", middleware.RateLimitByUser(2, 5), handler.ChangePassword)
	}
}
