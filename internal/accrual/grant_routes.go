package accrual

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kevi308111/annualLeaveForm/internal/middleware"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
	logger *zap.Logger,
	rdb ...*redis.Client,
) {
	var redisClient *redis.Client
	if len(rdb) > 0 {
		redisClient = rdb[0]
	}

	accruals := r.Group("/annual-leave")
	accruals.Use(middleware.AuthMiddleware())
	accruals.Use(middleware.ExtractUserID())
	accruals.Use(middleware.ContextLogger(logger))
	{
		if redisClient != nil {
			accruals.POST(
				"/grant",
				middleware.Idempotency(redisClient),
				middleware.RBACAuthorize(rbacService, "accrual", "grant"),
				handler.Grant,
			)
		} else {
			accruals.POST("/grant", middleware.RBACAuthorize(rbacService, "accrual", "grant"), handler.Grant)
		}
	}
}
