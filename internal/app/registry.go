package app

import (
	"database/sql"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kevi308111/annualLeaveForm/internal/accrual"
	"github.com/kevi308111/annualLeaveForm/internal/auth"
	"github.com/kevi308111/annualLeaveForm/internal/employee"
	"github.com/kevi308111/annualLeaveForm/internal/leave"
	"github.com/kevi308111/annualLeaveForm/internal/messaging/kafka"
	"github.com/kevi308111/annualLeaveForm/internal/rbac"
	"github.com/kevi308111/annualLeaveForm/internal/rbac/infra"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
) error {
	// --- Repositories ---
	rbacRepo := rbac.NewRepository(gormDB)
	employeeRepo := employee.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer(filepath.Join("config", "rbac_model.conf"))
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(rbacRepo, enforcer)
	if err := rbacService.LoadPolicy(); err != nil {
		return err
	}

	// --- Services ---
	authService := auth.NewService(employeeRepo)
	employeeService := employee.NewService(db, employeeRepo, rdb)
	leaveService := leave.NewService(db, leaveRepo, employeeRepo, outboxRepo, rdb)
	accrualService := accrual.NewService(db, employeeRepo, outboxRepo)

	// --- Handlers ---
	authHandler := auth.NewHandler(authService)
	employeeHandler := employee.NewHandler(employeeService)
	leaveHandler := leave.NewHandler(leaveService)
	accrualHandler := accrual.NewHandler(accrualService, rdb)

	// --- Routes Registration ---
	logger := zap.L()
	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, authHandler, logger)
		employee.RegisterRoutes(api, employeeHandler, rbacService, logger)
		leave.RegisterRoutes(api, leaveHandler, rbacService, logger)
		accrual.RegisterRoutes(api, accrualHandler, rbacService, logger, rdb)
	}

	return nil
}
