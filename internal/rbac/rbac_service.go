package rbac

import (
	"sync"

	"github.com/casbin/casbin/v2"
	"go.uber.org/zap"

	"github.com/kevi308111/annualLeaveForm/internal/domain"
	"github.com/kevi308111/annualLeaveForm/internal/employee"
)

// rolePolicies is the fixed permission table. Roles are static
// (admin/employee on the employee record), so only the grouping policy
// comes from the database.
var rolePolicies = [][3]string{
	{employee.RoleAdmin, "employee", "read"},
	{employee.RoleAdmin, "employee", "create"},
	{employee.RoleAdmin, "employee", "update"},
	{employee.RoleAdmin, "employee", "adjust"},
	{employee.RoleAdmin, "employee", "delete"},
	{employee.RoleAdmin, "leave", "read"},
	{employee.RoleAdmin, "leave", "create"},
	{employee.RoleAdmin, "leave", "approve"},
	{employee.RoleAdmin, "leave", "delete"},
	{employee.RoleAdmin, "accrual", "grant"},

	{employee.RoleEmployee, "employee", "read"},
	{employee.RoleEmployee, "leave", "read"},
	{employee.RoleEmployee, "leave", "create"},
}

//go:generate mockgen -source=rbac_service.go -destination=mock/rbac_service_mock.go -package=mock
type Service interface {
	LoadPolicy() error
	Enforce(req domain.EnforceRequest) (bool, error)
}

type service struct {
	repo     Repository
	enforcer *casbin.Enforcer
	logger   *zap.Logger
	mu       sync.Mutex
}

func NewService(repo Repository, enforcer *casbin.Enforcer, logger ...*zap.Logger) Service {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("rbac.service")
	}
	return &service{
		repo:     repo,
		enforcer: enforcer,
		logger:   l,
	}
}

func (s *service) LoadPolicy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadPolicyUnlocked()
}

func (s *service) loadPolicyUnlocked() error {
	s.enforcer.ClearPolicy()

	employeeRoles, err := s.repo.GetEmployeeRoles()
	if err != nil {
		return err
	}
	s.logger.Debug("rbac policy loaded", zap.Int("employee_roles", len(employeeRoles)))

	for _, er := range employeeRoles {
		if _, err := s.enforcer.AddGroupingPolicy(er.EmployeeID, er.Role); err != nil {
			return err
		}
	}

	for _, p := range rolePolicies {
		if _, err := s.enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return err
		}
	}

	return nil
}

// Enforce reloads the grouping policy before every decision so role
// changes on the employee record take effect without a restart.
func (s *service) Enforce(req domain.EnforceRequest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadPolicyUnlocked(); err != nil {
		return false, err
	}

	allowed, err := s.enforcer.Enforce(req.EmployeeID, req.Resource, req.Action)
	if err != nil {
		s.logger.Error("rbac enforce failed",
			zap.String("employee_id", req.EmployeeID),
			zap.String("resource", req.Resource),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		return false, err
	}

	s.logger.Debug("rbac enforce result",
		zap.String("employee_id", req.EmployeeID),
		zap.String("resource", req.Resource),
		zap.String("action", req.Action),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}
