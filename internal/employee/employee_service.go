package employee

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	employeeerrors "github.com/kevi308111/annualLeaveForm/internal/employee/errors"
	"github.com/kevi308111/annualLeaveForm/internal/seniority"
	"github.com/kevi308111/annualLeaveForm/internal/shared/contextutil"
)

const (
	OptionsCacheKey = "employees:options"
	optionsCacheTTL = 5 * time.Minute

	// Password an admin reset falls back to. Users are expected to
	// change it on first login.
	defaultPassword = "123456"
)

//go:generate mockgen -source=employee_service.go -destination=mock/employee_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, req CreateEmployeeRequest) (EmployeeResponse, error)
	GetAll(ctx context.Context) ([]EmployeeResponse, error)
	GetOptions(ctx context.Context) ([]EmployeeOption, error)
	GetByID(ctx context.Context, id string) (EmployeeResponse, error)
	Update(ctx context.Context, id string, req UpdateEmployeeRequest) (EmployeeResponse, error)
	AdjustBalance(ctx context.Context, id string, req AdjustBalanceRequest) (AdjustBalanceResponse, error)
	ResetPassword(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type service struct {
	db     *sql.DB
	repo   Repository
	rdb    *redis.Client
	sf     *singleflight.Group
	logger *zap.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, repo Repository, rdb *redis.Client, logger ...*zap.Logger) Service {
	return NewServiceWithClock(db, repo, rdb, time.Now, logger...)
}

// NewServiceWithClock lets callers pin the reference date used for
// seniority derivation.
func NewServiceWithClock(db *sql.DB, repo Repository, rdb *redis.Client, now func() time.Time, logger ...*zap.Logger) Service {
	l := zap.L().Named("employee.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("employee.service")
	}
	return &service{
		db:     db,
		repo:   repo,
		rdb:    rdb,
		sf:     &singleflight.Group{},
		logger: l,
		now:    now,
	}
}

func (s *service) Create(ctx context.Context, req CreateEmployeeRequest) (EmployeeResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("create employee requested",
		zap.String("request_id", rid),
		zap.String("username", req.Username),
		zap.String("hire_date", req.HireDate),
	)

	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		s.logger.Warn("create employee invalid hire_date",
			zap.String("hire_date", req.HireDate),
			zap.Error(err),
		)
		return EmployeeResponse{}, employeeerrors.ErrInvalidHireDate
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("create employee hash password failed", zap.Error(err))
		return EmployeeResponse{}, err
	}

	role := req.Role
	if role == "" {
		role = RoleEmployee
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("create employee begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return EmployeeResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	hireDate = seniority.DateOf(hireDate)
	// LastAnnualLeaveGrantDate stays unset so the first grant run can
	// apply the half-year entitlement once 180 corrected days pass.
	e := &Employee{
		Username:                req.Username,
		PasswordHash:            string(hash),
		Name:                    req.Name,
		Role:                    role,
		HireDate:                hireDate,
		SeniorityCorrectionDays: req.SeniorityCorrectionDays,
		RemainingAnnualLeave:    decimal.Zero,
	}

	if err := qtx.Create(ctx, e); err != nil {
		s.logger.Error("create employee persist failed", zap.Error(err))
		return EmployeeResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("create employee commit failed", zap.Error(err))
		return EmployeeResponse{}, err
	}

	s.invalidateOptionsCache(ctx)
	s.logger.Info("create employee success",
		zap.String("employee_id", e.ID.String()),
		zap.String("username", e.Username),
	)

	return s.mapToResponse(*e), nil
}

func (s *service) GetAll(ctx context.Context) ([]EmployeeResponse, error) {
	employees, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]EmployeeResponse, len(employees))
	for i, e := range employees {
		resp[i] = s.mapToResponse(e)
	}
	return resp, nil
}

// GetOptions serves the id/name picker list from Redis, with
// singleflight collapsing concurrent fills after an invalidation.
func (s *service) GetOptions(ctx context.Context) ([]EmployeeOption, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, OptionsCacheKey).Result(); err == nil {
			var options []EmployeeOption
			if err := json.Unmarshal([]byte(cached), &options); err == nil {
				return options, nil
			}
		}
	}

	v, err, _ := s.sf.Do(OptionsCacheKey, func() (any, error) {
		employees, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}

		options := make([]EmployeeOption, len(employees))
		for i, e := range employees {
			options[i] = EmployeeOption{ID: e.ID.String(), Name: e.Name}
		}

		if s.rdb != nil {
			if payload, err := json.Marshal(options); err == nil {
				if err := s.rdb.Set(ctx, OptionsCacheKey, payload, optionsCacheTTL).Err(); err != nil {
					s.logger.Warn("cache employee options failed", zap.Error(err))
				}
			}
		}
		return options, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]EmployeeOption), nil
}

func (s *service) GetByID(ctx context.Context, id string) (EmployeeResponse, error) {
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EmployeeResponse{}, employeeerrors.ErrEmployeeNotFound
		}
		return EmployeeResponse{}, err
	}
	return s.mapToResponse(*e), nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateEmployeeRequest) (EmployeeResponse, error) {
	s.logger.Debug("update employee requested",
		zap.String("employee_id", id),
		zap.String("hire_date", req.HireDate),
	)

	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		return EmployeeResponse{}, employeeerrors.ErrInvalidHireDate
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("update employee begin tx failed", zap.Error(err))
		return EmployeeResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	e, err := qtx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EmployeeResponse{}, employeeerrors.ErrEmployeeNotFound
		}
		return EmployeeResponse{}, err
	}

	e.Name = req.Name
	e.Role = req.Role
	e.HireDate = seniority.DateOf(hireDate)
	e.SeniorityCorrectionDays = req.SeniorityCorrectionDays

	if err := qtx.Update(ctx, e); err != nil {
		s.logger.Error("update employee persist failed", zap.String("employee_id", id), zap.Error(err))
		return EmployeeResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("update employee commit failed", zap.String("employee_id", id), zap.Error(err))
		return EmployeeResponse{}, err
	}

	s.invalidateOptionsCache(ctx)
	s.logger.Info("update employee success", zap.String("employee_id", id))

	return s.mapToResponse(*e), nil
}

// AdjustBalance applies a signed manual correction to the remaining
// annual leave. No bounds are enforced; the balance may go negative.
// The usage aggregate and the request records are untouched.
func (s *service) AdjustBalance(ctx context.Context, id string, req AdjustBalanceRequest) (AdjustBalanceResponse, error) {
	s.logger.Debug("adjust balance requested",
		zap.String("employee_id", id),
		zap.String("amount", req.Amount),
		zap.String("direction", req.Direction),
	)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.logger.Warn("adjust balance invalid amount", zap.String("amount", req.Amount))
		return AdjustBalanceResponse{}, employeeerrors.ErrInvalidAdjustmentAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("adjust balance begin tx failed", zap.Error(err))
		return AdjustBalanceResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	e, err := qtx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AdjustBalanceResponse{}, employeeerrors.ErrEmployeeNotFound
		}
		return AdjustBalanceResponse{}, err
	}

	before := e.RemainingAnnualLeave
	var after decimal.Decimal
	if req.Direction == "add" {
		after = before.Add(amount)
	} else {
		after = before.Sub(amount)
	}

	if err := qtx.UpdateBalance(ctx, id, after); err != nil {
		s.logger.Error("adjust balance persist failed", zap.String("employee_id", id), zap.Error(err))
		return AdjustBalanceResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("adjust balance commit failed", zap.String("employee_id", id), zap.Error(err))
		return AdjustBalanceResponse{}, err
	}

	s.logger.Info("adjust balance success",
		zap.String("employee_id", id),
		zap.String("before", before.String()),
		zap.String("after", after.String()),
	)

	return AdjustBalanceResponse{EmployeeID: id, Before: before, After: after}, nil
}

func (s *service) ResetPassword(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return employeeerrors.ErrEmployeeNotFound
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePassword(ctx, id, string(hash)); err != nil {
		s.logger.Error("reset password persist failed", zap.String("employee_id", id), zap.Error(err))
		return err
	}

	s.logger.Info("reset password success", zap.String("employee_id", id))
	return nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	if err := qtx.Delete(ctx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.invalidateOptionsCache(ctx)
	return nil
}

func (s *service) invalidateOptionsCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, OptionsCacheKey).Err(); err != nil {
		s.logger.Warn("invalidate employee options cache failed", zap.Error(err))
	}
}

func (s *service) mapToResponse(e Employee) EmployeeResponse {
	details := seniority.Calculate(e.HireDate, e.SeniorityCorrectionDays, s.now())

	resp := EmployeeResponse{
		ID:                      e.ID.String(),
		Username:                e.Username,
		Name:                    e.Name,
		Role:                    e.Role,
		HireDate:                e.HireDate.Format("2006-01-02"),
		SeniorityCorrectionDays: e.SeniorityCorrectionDays,
		RemainingAnnualLeave:    e.RemainingAnnualLeave,
		Seniority:               details,
		CurrentEntitlement:      seniority.Entitlement(details.Years, details.DaysAfterCorrection),
	}
	if e.LastAnnualLeaveGrantDate != nil {
		v := e.LastAnnualLeaveGrantDate.Format("2006-01-02")
		resp.LastAnnualLeaveGrantDate = &v
	}
	return resp
}
