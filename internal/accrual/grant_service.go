package accrual

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kevi308111/annualLeaveForm/internal/employee"
	"github.com/kevi308111/annualLeaveForm/internal/events"
	"github.com/kevi308111/annualLeaveForm/internal/messaging/kafka"
	"github.com/kevi308111/annualLeaveForm/internal/seniority"
	"github.com/kevi308111/annualLeaveForm/internal/shared/contextutil"
)

//go:generate mockgen -source=grant_service.go -destination=mock/grant_service_mock.go -package=mock

type Service interface {
	Grant(ctx context.Context) (GrantResponse, error)
}

type service struct {
	db           *sql.DB
	employeeRepo employee.Repository
	outbox       kafka.OutboxRepository
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(
	db *sql.DB,
	employeeRepo employee.Repository,
	outboxRepo kafka.OutboxRepository,
	logger ...*zap.Logger,
) Service {
	return NewServiceWithClock(db, employeeRepo, outboxRepo, time.Now, logger...)
}

func NewServiceWithClock(
	db *sql.DB,
	employeeRepo employee.Repository,
	outboxRepo kafka.OutboxRepository,
	now func() time.Time,
	logger ...*zap.Logger,
) Service {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("accrual.service")
	}
	return &service{
		db:           db,
		employeeRepo: employeeRepo,
		outbox:       outboxRepo,
		logger:       l,
		now:          now,
	}
}

// Grant walks every employee and applies the statutory entitlement for
// any employee whose accrual cycle has started since the last grant.
// The eligibility rule makes the run idempotent within a cycle: once
// the grant date moves past the cycle start, re-running the batch on
// the same day applies nothing.
func (s *service) Grant(ctx context.Context) (GrantResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	today := seniority.DateOf(s.now())

	employees, err := s.employeeRepo.FindAll(ctx)
	if err != nil {
		s.logger.Error("grant list employees failed", zap.String("request_id", rid), zap.Error(err))
		return GrantResponse{}, err
	}

	resp := GrantResponse{
		GrantDate: today.Format("2006-01-02"),
		Lines:     make([]GrantLine, 0, len(employees)),
	}
	grants := make([]employee.BalanceGrant, 0, len(employees))

	for i := range employees {
		emp := &employees[i]
		details := seniority.Calculate(emp.HireDate, emp.SeniorityCorrectionDays, today)

		line := GrantLine{
			EmployeeID:    emp.ID.String(),
			EmployeeName:  emp.Name,
			BalanceBefore: emp.RemainingAnnualLeave,
			BalanceAfter:  emp.RemainingAnnualLeave,
			CycleStart:    details.CycleStart.Format("2006-01-02"),
		}

		if eligible(details.CycleStart, emp.LastAnnualLeaveGrantDate, today) {
			entitlement := seniority.Entitlement(details.Years, details.DaysAfterCorrection)
			if entitlement > 0 {
				line.Granted = true
				line.EntitlementDays = entitlement
				line.BalanceAfter = emp.RemainingAnnualLeave.Add(decimal.NewFromInt(int64(entitlement)))
				grants = append(grants, employee.BalanceGrant{
					EmployeeID: emp.ID,
					Remaining:  line.BalanceAfter,
					GrantDate:  today,
				})
			}
		}

		resp.Lines = append(resp.Lines, line)
	}

	resp.EmployeesChecked = len(employees)
	resp.EmployeesUpdated = len(grants)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("grant begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return GrantResponse{}, err
	}
	defer tx.Rollback()

	if err := s.employeeRepo.WithTx(tx).BulkApplyGrants(ctx, grants); err != nil {
		s.logger.Error("grant bulk apply failed", zap.String("request_id", rid), zap.Error(err))
		return GrantResponse{}, err
	}

	if s.outbox != nil {
		event := events.AnnualLeaveGrantedEvent{
			EventType:        events.AnnualLeaveGrantedEventType,
			GrantDate:        resp.GrantDate,
			EmployeesChecked: resp.EmployeesChecked,
			EmployeesUpdated: resp.EmployeesUpdated,
			OccurredAt:       s.now().UTC(),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("marshal grant event failed", zap.String("request_id", rid), zap.Error(err))
			return GrantResponse{}, err
		}
		if err := s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
			ID:            uuid.NewString(),
			RequestID:     rid,
			AggregateType: "annual_leave_grant",
			AggregateID:   resp.GrantDate,
			EventType:     event.EventType,
			Topic:         events.AnnualLeaveGrantTopic,
			Payload:       payload,
			Status:        kafka.OutboxStatusPending,
		}); err != nil {
			s.logger.Error("grant outbox persist failed", zap.String("request_id", rid), zap.Error(err))
			return GrantResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("grant commit failed", zap.String("request_id", rid), zap.Error(err))
		return GrantResponse{}, err
	}

	s.logger.Info("annual leave grant run finished",
		zap.String("request_id", rid),
		zap.String("grant_date", resp.GrantDate),
		zap.Int("employees_checked", resp.EmployeesChecked),
		zap.Int("employees_updated", resp.EmployeesUpdated),
	)
	return resp, nil
}

// eligible reports whether a new accrual cycle has started since the
// employee's last grant.
func eligible(cycleStart time.Time, lastGrant *time.Time, today time.Time) bool {
	if cycleStart.After(today) {
		return false
	}
	if lastGrant == nil {
		return true
	}
	return seniority.DateOf(*lastGrant).Before(cycleStart)
}
