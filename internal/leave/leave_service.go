package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kevi308111/annualLeaveForm/internal/employee"
	"github.com/kevi308111/annualLeaveForm/internal/events"
	leaveerrors "github.com/kevi308111/annualLeaveForm/internal/leave/errors"
	"github.com/kevi308111/annualLeaveForm/internal/messaging/kafka"
	"github.com/kevi308111/annualLeaveForm/internal/seniority"
	"github.com/kevi308111/annualLeaveForm/internal/shared/contextutil"
)

const usageCacheTTL = 5 * time.Minute

func GetUsageCacheKey(employeeID string) string {
	return fmt.Sprintf("leave:usage:%s", employeeID)
}

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock

type Service interface {
	Create(ctx context.Context, submittedBy string, req CreateLeaveRequest) (LeaveResponse, error)
	GetAll(ctx context.Context, f Filter) ([]LeaveResponse, error)
	GetByID(ctx context.Context, id string) (LeaveResponse, error)
	GetByEmployee(ctx context.Context, employeeID string) ([]LeaveResponse, error)
	Approve(ctx context.Context, actorID, id string) (ApprovalResponse, error)
	Reject(ctx context.Context, actorID, id string) (LeaveResponse, error)
	Delete(ctx context.Context, id string) (DeleteResponse, error)
	Usage(ctx context.Context, employeeID string) (UsageResponse, error)
}

type service struct {
	db           *sql.DB
	repo         Repository
	employeeRepo employee.Repository
	outbox       kafka.OutboxRepository
	rdb          *redis.Client
	sf           *singleflight.Group
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(
	db *sql.DB,
	repo Repository,
	employeeRepo employee.Repository,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	logger ...*zap.Logger,
) Service {
	return NewServiceWithClock(db, repo, employeeRepo, outboxRepo, rdb, time.Now, logger...)
}

// NewServiceWithClock lets tests pin "today", which decides both the
// accrual cycle window and whether an approval deducts.
func NewServiceWithClock(
	db *sql.DB,
	repo Repository,
	employeeRepo employee.Repository,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	now func() time.Time,
	logger ...*zap.Logger,
) Service {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:           db,
		repo:         repo,
		employeeRepo: employeeRepo,
		outbox:       outboxRepo,
		rdb:          rdb,
		sf:           &singleflight.Group{},
		logger:       l,
		now:          now,
	}
}

func (s *service) Create(ctx context.Context, submittedBy string, req CreateLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("create leave requested",
		zap.String("request_id", rid),
		zap.String("employee_id", req.EmployeeID),
		zap.String("leave_type", req.LeaveType),
	)

	employeeID, err := uuid.Parse(req.EmployeeID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidEmployeeID
	}
	actorID, err := uuid.Parse(submittedBy)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidActorID
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateFormat
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateFormat
	}
	if endDate.Before(startDate) {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}
	if req.Duration <= 0 {
		return LeaveResponse{}, leaveerrors.ErrInvalidDuration
	}

	unit := req.DurationUnit
	if unit == "" {
		unit = UnitDay
		if req.IsHourly {
			unit = UnitHour
		}
	}
	if req.IsHourly {
		if unit != UnitHour {
			return LeaveResponse{}, leaveerrors.ErrHourlyUnitMismatch
		}
		if req.StartTime == nil || req.EndTime == nil {
			return LeaveResponse{}, leaveerrors.ErrTimeRangeRequired
		}
		for _, t := range []string{*req.StartTime, *req.EndTime} {
			if _, err := time.Parse("15:04", t); err != nil {
				return LeaveResponse{}, leaveerrors.ErrInvalidTimeFormat
			}
		}
	}
	if req.LeaveType == TypeOther && req.OtherLabel == "" {
		return LeaveResponse{}, leaveerrors.ErrOtherLabelRequired
	}

	if _, err := s.employeeRepo.FindByID(ctx, employeeID.String()); err != nil {
		s.logger.Warn("create leave employee lookup failed",
			zap.String("employee_id", employeeID.String()),
			zap.Error(err),
		)
		return LeaveResponse{}, leaveerrors.ErrEmployeeNotFound
	}

	l := &LeaveRequest{
		ID:           uuid.New(),
		EmployeeID:   employeeID,
		SubmittedBy:  actorID,
		LeaveType:    req.LeaveType,
		OtherLabel:   req.OtherLabel,
		StartDate:    startDate,
		EndDate:      endDate,
		IsHourly:     req.IsHourly,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Duration:     decimal.NewFromFloat(req.Duration),
		DurationUnit: unit,
		Reason:       req.Reason,
		Remarks:      req.Remarks,
		Status:       StatusPending,
	}

	if err := s.repo.Create(ctx, l); err != nil {
		s.logger.Error("create leave persist failed", zap.String("request_id", rid), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	s.logger.Info("create leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.String("employee_id", l.EmployeeID.String()),
	)
	return mapToResponse(l), nil
}

func (s *service) GetAll(ctx context.Context, f Filter) ([]LeaveResponse, error) {
	requests, err := s.repo.FindAll(ctx, f)
	if err != nil {
		s.logger.Error("list leave failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}

	responses := make([]LeaveResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, mapToResponse(&requests[i]))
	}
	return responses, nil
}

func (s *service) GetByID(ctx context.Context, id string) (LeaveResponse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(l), nil
}

func (s *service) GetByEmployee(ctx context.Context, employeeID string) ([]LeaveResponse, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return nil, leaveerrors.ErrInvalidEmployeeID
	}
	requests, err := s.repo.FindByEmployee(ctx, employeeID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	responses := make([]LeaveResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, mapToResponse(&requests[i]))
	}
	return responses, nil
}

// Approve marks a pending request approved and, for annual leave that
// starts inside the current accrual cycle, deducts the day-equivalent
// duration from the employee's remaining balance. Annual leave that
// starts before the cycle is approved without touching the ledger and
// recorded as deducted=false so deletion knows not to credit back.
func (s *service) Approve(ctx context.Context, actorID, id string) (ApprovalResponse, error) {
	rid := contextutil.GetRequestID(ctx)

	actor, err := uuid.Parse(actorID)
	if err != nil {
		return ApprovalResponse{}, leaveerrors.ErrInvalidActorID
	}
	if _, err := uuid.Parse(id); err != nil {
		return ApprovalResponse{}, leaveerrors.ErrLeaveNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("approve leave begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return ApprovalResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		return ApprovalResponse{}, mapRepositoryError(err)
	}
	if l.Status != StatusPending {
		return ApprovalResponse{}, leaveerrors.ErrInvalidStatusTransition
	}

	resp := ApprovalResponse{Deducted: false}
	deducted := false
	var amount decimal.Decimal

	if l.LeaveType == TypeAnnual {
		emp, err := s.employeeRepo.FindByID(ctx, l.EmployeeID.String())
		if err != nil {
			return ApprovalResponse{}, leaveerrors.ErrEmployeeNotFound
		}

		details := seniority.Calculate(emp.HireDate, emp.SeniorityCorrectionDays, s.now())
		if l.StartDate.Before(details.CycleStart) {
			// Predates the cycle the balance was granted for, so
			// there is nothing to deduct it from.
			resp.Note = "leave starts before the current accrual cycle, balance untouched"
			s.logger.Info("approve leave without deduction",
				zap.String("leave_id", l.ID.String()),
				zap.String("start_date", l.StartDate.Format("2006-01-02")),
				zap.String("cycle_start", details.CycleStart.Format("2006-01-02")),
			)
		} else {
			amount = dayEquivalent(l)
			eqtx := s.employeeRepo.WithTx(tx)
			current, err := eqtx.GetBalance(ctx, l.EmployeeID.String())
			if err != nil {
				return ApprovalResponse{}, mapRepositoryError(err)
			}
			remaining := current.Sub(amount)
			if err := eqtx.UpdateBalance(ctx, l.EmployeeID.String(), remaining); err != nil {
				s.logger.Error("approve leave balance update failed",
					zap.String("leave_id", l.ID.String()),
					zap.Error(err),
				)
				return ApprovalResponse{}, mapRepositoryError(err)
			}
			deducted = true
			resp.Deducted = true
			resp.DeductionAmount = &amount
			resp.RemainingAfter = &remaining
		}
	}

	now := s.now().UTC()
	l.Status = StatusApproved
	l.ApprovedBy = &actor
	l.ApprovedAt = &now
	if l.LeaveType == TypeAnnual {
		l.DeductedFromAnnualLeave = &deducted
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("approve leave persist failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
		return ApprovalResponse{}, mapRepositoryError(err)
	}

	if err := s.queueDecisionEvent(ctx, tx, rid, l, events.LeaveApprovedEventType, deducted, amount, actorID); err != nil {
		return ApprovalResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("approve leave commit failed", zap.String("request_id", rid), zap.Error(err))
		return ApprovalResponse{}, err
	}

	s.invalidateUsageCache(ctx, l.EmployeeID.String())

	s.logger.Info("approve leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.Bool("deducted", deducted),
	)
	resp.Leave = mapToResponse(l)
	return resp, nil
}

func (s *service) Reject(ctx context.Context, actorID, id string) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)

	actor, err := uuid.Parse(actorID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidActorID
	}
	if _, err := uuid.Parse(id); err != nil {
		return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("reject leave begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if l.Status != StatusPending {
		return LeaveResponse{}, leaveerrors.ErrInvalidStatusTransition
	}

	now := s.now().UTC()
	l.Status = StatusRejected
	l.ApprovedBy = &actor
	l.ApprovedAt = &now

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("reject leave persist failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if err := s.queueDecisionEvent(ctx, tx, rid, l, events.LeaveRejectedEventType, false, decimal.Zero, actorID); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("reject leave commit failed", zap.String("request_id", rid), zap.Error(err))
		return LeaveResponse{}, err
	}

	s.logger.Info("reject leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
	)
	return mapToResponse(l), nil
}

// Delete removes a leave request. When the request was approved annual
// leave whose approval actually deducted (or predates the tracking
// flag), the day-equivalent duration is credited back first.
func (s *service) Delete(ctx context.Context, id string) (DeleteResponse, error) {
	rid := contextutil.GetRequestID(ctx)

	if _, err := uuid.Parse(id); err != nil {
		return DeleteResponse{}, leaveerrors.ErrLeaveNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("delete leave begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return DeleteResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		return DeleteResponse{}, mapRepositoryError(err)
	}

	resp := DeleteResponse{Deleted: true}

	creditBack := l.Status == StatusApproved &&
		l.LeaveType == TypeAnnual &&
		(l.DeductedFromAnnualLeave == nil || *l.DeductedFromAnnualLeave)
	if creditBack {
		amount := dayEquivalent(l)
		eqtx := s.employeeRepo.WithTx(tx)
		current, err := eqtx.GetBalance(ctx, l.EmployeeID.String())
		if err != nil {
			return DeleteResponse{}, mapRepositoryError(err)
		}
		remaining := current.Add(amount)
		if err := eqtx.UpdateBalance(ctx, l.EmployeeID.String(), remaining); err != nil {
			s.logger.Error("delete leave credit back failed",
				zap.String("leave_id", l.ID.String()),
				zap.Error(err),
			)
			return DeleteResponse{}, mapRepositoryError(err)
		}
		resp.CreditedBack = &amount
		resp.RemainingAfter = &remaining
	}

	if err := qtx.Delete(ctx, id); err != nil {
		s.logger.Error("delete leave persist failed", zap.String("leave_id", l.ID.String()), zap.Error(err))
		return DeleteResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("delete leave commit failed", zap.String("request_id", rid), zap.Error(err))
		return DeleteResponse{}, err
	}

	s.invalidateUsageCache(ctx, l.EmployeeID.String())

	s.logger.Info("delete leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.Bool("credited_back", creditBack),
	)
	return resp, nil
}

// Usage sums the approved annual leave whose start date falls inside
// the employee's current accrual cycle, in day equivalents. Display
// only: the remaining balance on the employee record stays the source
// of truth.
func (s *service) Usage(ctx context.Context, employeeID string) (UsageResponse, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return UsageResponse{}, leaveerrors.ErrInvalidEmployeeID
	}

	cacheKey := GetUsageCacheKey(employeeID)
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var resp UsageResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				return resp, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("usage cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (any, error) {
		resp, err := s.computeUsage(ctx, employeeID)
		if err != nil {
			return UsageResponse{}, err
		}
		if s.rdb != nil {
			if payload, err := json.Marshal(resp); err == nil {
				if err := s.rdb.Set(ctx, cacheKey, payload, usageCacheTTL).Err(); err != nil {
					s.logger.Warn("usage cache write failed", zap.String("key", cacheKey), zap.Error(err))
				}
			}
		}
		return resp, nil
	})
	if err != nil {
		return UsageResponse{}, err
	}
	return v.(UsageResponse), nil
}

func (s *service) computeUsage(ctx context.Context, employeeID string) (UsageResponse, error) {
	emp, err := s.employeeRepo.FindByID(ctx, employeeID)
	if err != nil {
		return UsageResponse{}, leaveerrors.ErrEmployeeNotFound
	}

	details := seniority.Calculate(emp.HireDate, emp.SeniorityCorrectionDays, s.now())
	cycleEnd := seniority.AddYears(details.CycleStart, 1)

	requests, err := s.repo.FindByEmployee(ctx, employeeID)
	if err != nil {
		return UsageResponse{}, mapRepositoryError(err)
	}

	used := decimal.Zero
	for i := range requests {
		l := &requests[i]
		if l.Status != StatusApproved || l.LeaveType != TypeAnnual {
			continue
		}
		if l.StartDate.Before(details.CycleStart) || !l.StartDate.Before(cycleEnd) {
			continue
		}
		used = used.Add(dayEquivalent(l))
	}

	return UsageResponse{
		EmployeeID:          employeeID,
		CycleStart:          details.CycleStart.Format("2006-01-02"),
		CycleEnd:            cycleEnd.Format("2006-01-02"),
		UsedAnnualLeaveDays: used,
	}, nil
}

func (s *service) queueDecisionEvent(
	ctx context.Context,
	tx *sql.Tx,
	rid string,
	l *LeaveRequest,
	eventType string,
	deducted bool,
	amount decimal.Decimal,
	decidedBy string,
) error {
	if s.outbox == nil {
		return nil
	}

	event := events.LeaveDecisionEvent{
		EventType:  eventType,
		LeaveID:    l.ID.String(),
		EmployeeID: l.EmployeeID.String(),
		LeaveType:  l.LeaveType,
		Deducted:   deducted,
		DecidedBy:  decidedBy,
		OccurredAt: s.now().UTC(),
	}
	if deducted {
		event.Amount = amount.String()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal decision event failed", zap.String("request_id", rid), zap.Error(err))
		return err
	}

	if err := s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "leave_request",
		AggregateID:   l.ID.String(),
		EventType:     eventType,
		Topic:         events.LeaveDecisionTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("decision outbox persist failed",
			zap.String("leave_id", l.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *service) invalidateUsageCache(ctx context.Context, employeeID string) {
	if s.rdb == nil {
		return
	}
	cacheKey := GetUsageCacheKey(employeeID)
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Error("failed to invalidate usage cache",
			zap.Error(err),
			zap.String("key", cacheKey),
		)
	}
}

// dayEquivalent converts a request's duration into ledger days.
func dayEquivalent(l *LeaveRequest) decimal.Decimal {
	if l.DurationUnit == UnitHour {
		return l.Duration.Div(decimal.NewFromInt(HoursPerWorkday))
	}
	return l.Duration
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func mapToResponse(l *LeaveRequest) LeaveResponse {
	resp := LeaveResponse{
		ID:                      l.ID.String(),
		EmployeeID:              l.EmployeeID.String(),
		SubmittedBy:             l.SubmittedBy.String(),
		LeaveType:               l.LeaveType,
		OtherLabel:              l.OtherLabel,
		StartDate:               l.StartDate.Format("2006-01-02"),
		EndDate:                 l.EndDate.Format("2006-01-02"),
		IsHourly:                l.IsHourly,
		StartTime:               l.StartTime,
		EndTime:                 l.EndTime,
		Duration:                l.Duration,
		DurationUnit:            l.DurationUnit,
		Reason:                  l.Reason,
		Remarks:                 l.Remarks,
		Status:                  l.Status,
		DeductedFromAnnualLeave: l.DeductedFromAnnualLeave,
	}
	if l.Employee != nil {
		resp.EmployeeName = l.Employee.Name
	}
	if l.ApprovedBy != nil {
		v := l.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if l.ApprovedAt != nil {
		v := l.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &v
	}
	return resp
}
