package leave_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kevi308111/annualLeaveForm/internal/employee"
	"github.com/kevi308111/annualLeaveForm/internal/events"
	"github.com/kevi308111/annualLeaveForm/internal/leave"
	leaveerrors "github.com/kevi308111/annualLeaveForm/internal/leave/errors"
	"github.com/kevi308111/annualLeaveForm/internal/messaging/kafka"
)

type fakeLeaveRepository struct {
	createFn         func(ctx context.Context, l *leave.LeaveRequest) error
	findAllFn        func(ctx context.Context, f leave.Filter) ([]leave.LeaveRequest, error)
	findByEmployeeFn func(ctx context.Context, employeeID string) ([]leave.LeaveRequest, error)
	findByIDFn       func(ctx context.Context, id string) (*leave.LeaveRequest, error)
	updateFn         func(ctx context.Context, l *leave.LeaveRequest) error
	deleteFn         func(ctx context.Context, id string) error
}

func (f *fakeLeaveRepository) WithTx(tx *sql.Tx) leave.Repository { return f }

func (f *fakeLeaveRepository) Create(ctx context.Context, l *leave.LeaveRequest) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindAll(ctx context.Context, filter leave.Filter) ([]leave.LeaveRequest, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindByEmployee(ctx context.Context, employeeID string) ([]leave.LeaveRequest, error) {
	if f.findByEmployeeFn != nil {
		return f.findByEmployeeFn(ctx, employeeID)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindByID(ctx context.Context, id string) (*leave.LeaveRequest, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) Update(ctx context.Context, l *leave.LeaveRequest) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type fakeEmployeeRepository struct {
	findByIDFn      func(ctx context.Context, id string) (*employee.Employee, error)
	getBalanceFn    func(ctx context.Context, id string) (decimal.Decimal, error)
	updateBalanceFn func(ctx context.Context, id string, remaining decimal.Decimal) error
}

func (f *fakeEmployeeRepository) WithTx(tx *sql.Tx) employee.Repository { return f }

func (f *fakeEmployeeRepository) Create(ctx context.Context, e *employee.Employee) error { return nil }

func (f *fakeEmployeeRepository) FindAll(ctx context.Context) ([]employee.Employee, error) {
	return nil, nil
}

func (f *fakeEmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, errors.New("not configured")
}

func (f *fakeEmployeeRepository) FindByUsername(ctx context.Context, username string) (*employee.Employee, error) {
	return nil, errors.New("not configured")
}

func (f *fakeEmployeeRepository) Update(ctx context.Context, e *employee.Employee) error { return nil }

func (f *fakeEmployeeRepository) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	if f.getBalanceFn != nil {
		return f.getBalanceFn(ctx, id)
	}
	return decimal.Zero, errors.New("not configured")
}

func (f *fakeEmployeeRepository) UpdateBalance(ctx context.Context, id string, remaining decimal.Decimal) error {
	if f.updateBalanceFn != nil {
		return f.updateBalanceFn(ctx, id, remaining)
	}
	return errors.New("not configured")
}

func (f *fakeEmployeeRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return nil
}

func (f *fakeEmployeeRepository) BulkApplyGrants(ctx context.Context, grants []employee.BalanceGrant) error {
	return nil
}

func (f *fakeEmployeeRepository) Delete(ctx context.Context, id string) error { return nil }

type fakeOutboxRepository struct {
	createFn func(ctx context.Context, event kafka.OutboxEvent) error
}

func (f *fakeOutboxRepository) WithTx(tx *sql.Tx) kafka.OutboxRepository { return f }

func (f *fakeOutboxRepository) Create(ctx context.Context, event kafka.OutboxEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	return nil
}

func (f *fakeOutboxRepository) ListPending(ctx context.Context, limit int) ([]kafka.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepository) MarkSent(ctx context.Context, id string) error { return nil }

func (f *fakeOutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return nil
}

type leaveServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service leave.Service
	repo    *fakeLeaveRepository
	empRepo *fakeEmployeeRepository
	outbox  *fakeOutboxRepository
}

// All tests run as of 2023-07-15.
var testToday = time.Date(2023, 7, 15, 10, 0, 0, 0, time.UTC)

func setupLeaveServiceTest(t *testing.T) *leaveServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeLeaveRepository{}
	empRepo := &fakeEmployeeRepository{}
	outbox := &fakeOutboxRepository{}
	svc := leave.NewServiceWithClock(db, repo, empRepo, outbox, nil, func() time.Time { return testToday })

	return &leaveServiceDeps{
		db:      db,
		sqlMock: sqlMock,
		service: svc,
		repo:    repo,
		empRepo: empRepo,
		outbox:  outbox,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func testEmployee(id uuid.UUID, hireDate time.Time, remaining decimal.Decimal) *employee.Employee {
	return &employee.Employee{
		ID:                   id,
		Username:             "worker",
		Name:                 "Worker",
		Role:                 employee.RoleEmployee,
		HireDate:             hireDate,
		RemainingAnnualLeave: remaining,
	}
}

func pendingAnnual(id, employeeID uuid.UUID, start string, duration float64, unit string) *leave.LeaveRequest {
	startDate, _ := time.Parse("2006-01-02", start)
	return &leave.LeaveRequest{
		ID:           id,
		EmployeeID:   employeeID,
		SubmittedBy:  employeeID,
		LeaveType:    leave.TypeAnnual,
		StartDate:    startDate,
		EndDate:      startDate,
		IsHourly:     unit == leave.UnitHour,
		Duration:     decimal.NewFromFloat(duration),
		DurationUnit: unit,
		Status:       leave.StatusPending,
	}
}

func TestLeaveService_Create(t *testing.T) {
	ctx := context.Background()
	employeeID := uuid.New().String()
	actorID := uuid.New().String()

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			assert.Equal(t, employeeID, id)
			return testEmployee(uuid.MustParse(employeeID), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), decimal.Zero), nil
		}
		deps.repo.createFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			assert.Equal(t, uuid.MustParse(employeeID), l.EmployeeID)
			assert.Equal(t, uuid.MustParse(actorID), l.SubmittedBy)
			assert.Equal(t, leave.TypeAnnual, l.LeaveType)
			assert.Equal(t, leave.StatusPending, l.Status)
			assert.Equal(t, leave.UnitDay, l.DurationUnit)
			assert.True(t, l.Duration.Equal(decimal.NewFromInt(1)))
			assert.Nil(t, l.DeductedFromAnnualLeave)
			return nil
		}

		resp, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "2023-08-01",
			EndDate:    "2023-08-01",
			Duration:   1,
		})

		assert.NoError(t, err)
		assert.Equal(t, employeeID, resp.EmployeeID)
		assert.Equal(t, leave.StatusPending, resp.Status)
	})

	t.Run("negative invalid date format", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "01/08/2023",
			EndDate:    "2023-08-01",
			Duration:   1,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateFormat)
	})

	t.Run("negative end before start", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "2023-08-02",
			EndDate:    "2023-08-01",
			Duration:   1,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
	})

	t.Run("negative zero duration", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.createFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			t.Fatal("create must not be called for a zero duration")
			return nil
		}

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "2023-08-01",
			EndDate:    "2023-08-01",
			Duration:   0,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDuration)
	})

	t.Run("negative duration cannot credit the ledger", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.createFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			t.Fatal("create must not be called for a negative duration")
			return nil
		}

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "2023-08-01",
			EndDate:    "2023-08-01",
			Duration:   -2,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDuration)
	})

	t.Run("negative hourly without times", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "2023-08-01",
			EndDate:    "2023-08-01",
			IsHourly:   true,
			Duration:   4,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrTimeRangeRequired)
	})

	t.Run("negative hourly with day unit", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		start, end := "09:00", "13:00"
		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID:   employeeID,
			LeaveType:    leave.TypeAnnual,
			StartDate:    "2023-08-01",
			EndDate:      "2023-08-01",
			IsHourly:     true,
			StartTime:    &start,
			EndTime:      &end,
			Duration:     4,
			DurationUnit: leave.UnitDay,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrHourlyUnitMismatch)
	})

	t.Run("negative other without label", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeOther,
			StartDate:  "2023-08-01",
			EndDate:    "2023-08-01",
			Duration:   1,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrOtherLabelRequired)
	})

	t.Run("negative employee not found before persistence", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return nil, errors.New("record not found")
		}
		deps.repo.createFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			t.Fatal("create must not be called when the employee lookup fails")
			return nil
		}

		_, err := deps.service.Create(ctx, actorID, leave.CreateLeaveRequest{
			EmployeeID: employeeID,
			LeaveType:  leave.TypeAnnual,
			StartDate:  "2023-08-01",
			EndDate:    "2023-08-01",
			Duration:   1,
		})

		assert.ErrorIs(t, err, leaveerrors.ErrEmployeeNotFound)
	})
}

func TestLeaveService_Approve(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New().String()
	employeeID := uuid.New()
	leaveID := uuid.New()
	hireDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("annual one day deducts from balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay), nil
		}
		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, hireDate, decimal.NewFromInt(3)), nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			return decimal.NewFromInt(3), nil
		}
		var persisted decimal.Decimal
		deps.empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			persisted = remaining
			return nil
		}
		var outboxEvent kafka.OutboxEvent
		deps.outbox.createFn = func(ctx context.Context, event kafka.OutboxEvent) error {
			outboxEvent = event
			return nil
		}

		resp, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.NoError(t, err)
		assert.True(t, resp.Deducted)
		assert.True(t, persisted.Equal(decimal.NewFromInt(2)), persisted.String())
		assert.True(t, resp.RemainingAfter.Equal(decimal.NewFromInt(2)))
		assert.Equal(t, leave.StatusApproved, resp.Leave.Status)
		assert.NotNil(t, resp.Leave.DeductedFromAnnualLeave)
		assert.True(t, *resp.Leave.DeductedFromAnnualLeave)

		assert.Equal(t, events.LeaveDecisionTopic, outboxEvent.Topic)
		var decision events.LeaveDecisionEvent
		assert.NoError(t, json.Unmarshal(outboxEvent.Payload, &decision))
		assert.Equal(t, events.LeaveApprovedEventType, decision.EventType)
		assert.True(t, decision.Deducted)
		assert.Equal(t, "1", decision.Amount)

		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("four hours deduct half a day", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2023-07-20", 4, leave.UnitHour), nil
		}
		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, hireDate, decimal.NewFromInt(2)), nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			return decimal.NewFromInt(2), nil
		}
		var persisted decimal.Decimal
		deps.empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			persisted = remaining
			return nil
		}

		resp, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.NoError(t, err)
		assert.True(t, persisted.Equal(decimal.NewFromFloat(1.5)), persisted.String())
		assert.True(t, resp.DeductionAmount.Equal(decimal.NewFromFloat(0.5)))
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("balance may go negative", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2023-07-20", 2, leave.UnitDay), nil
		}
		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, hireDate, decimal.NewFromInt(1)), nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			return decimal.NewFromInt(1), nil
		}
		var persisted decimal.Decimal
		deps.empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			persisted = remaining
			return nil
		}

		_, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.NoError(t, err)
		assert.True(t, persisted.Equal(decimal.NewFromInt(-1)), persisted.String())
	})

	t.Run("start before cycle approves without deduction", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		// Hired 2022-01-01, so the cycle as of 2023-07-15 starts at
		// 2023-01-01. The leave predates it.
		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2022-12-30", 1, leave.UnitDay), nil
		}
		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(7)), nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			t.Fatal("balance must not be read for a pre-cycle approval")
			return decimal.Zero, nil
		}

		resp, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.NoError(t, err)
		assert.False(t, resp.Deducted)
		assert.Nil(t, resp.DeductionAmount)
		assert.NotEmpty(t, resp.Note)
		assert.Equal(t, leave.StatusApproved, resp.Leave.Status)
		assert.NotNil(t, resp.Leave.DeductedFromAnnualLeave)
		assert.False(t, *resp.Leave.DeductedFromAnnualLeave)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("non-annual leave never touches the ledger", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			l := pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay)
			l.LeaveType = leave.TypeSick
			return l, nil
		}
		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			t.Fatal("employee lookup is only needed for annual leave")
			return nil, nil
		}

		resp, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.NoError(t, err)
		assert.False(t, resp.Deducted)
		assert.Nil(t, resp.Leave.DeductedFromAnnualLeave)
	})

	t.Run("negative already approved", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			l := pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay)
			l.Status = leave.StatusApproved
			return l, nil
		}

		_, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative rejected is terminal", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			l := pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay)
			l.Status = leave.StatusRejected
			return l, nil
		}

		_, err := deps.service.Approve(ctx, actorID, leaveID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)
	})
}

func TestLeaveService_Reject(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New().String()
	employeeID := uuid.New()
	leaveID := uuid.New()

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay), nil
		}
		var outboxEvent kafka.OutboxEvent
		deps.outbox.createFn = func(ctx context.Context, event kafka.OutboxEvent) error {
			outboxEvent = event
			return nil
		}

		resp, err := deps.service.Reject(ctx, actorID, leaveID.String())

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusRejected, resp.Status)
		assert.Equal(t, events.LeaveRejectedEventType, outboxEvent.EventType)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative not pending", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			l := pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay)
			l.Status = leave.StatusApproved
			return l, nil
		}

		_, err := deps.service.Reject(ctx, actorID, leaveID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)
	})
}

func TestLeaveService_Delete(t *testing.T) {
	ctx := context.Background()
	employeeID := uuid.New()
	leaveID := uuid.New()
	deducted := true
	notDeducted := false

	t.Run("approved deducted annual credits back", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			l := pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay)
			l.Status = leave.StatusApproved
			l.DeductedFromAnnualLeave = &deducted
			return l, nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			return decimal.NewFromInt(2), nil
		}
		var persisted decimal.Decimal
		deps.empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			persisted = remaining
			return nil
		}
		deleted := false
		deps.repo.deleteFn = func(ctx context.Context, id string) error {
			deleted = true
			return nil
		}

		resp, err := deps.service.Delete(ctx, leaveID.String())

		assert.NoError(t, err)
		assert.True(t, deleted)
		assert.True(t, persisted.Equal(decimal.NewFromInt(3)), persisted.String())
		assert.True(t, resp.CreditedBack.Equal(decimal.NewFromInt(1)))
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("approve then delete restores the exact balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		// Approve a 4-hour request against a balance of 3, then delete
		// it: the balance must come back to exactly 3.
		expectTx(t, deps.sqlMock, true)
		expectTx(t, deps.sqlMock, true)

		request := pendingAnnual(leaveID, employeeID, "2023-07-20", 4, leave.UnitHour)
		balance := decimal.NewFromInt(3)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return request, nil
		}
		deps.repo.updateFn = func(ctx context.Context, l *leave.LeaveRequest) error {
			request = l
			return nil
		}
		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), balance), nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			return balance, nil
		}
		deps.empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			balance = remaining
			return nil
		}

		_, err := deps.service.Approve(ctx, uuid.New().String(), leaveID.String())
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromFloat(2.5)), balance.String())

		_, err = deps.service.Delete(ctx, leaveID.String())
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(3)), balance.String())
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("pending delete has no ledger effect", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay), nil
		}
		deps.empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			t.Fatal("balance must not be read when deleting a pending request")
			return decimal.Zero, nil
		}

		resp, err := deps.service.Delete(ctx, leaveID.String())

		assert.NoError(t, err)
		assert.Nil(t, resp.CreditedBack)
	})

	t.Run("approved but never deducted does not credit", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			l := pendingAnnual(leaveID, employeeID, "2022-12-30", 1, leave.UnitDay)
			l.Status = leave.StatusApproved
			l.DeductedFromAnnualLeave = &notDeducted
			return l, nil
		}
		deps.empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			t.Fatal("balance must not change for an undeducted approval")
			return nil
		}

		resp, err := deps.service.Delete(ctx, leaveID.String())

		assert.NoError(t, err)
		assert.Nil(t, resp.CreditedBack)
	})
}

func TestLeaveService_Usage(t *testing.T) {
	ctx := context.Background()
	employeeID := uuid.New()
	hireDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	approvedAnnual := func(start string, duration float64, unit string) leave.LeaveRequest {
		l := pendingAnnual(uuid.New(), employeeID, start, duration, unit)
		l.Status = leave.StatusApproved
		return *l
	}

	t.Run("sums approved annual leave inside the cycle", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, hireDate, decimal.NewFromInt(3)), nil
		}
		deps.repo.findByEmployeeFn = func(ctx context.Context, id string) ([]leave.LeaveRequest, error) {
			pending := *pendingAnnual(uuid.New(), employeeID, "2023-04-01", 2, leave.UnitDay)
			sick := approvedAnnual("2023-05-01", 3, leave.UnitDay)
			sick.LeaveType = leave.TypeSick
			return []leave.LeaveRequest{
				approvedAnnual("2023-02-01", 1, leave.UnitDay),
				approvedAnnual("2023-03-01", 4, leave.UnitHour),
				// Before the cycle start, must not count.
				approvedAnnual("2022-12-01", 5, leave.UnitDay),
				pending,
				sick,
			}, nil
		}

		resp, err := deps.service.Usage(ctx, employeeID.String())

		assert.NoError(t, err)
		assert.Equal(t, "2023-01-01", resp.CycleStart)
		assert.Equal(t, "2024-01-01", resp.CycleEnd)
		assert.True(t, resp.UsedAnnualLeaveDays.Equal(decimal.NewFromFloat(1.5)), resp.UsedAnnualLeaveDays.String())
	})

	t.Run("negative invalid employee id", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Usage(ctx, "not-a-uuid")

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidEmployeeID)
	})
}
