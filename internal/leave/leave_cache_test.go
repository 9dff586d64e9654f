package leave_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kevi308111/annualLeaveForm/internal/employee"
	"github.com/kevi308111/annualLeaveForm/internal/leave"
)

func TestLeaveService_UsageCache(t *testing.T) {
	ctx := context.Background()
	employeeID := uuid.New()
	hireDate := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	cacheKey := leave.GetUsageCacheKey(employeeID.String())

	setup := func(t *testing.T) (leave.Service, *fakeLeaveRepository, *fakeEmployeeRepository, sqlmock.Sqlmock, redismock.ClientMock, func()) {
		t.Helper()

		db, sqlMock, err := sqlmock.New()
		assert.NoError(t, err)

		rdb, redisMock := redismock.NewClientMock()
		repo := &fakeLeaveRepository{}
		empRepo := &fakeEmployeeRepository{}
		svc := leave.NewServiceWithClock(db, repo, empRepo, &fakeOutboxRepository{}, rdb, func() time.Time { return testToday })

		return svc, repo, empRepo, sqlMock, redisMock, func() { db.Close() }
	}

	t.Run("cache hit skips the repository", func(t *testing.T) {
		svc, repo, _, _, redisMock, cleanup := setup(t)
		defer cleanup()

		cached := leave.UsageResponse{
			EmployeeID:          employeeID.String(),
			CycleStart:          "2023-01-01",
			CycleEnd:            "2024-01-01",
			UsedAnnualLeaveDays: decimal.NewFromInt(2),
		}
		payload, err := json.Marshal(cached)
		assert.NoError(t, err)
		redisMock.ExpectGet(cacheKey).SetVal(string(payload))

		repo.findByEmployeeFn = func(ctx context.Context, id string) ([]leave.LeaveRequest, error) {
			t.Fatal("repository must not be hit on a warm cache")
			return nil, nil
		}

		resp, err := svc.Usage(ctx, employeeID.String())

		assert.NoError(t, err)
		assert.True(t, resp.UsedAnnualLeaveDays.Equal(decimal.NewFromInt(2)))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache miss computes and fills", func(t *testing.T) {
		svc, repo, empRepo, _, redisMock, cleanup := setup(t)
		defer cleanup()

		empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, hireDate, decimal.NewFromInt(3)), nil
		}
		repo.findByEmployeeFn = func(ctx context.Context, id string) ([]leave.LeaveRequest, error) {
			l := pendingAnnual(uuid.New(), employeeID, "2023-02-01", 1, leave.UnitDay)
			l.Status = leave.StatusApproved
			return []leave.LeaveRequest{*l}, nil
		}

		expected := leave.UsageResponse{
			EmployeeID:          employeeID.String(),
			CycleStart:          "2023-01-01",
			CycleEnd:            "2024-01-01",
			UsedAnnualLeaveDays: decimal.NewFromInt(1),
		}
		payload, err := json.Marshal(expected)
		assert.NoError(t, err)

		redisMock.ExpectGet(cacheKey).RedisNil()
		redisMock.ExpectSet(cacheKey, payload, 5*time.Minute).SetVal("OK")

		resp, err := svc.Usage(ctx, employeeID.String())

		assert.NoError(t, err)
		assert.True(t, resp.UsedAnnualLeaveDays.Equal(decimal.NewFromInt(1)))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("approval invalidates the usage entry", func(t *testing.T) {
		svc, repo, empRepo, sqlMock, redisMock, cleanup := setup(t)
		defer cleanup()

		expectTx(t, sqlMock, true)

		leaveID := uuid.New()
		repo.findByIDFn = func(ctx context.Context, id string) (*leave.LeaveRequest, error) {
			return pendingAnnual(leaveID, employeeID, "2023-07-20", 1, leave.UnitDay), nil
		}
		empRepo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return testEmployee(employeeID, hireDate, decimal.NewFromInt(3)), nil
		}
		empRepo.getBalanceFn = func(ctx context.Context, id string) (decimal.Decimal, error) {
			return decimal.NewFromInt(3), nil
		}
		empRepo.updateBalanceFn = func(ctx context.Context, id string, remaining decimal.Decimal) error {
			return nil
		}

		redisMock.ExpectDel(cacheKey).SetVal(1)

		_, err := svc.Approve(ctx, uuid.New().String(), leaveID.String())

		assert.NoError(t, err)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
