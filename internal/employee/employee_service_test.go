package employee_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kevi308111/annualLeaveForm/internal/employee"
	employeeerrors "github.com/kevi308111/annualLeaveForm/internal/employee/errors"
)

type fakeEmployeeRepository struct {
	createFn         func(ctx context.Context, e *employee.Employee) error
	findAllFn        func(ctx context.Context) ([]employee.Employee, error)
	findByIDFn       func(ctx context.Context, id string) (*employee.Employee, error)
	updateFn         func(ctx context.Context, e *employee.Employee) error
	updateBalanceFn  func(ctx context.Context, id string, remaining decimal.Decimal) error
	updatePasswordFn func(ctx context.Context, id string, passwordHash string) error
	deleteFn         func(ctx context.Context, id string) error
}

func (f *fakeEmployeeRepository) WithTx(tx *sql.Tx) employee.Repository { return f }

func (f *fakeEmployeeRepository) Create(ctx context.Context, e *employee.Employee) error {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	return nil
}

func (f *fakeEmployeeRepository) FindAll(ctx context.Context) ([]employee.Employee, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx)
	}
	return nil, nil
}

func (f *fakeEmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEmployeeRepository) FindByUsername(ctx context.Context, username string) (*employee.Employee, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEmployeeRepository) Update(ctx context.Context, e *employee.Employee) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, e)
	}
	return nil
}

func (f *fakeEmployeeRepository) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("not configured")
}

func (f *fakeEmployeeRepository) UpdateBalance(ctx context.Context, id string, remaining decimal.Decimal) error {
	if f.updateBalanceFn != nil {
		return f.updateBalanceFn(ctx, id, remaining)
	}
	return errors.New("not configured")
}

func (f *fakeEmployeeRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	if f.updatePasswordFn != nil {
		return f.updatePasswordFn(ctx, id, passwordHash)
	}
	return errors.New("not configured")
}

func (f *fakeEmployeeRepository) BulkApplyGrants(ctx context.Context, grants []employee.BalanceGrant) error {
	return nil
}

func (f *fakeEmployeeRepository) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

type employeeServiceDeps struct {
	db      *sql.DB
	sqlMock sqlmock.Sqlmock
	service employee.Service
	repo    *fakeEmployeeRepository
}

var testToday = time.Date(2023, 7, 15, 10, 0, 0, 0, time.UTC)

func setupEmployeeServiceTest(t *testing.T) *employeeServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeEmployeeRepository{}
	svc := employee.NewServiceWithClock(db, repo, nil, func() time.Time { return testToday })

	return &employeeServiceDeps{db: db, sqlMock: sqlMock, service: svc, repo: repo}
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

func TestEmployeeService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success applies ledger defaults", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		var created *employee.Employee
		deps.repo.createFn = func(ctx context.Context, e *employee.Employee) error {
			e.ID = uuid.New()
			created = e
			return nil
		}

		resp, err := deps.service.Create(ctx, employee.CreateEmployeeRequest{
			Username: "amy.chen",
			Password: "s3cret!",
			Name:     "Amy Chen",
			HireDate: "2023-01-01",
		})

		assert.NoError(t, err)
		assert.Equal(t, employee.RoleEmployee, created.Role)
		assert.True(t, created.RemainingAnnualLeave.Equal(decimal.Zero))
		assert.Nil(t, created.LastAnnualLeaveGrantDate)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("s3cret!")))

		assert.Equal(t, "2023-01-01", resp.HireDate)
		assert.Equal(t, 0, resp.Seniority.Years)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("explicit role is kept", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		var created *employee.Employee
		deps.repo.createFn = func(ctx context.Context, e *employee.Employee) error {
			created = e
			return nil
		}

		_, err := deps.service.Create(ctx, employee.CreateEmployeeRequest{
			Username: "boss",
			Password: "s3cret!",
			Name:     "Boss",
			Role:     employee.RoleAdmin,
			HireDate: "2020-05-01",
		})

		assert.NoError(t, err)
		assert.Equal(t, employee.RoleAdmin, created.Role)
	})

	t.Run("negative invalid hire date", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Create(ctx, employee.CreateEmployeeRequest{
			Username: "amy.chen",
			Password: "s3cret!",
			Name:     "Amy Chen",
			HireDate: "01-01-2023",
		})

		assert.ErrorIs(t, err, employeeerrors.ErrInvalidHireDate)
	})
}

func TestEmployeeService_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("success derives seniority and entitlement", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		id := uuid.New()
		deps.repo.findByIDFn = func(ctx context.Context, lookupID string) (*employee.Employee, error) {
			assert.Equal(t, id.String(), lookupID)
			return &employee.Employee{
				ID:                   id,
				Username:             "amy.chen",
				Name:                 "Amy Chen",
				Role:                 employee.RoleEmployee,
				HireDate:             time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
				RemainingAnnualLeave: decimal.NewFromInt(7),
			}, nil
		}

		resp, err := deps.service.GetByID(ctx, id.String())

		assert.NoError(t, err)
		// Two full years on 2023-07-15 puts her in the 2-3 year tier.
		assert.Equal(t, 2, resp.Seniority.Years)
		assert.Equal(t, 10, resp.CurrentEntitlement)
		assert.True(t, resp.RemainingAnnualLeave.Equal(decimal.NewFromInt(7)))
	})

	t.Run("negative not found", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		deps.repo.findByIDFn = func(ctx context.Context, id string) (*employee.Employee, error) {
			return nil, gorm.ErrRecordNotFound
		}

		_, err := deps.service.GetByID(ctx, uuid.New().String())

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeNotFound)
	})
}

func TestEmployeeService_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	seed := func(balance decimal.Decimal) *employee.Employee {
		return &employee.Employee{
			ID:                   id,
			Username:             "amy.chen",
			Name:                 "Amy Chen",
			Role:                 employee.RoleEmployee,
			HireDate:             time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
			RemainingAnnualLeave: balance,
		}
	}

	t.Run("add then subtract is additive", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)
		expectTx(t, deps.sqlMock, true)

		balance := decimal.NewFromInt(3)
		deps.repo.findByIDFn = func(ctx context.Context, lookupID string) (*employee.Employee, error) {
			return seed(balance), nil
		}
		deps.repo.updateBalanceFn = func(ctx context.Context, lookupID string, remaining decimal.Decimal) error {
			balance = remaining
			return nil
		}

		first, err := deps.service.AdjustBalance(ctx, id.String(), employee.AdjustBalanceRequest{
			Amount:    "2",
			Direction: "add",
		})
		assert.NoError(t, err)
		assert.True(t, first.After.Equal(decimal.NewFromInt(5)), first.After.String())

		second, err := deps.service.AdjustBalance(ctx, id.String(), employee.AdjustBalanceRequest{
			Amount:    "1.5",
			Direction: "subtract",
		})
		assert.NoError(t, err)
		assert.True(t, second.Before.Equal(decimal.NewFromInt(5)))
		assert.True(t, second.After.Equal(decimal.NewFromFloat(3.5)), second.After.String())
		assert.True(t, balance.Equal(decimal.NewFromFloat(3.5)))
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("subtract below zero is allowed", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, true)

		deps.repo.findByIDFn = func(ctx context.Context, lookupID string) (*employee.Employee, error) {
			return seed(decimal.NewFromInt(1)), nil
		}
		var persisted decimal.Decimal
		deps.repo.updateBalanceFn = func(ctx context.Context, lookupID string, remaining decimal.Decimal) error {
			persisted = remaining
			return nil
		}

		resp, err := deps.service.AdjustBalance(ctx, id.String(), employee.AdjustBalanceRequest{
			Amount:    "2.5",
			Direction: "subtract",
		})

		assert.NoError(t, err)
		assert.True(t, resp.After.Equal(decimal.NewFromFloat(-1.5)))
		assert.True(t, persisted.Equal(decimal.NewFromFloat(-1.5)))
	})

	t.Run("negative malformed amount", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.AdjustBalance(ctx, id.String(), employee.AdjustBalanceRequest{
			Amount:    "two",
			Direction: "add",
		})

		assert.ErrorIs(t, err, employeeerrors.ErrInvalidAdjustmentAmount)
	})
}

func TestEmployeeService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("success hashes the default password", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		deps.repo.findByIDFn = func(ctx context.Context, lookupID string) (*employee.Employee, error) {
			return &employee.Employee{ID: id}, nil
		}
		var storedHash string
		deps.repo.updatePasswordFn = func(ctx context.Context, lookupID string, passwordHash string) error {
			storedHash = passwordHash
			return nil
		}

		err := deps.service.ResetPassword(ctx, id.String())

		assert.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("123456")))
	})

	t.Run("negative unknown employee", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		err := deps.service.ResetPassword(ctx, id.String())

		assert.ErrorIs(t, err, employeeerrors.ErrEmployeeNotFound)
	})
}

func TestEmployeeService_GetOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("projects id and name without redis", func(t *testing.T) {
		deps := setupEmployeeServiceTest(t)
		defer deps.db.Close()

		a, b := uuid.New(), uuid.New()
		deps.repo.findAllFn = func(ctx context.Context) ([]employee.Employee, error) {
			return []employee.Employee{
				{ID: a, Name: "Amy Chen", HireDate: testToday},
				{ID: b, Name: "Bob Lin", HireDate: testToday},
			}, nil
		}

		options, err := deps.service.GetOptions(ctx)

		assert.NoError(t, err)
		assert.Equal(t, []employee.EmployeeOption{
			{ID: a.String(), Name: "Amy Chen"},
			{ID: b.String(), Name: "Bob Lin"},
		}, options)
	})
}
