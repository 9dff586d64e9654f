package employee

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BalanceGrant is one row of a periodic grant batch: the new running
// balance and the grant date to stamp on the employee.
type BalanceGrant struct {
	EmployeeID uuid.UUID
	Remaining  decimal.Decimal
	GrantDate  time.Time
}

//go:generate mockgen -source=employee_repo.go -destination=mock/employee_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, e *Employee) error
	FindAll(ctx context.Context) ([]Employee, error)
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByUsername(ctx context.Context, username string) (*Employee, error)
	Update(ctx context.Context, e *Employee) error
	GetBalance(ctx context.Context, id string) (decimal.Decimal, error)
	UpdateBalance(ctx context.Context, id string, remaining decimal.Decimal) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	BulkApplyGrants(ctx context.Context, grants []BalanceGrant) error
	Delete(ctx context.Context, id string) error
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{db: r.db, tx: tx}
}

func (r *repository) Create(ctx context.Context, e *Employee) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *repository) FindAll(ctx context.Context) ([]Employee, error) {
	var employees []Employee
	err := r.db.WithContext(ctx).
		Order("hire_date ASC").
		Find(&employees).Error
	return employees, err
}

func (r *repository) FindByID(ctx context.Context, id string) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	return &e, err
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&e).Error
	return &e, err
}

func (r *repository) Update(ctx context.Context, e *Employee) error {
	return r.db.WithContext(ctx).Save(e).Error
}

// GetBalance reads through the open transaction when one is bound, so
// a re-read inside an approval sees writes made earlier in the same tx.
func (r *repository) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	if r.tx != nil {
		var balance decimal.Decimal
		err := r.tx.QueryRowContext(ctx,
			`SELECT remaining_annual_leave FROM employees WHERE id = $1 AND deleted_at IS NULL`,
			id,
		).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Decimal{}, gorm.ErrRecordNotFound
		}
		return balance, err
	}

	var balance decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&Employee{}).
		Select("remaining_annual_leave").
		Where("id = ?", id).
		Scan(&balance).Error
	return balance, err
}

func (r *repository) UpdateBalance(ctx context.Context, id string, remaining decimal.Decimal) error {
	if r.tx != nil {
		_, err := r.tx.ExecContext(ctx,
			`UPDATE employees SET remaining_annual_leave = $1, updated_at = NOW() WHERE id = $2`,
			remaining, id,
		)
		return err
	}

	return r.db.WithContext(ctx).
		Model(&Employee{}).
		Where("id = ?", id).
		Update("remaining_annual_leave", remaining).Error
}

func (r *repository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.db.WithContext(ctx).
		Model(&Employee{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash).Error
}

// BulkApplyGrants writes a whole grant batch in one statement so the
// periodic grant ends with a single upsert, keyed by id.
func (r *repository) BulkApplyGrants(ctx context.Context, grants []BalanceGrant) error {
	if len(grants) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(grants)*3)
	for i, g := range grants {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?::uuid, ?::numeric, ?::date)")
		args = append(args, g.EmployeeID.String(), g.Remaining.String(), g.GrantDate.Format("2006-01-02"))
	}

	query := `
UPDATE employees AS e
SET
	remaining_annual_leave = v.remaining,
	last_annual_leave_grant_date = v.grant_date,
	updated_at = NOW()
FROM (VALUES ` + sb.String() + `) AS v(id, remaining, grant_date)
WHERE e.id = v.id
`
	return r.db.WithContext(ctx).Exec(query, args...).Error
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Employee{}, "id = ?", id).Error
}
