package employee

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type Employee struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_employee_username"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Name         string    `gorm:"type:varchar(100);not null"`
	Role         string    `gorm:"type:varchar(20);not null;default:'employee'"`

	HireDate                time.Time `gorm:"type:date;not null"`
	SeniorityCorrectionDays int       `gorm:"type:int;not null;default:0"`

	// Balance ledger state. Mutated only by grant, deduction,
	// credit-back and manual adjustment, never recomputed from the
	// request history. May go negative.
	RemainingAnnualLeave     decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0"`
	LastAnnualLeaveGrantDate *time.Time      `gorm:"type:date"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index:idx_employees_deleted_at"`
}
