package leave

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kevi308111/annualLeaveForm/internal/employee"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"

	TypeAnnual    = "annual"
	TypePersonal  = "personal"
	TypeSick      = "sick"
	TypeMenstrual = "menstrual"
	TypeOther     = "other"

	UnitDay  = "day"
	UnitHour = "hour"

	// Divisor for converting hourly durations into day equivalents.
	HoursPerWorkday = 8
)

type LeaveRequest struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID  uuid.UUID `gorm:"type:uuid;not null;index:idx_leave_requests_employee_dates"`
	SubmittedBy uuid.UUID `gorm:"type:uuid;not null"`

	LeaveType string `gorm:"type:varchar(20);not null"`
	// Free-text label carried only by the "other" leave type.
	OtherLabel string `gorm:"type:varchar(50)"`

	StartDate time.Time `gorm:"type:date;not null;index:idx_leave_requests_employee_dates"`
	EndDate   time.Time `gorm:"type:date;not null"`
	IsHourly  bool      `gorm:"not null;default:false"`
	StartTime *string   `gorm:"type:varchar(5)"`
	EndTime   *string   `gorm:"type:varchar(5)"`

	Duration     decimal.Decimal `gorm:"type:numeric(6,2);not null"`
	DurationUnit string          `gorm:"type:varchar(10);not null;default:'day'"`

	Reason  string `gorm:"type:text"`
	Remarks string `gorm:"type:text"`

	Status string `gorm:"type:varchar(20);not null;default:'pending';index:idx_leave_requests_status"`

	// Nil until an approval decides. False records an approval whose
	// start date predated the accrual cycle, so deletion must not
	// credit anything back.
	DeductedFromAnnualLeave *bool
	ApprovedBy              *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt              *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Employee *employee.Employee `gorm:"foreignKey:EmployeeID"`
}
