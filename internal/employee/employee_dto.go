package employee

import (
	"github.com/shopspring/decimal"

	"github.com/kevi308111/annualLeaveForm/internal/seniority"
)

type CreateEmployeeRequest struct {
	Username                string `json:"username" binding:"required,min=3,max=50"`
	Password                string `json:"password" binding:"required,min=6"`
	Name                    string `json:"name" binding:"required"`
	Role                    string `json:"role" binding:"omitempty,oneof=admin employee"`
	HireDate                string `json:"hire_date" binding:"required"`
	SeniorityCorrectionDays int    `json:"seniority_correction_days"`
}

type UpdateEmployeeRequest struct {
	Name                    string `json:"name" binding:"required"`
	Role                    string `json:"role" binding:"required,oneof=admin employee"`
	HireDate                string `json:"hire_date" binding:"required"`
	SeniorityCorrectionDays int    `json:"seniority_correction_days"`
}

type AdjustBalanceRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Direction string `json:"direction" binding:"required,oneof=add subtract"`
	Reason    string `json:"reason"`
}

type EmployeeResponse struct {
	ID                       string            `json:"id"`
	Username                 string            `json:"username"`
	Name                     string            `json:"name"`
	Role                     string            `json:"role"`
	HireDate                 string            `json:"hire_date"`
	SeniorityCorrectionDays  int               `json:"seniority_correction_days"`
	RemainingAnnualLeave     decimal.Decimal   `json:"remaining_annual_leave_days"`
	LastAnnualLeaveGrantDate *string           `json:"last_annual_leave_grant_date,omitempty"`
	Seniority                seniority.Details `json:"seniority"`
	CurrentEntitlement       int               `json:"current_entitlement_days"`
}

// EmployeeOption is the slim projection used by pickers on the leave
// filing and approval pages.
type EmployeeOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AdjustBalanceResponse struct {
	EmployeeID string          `json:"employee_id"`
	Before     decimal.Decimal `json:"remaining_before"`
	After      decimal.Decimal `json:"remaining_after"`
}
