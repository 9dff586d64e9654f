package leave

import "github.com/shopspring/decimal"

type CreateLeaveRequest struct {
	EmployeeID   string  `json:"employee_id" binding:"required,uuid"`
	LeaveType    string  `json:"leave_type" binding:"required,oneof=annual personal sick menstrual other"`
	OtherLabel   string  `json:"other_label"`
	StartDate    string  `json:"start_date" binding:"required"`
	EndDate      string  `json:"end_date" binding:"required"`
	IsHourly     bool    `json:"is_hourly"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	Duration     float64 `json:"duration" binding:"required,gt=0"`
	DurationUnit string  `json:"duration_unit" binding:"omitempty,oneof=day hour"`
	Reason       string  `json:"reason"`
	Remarks      string  `json:"remarks"`
}

type Filter struct {
	Status     string
	EmployeeID string
}

type LeaveResponse struct {
	ID                      string          `json:"id"`
	EmployeeID              string          `json:"employee_id"`
	EmployeeName            string          `json:"employee_name,omitempty"`
	SubmittedBy             string          `json:"submitted_by"`
	LeaveType               string          `json:"leave_type"`
	OtherLabel              string          `json:"other_label,omitempty"`
	StartDate               string          `json:"start_date"`
	EndDate                 string          `json:"end_date"`
	IsHourly                bool            `json:"is_hourly"`
	StartTime               *string         `json:"start_time,omitempty"`
	EndTime                 *string         `json:"end_time,omitempty"`
	Duration                decimal.Decimal `json:"duration"`
	DurationUnit            string          `json:"duration_unit"`
	Reason                  string          `json:"reason,omitempty"`
	Remarks                 string          `json:"remarks,omitempty"`
	Status                  string          `json:"status"`
	DeductedFromAnnualLeave *bool           `json:"deducted_from_annual_leave,omitempty"`
	ApprovedBy              *string         `json:"approved_by,omitempty"`
	ApprovedAt              *string         `json:"approved_at,omitempty"`
}

// ApprovalResponse reports whether the approval actually touched the
// ledger. Deducted stays false when the leave predates the current
// accrual cycle; that outcome is informational, not an error.
type ApprovalResponse struct {
	Leave           LeaveResponse    `json:"leave"`
	Deducted        bool             `json:"deducted"`
	DeductionAmount *decimal.Decimal `json:"deduction_amount,omitempty"`
	RemainingAfter  *decimal.Decimal `json:"remaining_after,omitempty"`
	Note            string           `json:"note,omitempty"`
}

type DeleteResponse struct {
	Deleted        bool             `json:"deleted"`
	CreditedBack   *decimal.Decimal `json:"credited_back,omitempty"`
	RemainingAfter *decimal.Decimal `json:"remaining_after,omitempty"`
}

type UsageResponse struct {
	EmployeeID          string          `json:"employee_id"`
	CycleStart          string          `json:"cycle_start"`
	CycleEnd            string          `json:"cycle_end"`
	UsedAnnualLeaveDays decimal.Decimal `json:"used_annual_leave_days"`
}
