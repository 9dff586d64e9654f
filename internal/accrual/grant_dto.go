package accrual

import "github.com/shopspring/decimal"

// GrantLine is one employee's audit row from a grant run. Employees
// whose cycle has not rolled over since the last grant appear with
// Granted=false and unchanged balances.
type GrantLine struct {
	EmployeeID      string          `json:"employee_id"`
	EmployeeName    string          `json:"employee_name"`
	Granted         bool            `json:"granted"`
	EntitlementDays int             `json:"entitlement_days"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	CycleStart      string          `json:"cycle_start"`
}

type GrantResponse struct {
	GrantDate        string      `json:"grant_date"`
	EmployeesChecked int         `json:"employees_checked"`
	EmployeesUpdated int         `json:"employees_updated"`
	Lines            []GrantLine `json:"lines"`
}
