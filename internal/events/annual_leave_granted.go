package events

import "time"

const AnnualLeaveGrantTopic = "hr.leave.accrual.v1"

const AnnualLeaveGrantedEventType = "annual_leave_granted"

type AnnualLeaveGrantedEvent struct {
	EventType        string    `json:"event_type"`
	GrantDate        string    `json:"grant_date"`
	EmployeesChecked int       `json:"employees_checked"`
	EmployeesUpdated int       `json:"employees_updated"`
	OccurredAt       time.Time `json:"occurred_at"`
}
