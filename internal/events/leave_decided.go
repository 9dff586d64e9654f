package events

import "time"

const LeaveDecisionTopic = "hr.leave.decision.v1"

const (
	LeaveApprovedEventType = "leave_approved"
	LeaveRejectedEventType = "leave_rejected"
)

type LeaveDecisionEvent struct {
	EventType  string    `json:"event_type"`
	LeaveID    string    `json:"leave_id"`
	EmployeeID string    `json:"employee_id"`
	LeaveType  string    `json:"leave_type"`
	Deducted   bool      `json:"deducted"`
	// Day-equivalent amount moved on the ledger, empty when nothing
	// was deducted or credited.
	Amount     string    `json:"amount,omitempty"`
	DecidedBy  string    `json:"decided_by"`
	OccurredAt time.Time `json:"occurred_at"`
}
