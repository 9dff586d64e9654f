package bootstrap

import "context"

type AuditLog struct {
	Action  string
	Message string
	Meta    map[string]any
}

// AuditLogger records security-relevant actions (shutdowns, leave
// decisions, balance mutations) outside the regular request logs.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditLog)
}
