package consumer

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kevi308111/annualLeaveForm/internal/bootstrap"
	"github.com/kevi308111/annualLeaveForm/internal/events"
	"github.com/kevi308111/annualLeaveForm/internal/leave"
)

// ConsumeLeaveDecisions records every approval/rejection to the audit
// log and drops the cached usage summary for the affected employee so
// the next read recomputes it against the mutated ledger.
func ConsumeLeaveDecisions(
	ctx context.Context,
	reader *kafkago.Reader,
	rdb *redis.Client,
	auditLogger bootstrap.AuditLogger,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.leave_decision")
	log.Info("leave decision consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave decision consumer stopped")
				return
			}
			log.Error("fetch leave decision message failed", zap.Error(err))
			continue
		}

		var event events.LeaveDecisionEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode leave decision event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		auditLogger.Log(ctx, bootstrap.AuditLog{
			Action:  event.EventType,
			Message: "leave request decided",
			Meta: map[string]any{
				"leave_id":    event.LeaveID,
				"employee_id": event.EmployeeID,
				"leave_type":  event.LeaveType,
				"deducted":    event.Deducted,
				"amount":      event.Amount,
				"decided_by":  event.DecidedBy,
			},
		})

		if rdb != nil {
			cacheKey := leave.GetUsageCacheKey(event.EmployeeID)
			if err := rdb.Del(ctx, cacheKey).Err(); err != nil {
				log.Warn("invalidate usage cache failed",
					zap.String("employee_id", event.EmployeeID),
					zap.Error(err),
				)
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit leave decision message failed", zap.Error(err))
			continue
		}

		log.Info("leave decision processed",
			zap.String("leave_id", event.LeaveID),
			zap.String("employee_id", event.EmployeeID),
			zap.String("event_type", event.EventType),
		)
	}
}
