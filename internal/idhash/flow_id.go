package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"fly2any-growth/internal/domain"
)

// ComputeFlowID computes a deterministic flow_id using SHA256.
// Formula: SHA256(user_id|flow_type|trigger_reason|channel|event_id|executed_at_unix_nano)
// Returns the base58-encoded hash (43 or 44 characters).
func ComputeFlowID(
	userID string,
	flowType domain.FlowType,
	triggerReason string,
	channel domain.Channel,
	eventID string,
	executedAt time.Time,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		userID,
		string(flowType),
		triggerReason,
		string(channel),
		eventID,
		executedAt.UTC().UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// FlowIDFor computes the flow_id of an executed flow.
// Returns an empty string if the flow has no execution time.
func FlowIDFor(f *domain.RetentionFlow) string {
	if f == nil || f.ExecutedAt == nil {
		return ""
	}
	return ComputeFlowID(f.UserID, f.FlowType, f.TriggerReason, f.Channel, f.EventID, *f.ExecutedAt)
}
