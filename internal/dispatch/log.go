package dispatch

import (
	"context"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
)

// LogDispatcher writes every flow to the log instead of delivering it.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: logger.OrNop(log)}
}

func (d *LogDispatcher) SendEmail(_ context.Context, f domain.RetentionFlow, email string) error {
	d.emit("email", f, "email", email)
	return nil
}

func (d *LogDispatcher) SendPush(_ context.Context, f domain.RetentionFlow) error {
	d.emit("push", f)
	return nil
}

func (d *LogDispatcher) SendInApp(_ context.Context, f domain.RetentionFlow) error {
	d.emit("in_app", f)
	return nil
}

func (d *LogDispatcher) RecordAlert(_ context.Context, f domain.RetentionFlow) error {
	d.emit("alert", f)
	return nil
}

func (d *LogDispatcher) emit(kind string, f domain.RetentionFlow, extra ...any) {
	d.log.With(extra...).Info("dispatch",
		"kind", kind,
		"flow_id", f.FlowID,
		"user_id", f.UserID,
		"flow_type", f.FlowType,
		"trigger", f.TriggerReason,
		"incentive", f.IncentiveType,
		"tone", f.Personalization.Tone,
	)
}

var _ Dispatcher = (*LogDispatcher)(nil)
