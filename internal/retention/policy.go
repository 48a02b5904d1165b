// Package retention turns behavioural events into at most one retention flow per user,
// subject to the scheduler's active-window, cooldown and weekly-cap limits.
package retention

import (
	"context"
	"fmt"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/logger"
	"fly2any-growth/internal/observability"
)

// Rule thresholds.
const (
	SearchAbandonmentMinChurn = 30
	IncentiveMinChurn         = 60
	ReturnVisitMinDaysAbsent  = 30
	RepeatCustomerMinBookings = 3
)

// Evaluator is the part of the growth brain the policy depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, userID string) domain.GrowthDecision
	InvalidateCache(ctx context.Context, userID string)
}

// Policy classifies events into flows and hands them to the Scheduler.
type Policy struct {
	brain     Evaluator
	scheduler *Scheduler
	log       *logger.Logger
}

// PolicyOptions for creating Policy.
type PolicyOptions struct {
	Brain     Evaluator
	Scheduler *Scheduler
	Logger    *logger.Logger
}

// NewPolicy creates a new Policy.
func NewPolicy(opts PolicyOptions) *Policy {
	return &Policy{
		brain:     opts.Brain,
		scheduler: opts.Scheduler,
		log:       logger.OrNop(opts.Logger),
	}
}

// ProcessEvent returns the executed flow, or nil when no action is taken.
// A nil result is a normal outcome, never an error.
func (p *Policy) ProcessEvent(ctx context.Context, ev domain.RetentionEvent) *domain.RetentionFlow {
	if ev.UserID == "" || !ev.Type.IsValid() {
		p.log.Debug("event ignored", "user_id", ev.UserID, "type", ev.Type)
		return nil
	}
	observability.RecordEventProcessed(string(ev.Type))

	// A confirmed booking changes the signals the cached decision was built from.
	if ev.Type == domain.EventBooking {
		p.brain.InvalidateCache(ctx, ev.UserID)
	}

	d := p.brain.Evaluate(ctx, ev.UserID)
	if d.IsDefault() {
		p.log.Debug("no flow for unknown user", "user_id", ev.UserID, "type", ev.Type)
		return nil
	}

	if reason := p.scheduler.Check(ctx, ev.UserID); reason != BlockNone {
		p.log.Debug("flow blocked", "user_id", ev.UserID, "type", ev.Type, "reason", reason)
		observability.RecordFlowBlocked(string(reason))
		return nil
	}

	flow := Classify(ev, d)
	if flow == nil {
		observability.RecordFlowBlocked(string(BlockNoAction))
		return nil
	}

	executed, reason := p.scheduler.Execute(ctx, flow, ev.Email)
	if reason != BlockNone {
		p.log.Debug("flow blocked", "user_id", ev.UserID, "flow_type", flow.FlowType, "reason", reason)
		return nil
	}
	return executed
}

// Classify maps an event and the user's decision to a flow, or nil for "no action".
// The returned flow is not yet executed.
func Classify(ev domain.RetentionEvent, d domain.GrowthDecision) *domain.RetentionFlow {
	seg := d.LTVSegment

	switch ev.Type {
	case domain.EventPriceDrop:
		if !ev.Data.Watched {
			return nil
		}
		return newFlow(ev, d, flowSpec{
			flowType:   domain.FlowIntent,
			trigger:    withDetail("price_drop", ev.Data.Route),
			channel:    domain.ChannelAlert,
			outcome:    domain.OutcomeBooking,
			confidence: 85,
		})

	case domain.EventAbandonment:
		switch ev.Data.Stage {
		case domain.StageSearch:
			if d.ChurnProbability < SearchAbandonmentMinChurn {
				return nil
			}
			spec := flowSpec{
				flowType:   domain.FlowAbandonment,
				trigger:    withDetail("abandonment:search", ev.Data.Route),
				channel:    domain.ChannelEmail,
				outcome:    domain.OutcomeBooking,
				confidence: 70,
			}
			if ShouldUseIncentive(seg, d.ChurnProbability) {
				spec.incentive, spec.incentiveType = true, domain.IncentiveCredit
			}
			return newFlow(ev, d, spec)

		case domain.StageBooking:
			spec := flowSpec{
				flowType:   domain.FlowAbandonment,
				trigger:    withDetail("abandonment:booking", ev.Data.Route),
				channel:    domain.ChannelEmail,
				outcome:    domain.OutcomeBooking,
				confidence: 80,
			}
			switch {
			case seg == domain.SegmentVIP:
				spec.incentiveType = domain.IncentiveValueAdd
			case ShouldUseIncentive(seg, d.ChurnProbability):
				spec.incentive, spec.incentiveType = true, domain.IncentiveCredit
			}
			return newFlow(ev, d, spec)
		}
		return nil

	case domain.EventInactivity:
		if seg == domain.SegmentVIP {
			return newFlow(ev, d, flowSpec{
				flowType:   domain.FlowTrust,
				trigger:    inactivityTrigger(ev, d),
				channel:    domain.ChannelEmail,
				outcome:    domain.OutcomeRetention,
				confidence: 75,
			})
		}
		if d.ChurnLevel != domain.ChurnHigh && d.ChurnLevel != domain.ChurnCritical {
			return nil
		}
		spec := flowSpec{
			flowType:   domain.FlowReengagement,
			trigger:    inactivityTrigger(ev, d),
			channel:    domain.ChannelEmail,
			outcome:    domain.OutcomeEngagement,
			confidence: 65,
		}
		if ShouldUseIncentive(seg, d.ChurnProbability) {
			spec.incentive, spec.incentiveType = true, domain.IncentiveCredit
		}
		return newFlow(ev, d, spec)

	case domain.EventError:
		return newFlow(ev, d, flowSpec{
			flowType:   domain.FlowTrust,
			trigger:    withDetail("error", ev.Data.ErrorCode),
			channel:    domain.ChannelInApp,
			outcome:    domain.OutcomeRetention,
			confidence: 90,
		})

	case domain.EventReturnVisit:
		if ev.Data.DaysAbsent <= ReturnVisitMinDaysAbsent {
			return nil
		}
		return newFlow(ev, d, flowSpec{
			flowType:   domain.FlowLoyalty,
			trigger:    fmt.Sprintf("return_visit:%dd", ev.Data.DaysAbsent),
			channel:    domain.ChannelInApp,
			outcome:    domain.OutcomeEngagement,
			confidence: 80,
		})

	case domain.EventBooking:
		if d.BookingCount < RepeatCustomerMinBookings {
			return nil
		}
		return newFlow(ev, d, flowSpec{
			flowType:   domain.FlowLoyalty,
			trigger:    fmt.Sprintf("repeat_booking:%d", d.BookingCount),
			channel:    domain.ChannelEmail,
			outcome:    domain.OutcomeRetention,
			confidence: 85,
		})
	}

	return nil
}

// SelectChannel redirects VIP users away from PUSH to EMAIL.
// Other segments get the preferred channel unmodified.
func SelectChannel(segment domain.LTVSegment, preferred domain.Channel) domain.Channel {
	if segment == domain.SegmentVIP && preferred == domain.ChannelPush {
		return domain.ChannelEmail
	}
	return preferred
}

// ShouldUseIncentive is false for VIP regardless of churn; otherwise true from IncentiveMinChurn.
func ShouldUseIncentive(segment domain.LTVSegment, churnProbability int) bool {
	if segment == domain.SegmentVIP {
		return false
	}
	return churnProbability >= IncentiveMinChurn
}

type flowSpec struct {
	flowType      domain.FlowType
	trigger       string
	channel       domain.Channel
	outcome       domain.ExpectedOutcome
	confidence    int
	incentive     bool
	incentiveType domain.IncentiveType
}

// newFlow builds an unexecuted flow. VIP flows never carry a used incentive.
func newFlow(ev domain.RetentionEvent, d domain.GrowthDecision, spec flowSpec) *domain.RetentionFlow {
	channel := spec.channel
	if ev.Data.PreferredChannel.IsValid() {
		channel = ev.Data.PreferredChannel
	}

	f := &domain.RetentionFlow{
		UserID:          ev.UserID,
		FlowType:        spec.flowType,
		TriggerReason:   spec.trigger,
		Channel:         SelectChannel(d.LTVSegment, channel),
		IncentiveUsed:   spec.incentive,
		IncentiveType:   spec.incentiveType,
		ExpectedOutcome: spec.outcome,
		Confidence:      spec.confidence,
		Personalization: d.Clone().Personalization,
		Segment:         d.LTVSegment,
		EventID:         ev.ID,
	}
	if d.LTVSegment == domain.SegmentVIP {
		f.IncentiveUsed = false
	}
	return f
}

func withDetail(base, detail string) string {
	if detail == "" {
		return base
	}
	return base + ":" + detail
}

func inactivityTrigger(ev domain.RetentionEvent, d domain.GrowthDecision) string {
	days := ev.Data.DaysAbsent
	if days == 0 {
		days = d.DaysInactive
	}
	return fmt.Sprintf("inactivity:%dd", days)
}
