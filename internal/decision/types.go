package decision

import "fly2any-growth/internal/domain"

// Outcome is the result of the decision table for one user.
type Outcome struct {
	Action     domain.Action
	Reasoning  string
	Confidence int
}

// Rule is one row of the decision table, used for rendering.
type Rule struct {
	Segment    domain.LTVSegment
	Churn      string
	Condition  string
	Action     domain.Action
	Confidence int
}

// Table lists the decision rules in precedence order.
// Decide is the source of truth; Table documents it for reports.
var Table = []Rule{
	{domain.SegmentVIP, "CRITICAL", "", domain.ActionValue, 90},
	{domain.SegmentVIP, "HIGH", "", domain.ActionEmail, 85},
	{domain.SegmentVIP, "MEDIUM/LOW", "", domain.ActionNone, 95},
	{domain.SegmentHigh, "CRITICAL", "", domain.ActionValue, 85},
	{domain.SegmentHigh, "HIGH", "", domain.ActionAlert, 80},
	{domain.SegmentHigh, "MEDIUM/LOW", "", domain.ActionContent, 90},
	{domain.SegmentMedium, "CRITICAL", "", domain.ActionDiscount, 75},
	{domain.SegmentMedium, "HIGH", "", domain.ActionEmail, 80},
	{domain.SegmentMedium, "MEDIUM/LOW", "days inactive > 14", domain.ActionPush, 70},
	{domain.SegmentMedium, "MEDIUM/LOW", "", domain.ActionNone, 85},
	{domain.SegmentLow, "CRITICAL", "has booked", domain.ActionEmail, 60},
	{domain.SegmentLow, "any", "weekly searches > 2", domain.ActionAlert, 65},
	{domain.SegmentLow, "any", "", domain.ActionNone, 90},
}
