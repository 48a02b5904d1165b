package reporting

import (
	"context"
	"sort"
	"strings"
	"time"

	"fly2any-growth/internal/domain"
	"fly2any-growth/internal/storage"
)

// Generator produces reports from decisions and stored flow events.
type Generator struct {
	flowStore  storage.FlowEventStore // optional
	flowWindow time.Duration
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. flowStore may be nil.
func NewGenerator(flowStore storage.FlowEventStore, flowWindow time.Duration) *Generator {
	return &Generator{
		flowStore:  flowStore,
		flowWindow: flowWindow,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report for the given decisions.
func (g *Generator) Generate(ctx context.Context, decisions []domain.GrowthDecision) (*Report, error) {
	now := g.now()
	r := &Report{
		GeneratedAt: now,
		UserCount:   len(decisions),
		Summary:     summarize(decisions),
		Segments:    distribution(decisions, segmentOrder, func(d domain.GrowthDecision) string { return string(d.LTVSegment) }),
		ChurnLevels: distribution(decisions, churnOrder, func(d domain.GrowthDecision) string { return string(d.ChurnLevel) }),
		Actions:     distribution(decisions, actionOrder, func(d domain.GrowthDecision) string { return string(d.RecommendedAction) }),
		Matrix:      matrix(decisions),
		Decisions:   decisionRows(decisions),
	}

	if g.flowStore != nil && g.flowWindow > 0 {
		start := now.Add(-g.flowWindow)
		flows, err := g.flowStore.GetByTimeRange(ctx, start, now)
		if err != nil {
			return nil, err
		}
		r.FlowWindowStart = start
		r.FlowWindowEnd = now
		r.Flows = FlowRows(flows)
	}

	return r, nil
}

var (
	segmentOrder = []string{
		string(domain.SegmentVIP), string(domain.SegmentHigh), string(domain.SegmentMedium), string(domain.SegmentLow),
	}
	churnOrder = []string{
		string(domain.ChurnCritical), string(domain.ChurnHigh), string(domain.ChurnMedium), string(domain.ChurnLow),
	}
	actionOrder = []string{
		string(domain.ActionNone), string(domain.ActionEmail), string(domain.ActionPush), string(domain.ActionAlert),
		string(domain.ActionDiscount), string(domain.ActionValue), string(domain.ActionContent),
	}
)

func summarize(decisions []domain.GrowthDecision) Summary {
	var s Summary
	var known int
	var ltv, churn, confidence int
	for _, d := range decisions {
		if len(d.Degraded) > 0 {
			s.DegradedUsers++
		}
		if d.IsDefault() {
			s.UnknownUsers++
			continue
		}
		known++
		ltv += d.LTVScore
		churn += d.ChurnProbability
		confidence += d.Confidence
	}
	if known > 0 {
		s.AvgLTVScore = float64(ltv) / float64(known)
		s.AvgChurn = float64(churn) / float64(known)
		s.AvgConfidence = float64(confidence) / float64(known)
	}
	return s
}

// distribution returns one row per key in order, including zero counts.
func distribution(decisions []domain.GrowthDecision, order []string, key func(domain.GrowthDecision) string) []DistributionRow {
	counts := make(map[string]int, len(order))
	for _, d := range decisions {
		counts[key(d)]++
	}
	rows := make([]DistributionRow, 0, len(order))
	for _, k := range order {
		row := DistributionRow{Key: k, Count: counts[k]}
		if len(decisions) > 0 {
			row.Share = float64(row.Count) / float64(len(decisions))
		}
		rows = append(rows, row)
	}
	return rows
}

func matrix(decisions []domain.GrowthDecision) []MatrixRow {
	type cell struct{ segment, level string }
	counts := make(map[cell]int)
	actions := make(map[cell]map[string]int)
	for _, d := range decisions {
		c := cell{string(d.LTVSegment), string(d.ChurnLevel)}
		counts[c]++
		if actions[c] == nil {
			actions[c] = make(map[string]int)
		}
		actions[c][string(d.RecommendedAction)]++
	}

	var rows []MatrixRow
	for _, seg := range segmentOrder {
		for _, level := range churnOrder {
			c := cell{seg, level}
			if counts[c] == 0 {
				continue
			}
			rows = append(rows, MatrixRow{
				Segment:    seg,
				ChurnLevel: level,
				Count:      counts[c],
				TopAction:  topKey(actions[c]),
			})
		}
	}
	return rows
}

func topKey(m map[string]int) string {
	best, bestN := "", -1
	for k, n := range m {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func decisionRows(decisions []domain.GrowthDecision) []DecisionRow {
	rows := make([]DecisionRow, 0, len(decisions))
	for _, d := range decisions {
		rows = append(rows, DecisionRow{
			UserID:           d.UserID,
			LTVScore:         d.LTVScore,
			Segment:          string(d.LTVSegment),
			ChurnProbability: d.ChurnProbability,
			ChurnLevel:       string(d.ChurnLevel),
			Action:           string(d.RecommendedAction),
			Confidence:       d.Confidence,
			Tone:             string(d.Personalization.Tone),
			Urgency:          string(d.Personalization.Urgency),
			Destinations:     strings.Join(d.Personalization.Destinations, "|"),
			Degraded:         strings.Join(d.Degraded, "|"),
			Reasoning:        d.Reasoning,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].UserID < rows[j].UserID
	})
	return rows
}

// FlowRows aggregates flows by (flow_type, channel), sorted by both.
func FlowRows(flows []domain.RetentionFlow) []FlowRow {
	type key struct{ flowType, channel string }
	agg := make(map[key]*FlowRow)
	for _, f := range flows {
		k := key{string(f.FlowType), string(f.Channel)}
		row, ok := agg[k]
		if !ok {
			row = &FlowRow{FlowType: k.flowType, Channel: k.channel}
			agg[k] = row
		}
		row.Count++
		if f.IncentiveUsed {
			row.IncentiveCount++
		}
	}

	rows := make([]FlowRow, 0, len(agg))
	for _, row := range agg {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FlowType != rows[j].FlowType {
			return rows[i].FlowType < rows[j].FlowType
		}
		return rows[i].Channel < rows[j].Channel
	})
	return rows
}
