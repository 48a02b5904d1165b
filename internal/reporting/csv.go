package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// RenderCSV renders per-user decision rows as CSV string.
func RenderCSV(rows []DecisionRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	// Header
	w.Write([]string{
		"user_id", "ltv_score", "ltv_segment", "churn_probability", "churn_level",
		"recommended_action", "confidence", "tone", "urgency", "destinations", "degraded", "reasoning",
	})

	// Rows
	for _, r := range rows {
		w.Write([]string{
			r.UserID,
			strconv.Itoa(r.LTVScore),
			r.Segment,
			strconv.Itoa(r.ChurnProbability),
			r.ChurnLevel,
			r.Action,
			strconv.Itoa(r.Confidence),
			r.Tone,
			r.Urgency,
			r.Destinations,
			r.Degraded,
			r.Reasoning,
		})
	}

	w.Flush()
	return sb.String()
}

// RenderFlowsCSV renders flow rows as CSV string.
func RenderFlowsCSV(rows []FlowRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{"flow_type", "channel", "count", "incentive_count"})
	for _, r := range rows {
		w.Write([]string{r.FlowType, r.Channel, strconv.Itoa(r.Count), strconv.Itoa(r.IncentiveCount)})
	}

	w.Flush()
	return sb.String()
}
