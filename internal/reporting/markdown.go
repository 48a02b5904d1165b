package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Growth Decision Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Users evaluated: %d\n\n", r.UserCount))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Unknown users | %d |\n", r.Summary.UnknownUsers))
	sb.WriteString(fmt.Sprintf("| Degraded evaluations | %d |\n", r.Summary.DegradedUsers))
	sb.WriteString(fmt.Sprintf("| Avg LTV score | %.1f |\n", r.Summary.AvgLTVScore))
	sb.WriteString(fmt.Sprintf("| Avg churn probability | %.1f |\n", r.Summary.AvgChurn))
	sb.WriteString(fmt.Sprintf("| Avg confidence | %.1f |\n", r.Summary.AvgConfidence))
	sb.WriteString("\n")

	writeDistribution(&sb, "LTV Segments", "Segment", r.Segments)
	writeDistribution(&sb, "Churn Levels", "Level", r.ChurnLevels)
	writeDistribution(&sb, "Recommended Actions", "Action", r.Actions)

	// Matrix
	sb.WriteString("## Segment x Churn\n\n")
	if len(r.Matrix) > 0 {
		sb.WriteString("| Segment | Churn | Users | Top Action |\n")
		sb.WriteString("|---------|-------|-------|------------|\n")
		for _, m := range r.Matrix {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", m.Segment, m.ChurnLevel, m.Count, m.TopAction))
		}
	} else {
		sb.WriteString("No decisions available.\n")
	}
	sb.WriteString("\n")

	// Flows
	if !r.FlowWindowEnd.IsZero() {
		sb.WriteString("## Retention Flows\n\n")
		sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n",
			r.FlowWindowStart.Format(time.RFC3339), r.FlowWindowEnd.Format(time.RFC3339)))
		if len(r.Flows) > 0 {
			sb.WriteString("| Flow | Channel | Executed | With Incentive |\n")
			sb.WriteString("|------|---------|----------|----------------|\n")
			for _, f := range r.Flows {
				sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d |\n", f.FlowType, f.Channel, f.Count, f.IncentiveCount))
			}
		} else {
			sb.WriteString("No flows executed in window.\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeDistribution(sb *strings.Builder, title, column string, rows []DistributionRow) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	sb.WriteString(fmt.Sprintf("| %s | Users | Share |\n", column))
	sb.WriteString("|---|---|---|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% |\n", row.Key, row.Count, row.Share*100))
	}
	sb.WriteString("\n")
}
