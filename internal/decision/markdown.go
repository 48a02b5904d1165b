package decision

import (
	"fmt"
	"strings"

	"fly2any-growth/internal/domain"
)

// RenderMarkdown renders a single GrowthDecision as Markdown.
func RenderMarkdown(d domain.GrowthDecision) string {
	var sb strings.Builder

	sb.WriteString("# Growth Decision\n\n")
	sb.WriteString(fmt.Sprintf("User: `%s`\n\n", d.UserID))
	sb.WriteString(fmt.Sprintf("## Action: %s (confidence %d)\n\n", d.RecommendedAction, d.Confidence))
	sb.WriteString(d.Reasoning)
	sb.WriteString("\n\n")

	sb.WriteString("## Scores\n\n")
	sb.WriteString("| Metric | Score | Tier |\n")
	sb.WriteString("|--------|-------|------|\n")
	sb.WriteString(fmt.Sprintf("| LTV | %d | %s |\n", d.LTVScore, d.LTVSegment))
	sb.WriteString(fmt.Sprintf("| Churn | %d | %s |\n", d.ChurnProbability, d.ChurnLevel))
	sb.WriteString("\n")

	sb.WriteString("## Personalization\n\n")
	sb.WriteString(fmt.Sprintf("- Tone: %s\n", d.Personalization.Tone))
	sb.WriteString(fmt.Sprintf("- Urgency: %s\n", d.Personalization.Urgency))
	if len(d.Personalization.Destinations) > 0 {
		sb.WriteString(fmt.Sprintf("- Destinations: %s\n", strings.Join(d.Personalization.Destinations, ", ")))
	} else {
		sb.WriteString("- Destinations: none\n")
	}
	sb.WriteString("\n")

	if len(d.Degraded) > 0 {
		sb.WriteString("## Degraded Signals\n\n")
		for _, g := range d.Degraded {
			sb.WriteString(fmt.Sprintf("- %s (default values used)\n", g))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderTable renders the decision table as Markdown, marking the row that fired.
func RenderTable(fired domain.GrowthDecision) string {
	var sb strings.Builder

	sb.WriteString("| # | Segment | Churn | Condition | Action | Confidence | Fired |\n")
	sb.WriteString("|---|---------|-------|-----------|--------|------------|-------|\n")
	for i, r := range Table {
		cond := r.Condition
		if cond == "" {
			cond = "-"
		}
		mark := ""
		if r.Segment == fired.LTVSegment && r.Action == fired.RecommendedAction && r.Confidence == fired.Confidence {
			mark = "x"
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %d | %s |\n",
			i+1, r.Segment, r.Churn, cond, r.Action, r.Confidence, mark))
	}

	return sb.String()
}
