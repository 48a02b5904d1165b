package reporting

import "time"

// Report summarizes a batch of growth decisions and, optionally, recent retention flows.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	UserCount   int

	// Summary
	Summary Summary

	// Distributions (sorted by canonical enum order)
	Segments    []DistributionRow
	ChurnLevels []DistributionRow
	Actions     []DistributionRow

	// Segment x churn level cells with at least one user
	Matrix []MatrixRow

	// Per-user rows (sorted by user_id)
	Decisions []DecisionRow

	// Flow activity over FlowWindow; empty when no flow store is configured
	FlowWindowStart time.Time
	FlowWindowEnd   time.Time
	Flows           []FlowRow
}

// Summary contains batch-wide aggregates. Averages exclude unknown users.
type Summary struct {
	UnknownUsers  int
	DegradedUsers int
	AvgLTVScore   float64
	AvgChurn      float64
	AvgConfidence float64
}

// DistributionRow counts users per enum value.
type DistributionRow struct {
	Key   string
	Count int
	Share float64 // Count / UserCount, 0 if no users
}

// MatrixRow is one segment x churn level cell.
type MatrixRow struct {
	Segment    string
	ChurnLevel string
	Count      int
	TopAction  string // most frequent action; ties broken alphabetically
}

// DecisionRow is one user's decision, flattened for CSV.
type DecisionRow struct {
	UserID           string
	LTVScore         int
	Segment          string
	ChurnProbability int
	ChurnLevel       string
	Action           string
	Confidence       int
	Tone             string
	Urgency          string
	Destinations     string // '|' separated
	Degraded         string // '|' separated signal groups
	Reasoning        string
}

// FlowRow counts executed flows per (flow_type, channel).
type FlowRow struct {
	FlowType       string
	Channel        string
	Count          int
	IncentiveCount int
}
