package domain

// QueryFilter is the structured form of a retrieval request. A nil field means
// the user did not ask for that constraint.
type QueryFilter struct {
	Type         *string  `json:"type"`
	MinAvgHR     *float64 `json:"min_avg_hr"`
	MaxAvgHR     *float64 `json:"max_avg_hr"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	LastNRuns    *int     `json:"last_n_runs"`
	DistanceKM   *float64 `json:"distance_km"`
	MetricFilter *string  `json:"metric_filter"`
	RunNames     []string `json:"run_names"`
}

// HasRunNames reports whether the filter names specific runs. Names take
// precedence over every other field.
func (f QueryFilter) HasRunNames() bool { return len(f.RunNames) > 0 }

// IsEmpty reports whether no constraint is set at all.
func (f QueryFilter) IsEmpty() bool {
	return f.Type == nil && f.MinAvgHR == nil && f.MaxAvgHR == nil &&
		f.StartDate == nil && f.EndDate == nil && f.LastNRuns == nil &&
		f.DistanceKM == nil && f.MetricFilter == nil && len(f.RunNames) == 0
}
