package domain

// DateLayout is the layout of Metadata.Date. Dates are kept as strings so that
// store predicates can compare them lexically.
const DateLayout = "2006-01-02 15:04:05"

// Metadata is the flat, filterable description of a stored activity.
type Metadata struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Distance      *float64 `json:"distance"`
	Date          string   `json:"date"`
	Year          int      `json:"year"`
	Month         int      `json:"month"`
	Week          int      `json:"week"`
	Pace          *float64 `json:"pace"`
	AvgHR         *float64 `json:"avg_hr"`
	AvgCadence    *float64 `json:"avg_cadence"`
	AvgPower      *float64 `json:"avg_power"`
	ElevationGain *float64 `json:"elevation_gain"`
}

// StoredDocument is the persisted unit: a human readable summary of an
// ActivityRecord plus the metadata derived from it. Documents are never
// mutated after creation.
type StoredDocument struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}
