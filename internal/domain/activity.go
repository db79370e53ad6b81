package domain

import "time"

// Activity types recognised in run names. Anything else is Unknown.
const (
	TypeLong     = "Long"
	TypeEasy     = "Easy"
	TypeTempo    = "Tempo"
	TypeInterval = "Interval"
	TypeUnknown  = "Unknown"
)

// KnownTypes lists the activity types in the order they are offered to the
// query interpreter.
var KnownTypes = []string{TypeLong, TypeEasy, TypeTempo, TypeInterval}

// ActivityRecord is the canonical, normalized form of one logged run.
type ActivityRecord struct {
	Name               string
	Timestamp          time.Time
	Distance           float64 // km
	ActivityType       string
	AvgHeartRate       *float64
	AvgCadence         *float64
	AvgPower           *float64
	AvgPace            *float64 // min/km
	TotalElevationGain *float64
	// Splits are ordered by Index ascending. Units without samples are absent.
	Splits []SplitRecord
}

// SplitRecord aggregates the samples recorded within one kilometre.
type SplitRecord struct {
	Index         int
	Pace          *float64
	HeartRate     *float64
	Cadence       *float64
	Power         *float64
	ElevationGain *float64
}
