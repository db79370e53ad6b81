package activity

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Stream is one per-sample series as delivered by the activity source.
// Missing samples are null, never zero.
type Stream struct {
	Data []*float64 `json:"data"`
}

// Streams holds the sample series keyed by type. Any of them may be absent;
// manual entries have none at all.
type Streams struct {
	Distance       *Stream `json:"distance,omitempty"`
	Heartrate      *Stream `json:"heartrate,omitempty"`
	Cadence        *Stream `json:"cadence,omitempty"`
	Watts          *Stream `json:"watts,omitempty"`
	VelocitySmooth *Stream `json:"velocity_smooth,omitempty"`
	Altitude       *Stream `json:"altitude,omitempty"`
}

// Summary carries the activity-level fields of the source.
type Summary struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	SportType          string   `json:"sport_type"`
	StartDateLocal     string   `json:"start_date_local"`
	Distance           *float64 `json:"distance"` // metres
	MovingTime         *float64 `json:"moving_time"`
	TotalElevationGain *float64 `json:"total_elevation_gain"`
	AverageHeartrate   *float64 `json:"average_heartrate"`
	AverageSpeed       *float64 `json:"average_speed"` // m/s
	AverageCadence     *float64 `json:"average_cadence"`
	AverageWatts       *float64 `json:"average_watts"`
}

// Activity is one raw activity: its summary and, when recorded by a device,
// its sample streams.
type Activity struct {
	Summary Summary  `json:"activity"`
	Streams *Streams `json:"streams,omitempty"`
}

// Sport returns the most specific sport label available.
func (a Activity) Sport() string {
	if a.Summary.SportType != "" {
		return a.Summary.SportType
	}
	return a.Summary.Type
}

// IsRun reports whether a sport label denotes a running activity.
func IsRun(sport string) bool {
	switch sport {
	case "Run", "Trail Run", "TrailRun", "Virtual Run", "VirtualRun":
		return true
	}
	return false
}

// Decode reads a JSON array of activities.
func Decode(r io.Reader) ([]Activity, error) {
	var acts []Activity
	if err := json.NewDecoder(r).Decode(&acts); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}
	return acts, nil
}

// LoadFile reads a JSON array of activities from path.
func LoadFile(path string) ([]Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	acts, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return acts, nil
}
