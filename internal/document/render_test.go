package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrag/internal/domain"
)

func f(v float64) *float64 { return &v }

func record() domain.ActivityRecord {
	return domain.ActivityRecord{
		Name:               "Tempo Run - 2",
		Timestamp:          time.Date(2025, 7, 31, 6, 8, 32, 0, time.UTC),
		Distance:           8.02,
		ActivityType:       domain.TypeTempo,
		AvgHeartRate:       f(162.4),
		AvgPace:            f(5.12),
		TotalElevationGain: f(41),
		Splits: []domain.SplitRecord{
			{Index: 1, Pace: f(5.3), HeartRate: f(150), ElevationGain: f(4)},
			{Index: 2, Pace: f(5.01), HeartRate: f(165), Power: f(280), ElevationGain: f(2.5)},
			{Index: 3},
		},
	}
}

func TestRender_Layout(t *testing.T) {
	text := Render(record())

	want := strings.Join([]string{
		"Run Name: Tempo Run - 2",
		"Timestamp: 2025-07-31 06:08:32",
		"Distance: 8.02 km",
		"Run Type: Tempo",
		"Average Heart Rate: 162.4 bpm",
		"Average Pace: 5.12 min/km",
		"Elevation Gain: 41 m",
		"",
		"Per-KM Breakdown:",
		"KM 1: Pace 5.3 min/km, HR 150 bpm, Elevation Gain 4 m",
		"KM 2: Pace 5.01 min/km, HR 165 bpm, Power 280 W, Elevation Gain 2.5 m",
		"KM 3:",
	}, "\n")
	assert.Equal(t, want, text)
	assert.NotContains(t, text, "Cadence", "absent values are omitted")
}

func TestFromRecord_Metadata(t *testing.T) {
	doc := FromRecord(record())

	require.NotEmpty(t, doc.ID)
	md := doc.Metadata
	assert.Equal(t, "Tempo Run - 2", md.Name)
	assert.Equal(t, domain.TypeTempo, md.Type)
	assert.Equal(t, "2025-07-31 06:08:32", md.Date)
	assert.Equal(t, 2025, md.Year)
	assert.Equal(t, 7, md.Month)
	assert.Equal(t, 31, md.Week)
	require.NotNil(t, md.Distance)
	assert.Equal(t, 8.02, *md.Distance)
	assert.Equal(t, 162.4, *md.AvgHR)
	assert.Nil(t, md.AvgCadence)
}

func TestFromRecords_FreshIDsInOrder(t *testing.T) {
	a, b := record(), record()
	b.Name = "Easy Run - 1"

	docs := FromRecords([]domain.ActivityRecord{a, b})
	require.Len(t, docs, 2)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	assert.Equal(t, "Easy Run - 1", docs[1].Metadata.Name)
}
