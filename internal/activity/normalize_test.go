package activity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrag/internal/domain"
)

func f(v float64) *float64 { return &v }

func series(vals ...float64) *Stream {
	s := &Stream{}
	for _, v := range vals {
		s.Data = append(s.Data, f(v))
	}
	return s
}

func summary(name string) Summary {
	return Summary{ID: 7, Name: name, SportType: "Run", StartDateLocal: "2025-07-31T06:08:32Z", Distance: f(3100)}
}

func TestNormalize_PerKilometreSplits(t *testing.T) {
	act := Activity{
		Summary: summary("Tempo Run - 2"),
		Streams: &Streams{
			Distance:       series(0, 500, 999, 1000, 1500, 2000, 2600, 3100),
			Heartrate:      series(140, 150, 160, 150, 160, 170, 170, 180),
			VelocitySmooth: series(2, 2, 2, 4, 4, 0, 0, 3),
			Altitude:       series(10, 12, 15, 15, 11, 20, 23, 30),
		},
	}

	rec, err := Normalize(act)
	require.NoError(t, err)

	assert.Equal(t, "Tempo Run - 2", rec.Name)
	assert.Equal(t, domain.TypeTempo, rec.ActivityType)
	assert.Equal(t, 3.1, rec.Distance)
	assert.Equal(t, "2025-07-31 06:08:32", rec.Timestamp.Format(domain.DateLayout))

	require.Len(t, rec.Splits, 3)
	first := rec.Splits[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, 150.0, *first.HeartRate)
	assert.Equal(t, 8.33, *first.Pace)
	assert.Equal(t, 5.0, *first.ElevationGain)
	assert.Nil(t, first.Power, "no power stream means no power value")

	second := rec.Splits[1]
	assert.Equal(t, 4.17, *second.Pace)
	assert.Equal(t, 4.0, *second.ElevationGain)

	third := rec.Splits[2]
	assert.Nil(t, third.Pace, "zero mean velocity has no pace")
	assert.Equal(t, 3.0, *third.ElevationGain)

	assert.Equal(t, 12.0, *rec.TotalElevationGain)
	assert.Equal(t, 158.33, *rec.AvgHeartRate)
}

func TestNormalize_GapsAreOmittedAndIndicesIncrease(t *testing.T) {
	act := Activity{
		Summary: summary("Long Run - 1"),
		Streams: &Streams{
			// nothing recorded in the second kilometre
			Distance:  series(100, 900, 2100, 2900, 3500, 4200),
			Heartrate: series(130, 131, 140, 141, 150, 151),
		},
	}

	rec, err := Normalize(act)
	require.NoError(t, err)

	var indices []int
	for _, sp := range rec.Splits {
		indices = append(indices, sp.Index)
	}
	assert.Equal(t, []int{1, 3, 4}, indices)
	for i := 1; i < len(indices); i++ {
		assert.Greater(t, indices[i], indices[i-1])
	}
}

func TestNormalize_NullSamplesAreIgnored(t *testing.T) {
	act := Activity{
		Summary: summary("Easy Run - 4"),
		Streams: &Streams{
			Distance:  &Stream{Data: []*float64{f(0), nil, f(600), f(1200)}},
			Heartrate: &Stream{Data: []*float64{nil, f(120), f(130)}},
		},
	}

	rec, err := Normalize(act)
	require.NoError(t, err)
	require.Len(t, rec.Splits, 1)
	assert.Equal(t, 130.0, *rec.Splits[0].HeartRate)
}

func TestNormalize_NoStreamsYieldsOneSyntheticSplit(t *testing.T) {
	s := summary("Easy Run - 5")
	s.AverageHeartrate = f(141.256)
	s.AverageSpeed = f(2.5)
	s.TotalElevationGain = f(12.34)

	rec, err := Normalize(Activity{Summary: s})
	require.NoError(t, err)

	require.Len(t, rec.Splits, 1)
	sp := rec.Splits[0]
	assert.Equal(t, 1, sp.Index)
	assert.Equal(t, 141.26, *sp.HeartRate)
	assert.Equal(t, 6.67, *sp.Pace)
	assert.Equal(t, 12.3, *sp.ElevationGain)
	assert.Equal(t, 6.67, *rec.AvgPace)
}

func TestNormalize_ShortActivityFallsBackToSyntheticSplit(t *testing.T) {
	s := summary("Easy Run - 6")
	s.Distance = f(800)
	act := Activity{Summary: s, Streams: &Streams{Distance: series(0, 400, 800)}}

	rec, err := Normalize(act)
	require.NoError(t, err)
	require.Len(t, rec.Splits, 1)
	assert.Nil(t, rec.Splits[0].Pace)
	assert.Equal(t, 0.8, rec.Distance)
}

func TestNormalize_ZeroSpeedSummaryHasNoPace(t *testing.T) {
	s := summary("Easy Run - 7")
	s.AverageSpeed = f(0)
	rec, err := Normalize(Activity{Summary: s})
	require.NoError(t, err)
	assert.Nil(t, rec.Splits[0].Pace)
	assert.Nil(t, rec.AvgPace)
}

func TestNormalize_MissingIdentifyingFields(t *testing.T) {
	_, err := Normalize(Activity{Summary: Summary{ID: 9, StartDateLocal: "2025-07-31T06:08:32Z"}})
	var ingErr *IngestionError
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "name", ingErr.Field)
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Normalize(Activity{Summary: Summary{ID: 9, Name: "Tempo Run - 1"}})
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "start_date_local", ingErr.Field)
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Normalize(Activity{Summary: Summary{ID: 9, Name: "Tempo Run - 1", StartDateLocal: "last tuesday"}})
	assert.ErrorIs(t, err, ErrBadTimestamp)
}

func TestNormalizeBatch_SkipsBadActivities(t *testing.T) {
	acts := []Activity{
		{Summary: summary("Tempo Run - 1")},
		{Summary: Summary{ID: 2}},
		{Summary: summary("Long Run - 3")},
	}

	recs, errs := NormalizeBatch(acts)
	require.Len(t, recs, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, "Tempo Run - 1", recs[0].Name)
	assert.Equal(t, "Long Run - 3", recs[1].Name)
}

func TestTypeFromName(t *testing.T) {
	cases := map[string]string{
		"Tempo Run - 2":    domain.TypeTempo,
		"long run - 1":     domain.TypeLong,
		"Interval Run - 3": domain.TypeInterval,
		"Morning Run":      domain.TypeUnknown,
		"Run":              domain.TypeUnknown,
		"Easy jog":         domain.TypeUnknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, TypeFromName(name), name)
	}
}

func TestDecode(t *testing.T) {
	raw := `[{"activity":{"id":1,"name":"Easy Run - 1","sport_type":"Run","start_date_local":"2025-06-01T07:00:00Z","distance":5000},
	"streams":{"distance":{"data":[0,1000.5,null]},"heartrate":{"data":[120,null,130]}}}]`

	acts, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.True(t, IsRun(acts[0].Sport()))
	require.NotNil(t, acts[0].Streams)
	assert.Nil(t, acts[0].Streams.Distance.Data[2])
	assert.Nil(t, acts[0].Streams.Watts)
}
