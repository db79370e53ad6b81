package activity

import (
	"fmt"
	"math"
	"strings"
	"time"

	"runrag/internal/domain"
)

const unitMetres = 1000.0

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	domain.DateLayout,
}

// Normalize converts one raw activity into an ActivityRecord with per-km
// splits. Activities without a usable distance stream get a single synthetic
// split built from the summary, so every record carries at least one split.
func Normalize(a Activity) (domain.ActivityRecord, error) {
	s := a.Summary
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return domain.ActivityRecord{}, &IngestionError{ActivityID: s.ID, Field: "name", Err: ErrMissingField}
	}
	ts, err := parseTimestamp(s.StartDateLocal)
	if err != nil {
		return domain.ActivityRecord{}, &IngestionError{ActivityID: s.ID, Name: name, Field: "start_date_local", Err: err}
	}

	splits := kilometreSplits(a.Streams)
	if len(splits) == 0 {
		splits = []domain.SplitRecord{syntheticSplit(s)}
	}

	rec := domain.ActivityRecord{
		Name:         name,
		Timestamp:    ts,
		Distance:     distanceKM(s, a.Streams),
		ActivityType: TypeFromName(name),
		Splits:       splits,
	}
	rec.AvgHeartRate = roundPtr(orElse(meanSplits(splits, func(sp domain.SplitRecord) *float64 { return sp.HeartRate }), s.AverageHeartrate), 2)
	rec.AvgCadence = roundPtr(orElse(meanSplits(splits, func(sp domain.SplitRecord) *float64 { return sp.Cadence }), s.AverageCadence), 2)
	rec.AvgPower = roundPtr(orElse(meanSplits(splits, func(sp domain.SplitRecord) *float64 { return sp.Power }), s.AverageWatts), 2)
	rec.AvgPace = roundPtr(orElse(meanSplits(splits, func(sp domain.SplitRecord) *float64 { return sp.Pace }), paceFromSpeed(s.AverageSpeed)), 2)
	rec.TotalElevationGain = roundPtr(orElse(sumSplits(splits, func(sp domain.SplitRecord) *float64 { return sp.ElevationGain }), s.TotalElevationGain), 1)
	return rec, nil
}

// NormalizeBatch normalizes every activity it can. Failures are returned
// alongside the records; one bad activity never aborts the batch.
func NormalizeBatch(acts []Activity) ([]domain.ActivityRecord, []error) {
	records := make([]domain.ActivityRecord, 0, len(acts))
	var errs []error
	for _, a := range acts {
		rec, err := Normalize(a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// TypeFromName derives the activity type from the naming convention
// "<Type> Run - <n>". Unrecognised prefixes map to Unknown.
func TypeFromName(name string) string {
	idx := strings.Index(strings.ToLower(name), " run")
	if idx <= 0 {
		return domain.TypeUnknown
	}
	prefix := strings.TrimSpace(name[:idx])
	for _, t := range domain.KnownTypes {
		if strings.EqualFold(prefix, t) {
			return t
		}
	}
	return domain.TypeUnknown
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrMissingField
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, raw)
}

// kilometreSplits buckets samples by cumulative distance into
// [(u-1)*1000, u*1000) and aggregates each non-empty bucket.
func kilometreSplits(st *Streams) []domain.SplitRecord {
	if st == nil || st.Distance == nil {
		return nil
	}
	dist := st.Distance.Data
	total, ok := maxOf(dist)
	if !ok {
		return nil
	}
	units := int(math.Floor(total / unitMetres))
	if units < 1 {
		return nil
	}

	buckets := make([][]int, units+1)
	for i, d := range dist {
		if d == nil || *d < 0 {
			continue
		}
		u := int(math.Floor(*d/unitMetres)) + 1
		if u > units {
			continue
		}
		buckets[u] = append(buckets[u], i)
	}

	splits := make([]domain.SplitRecord, 0, units)
	for u := 1; u <= units; u++ {
		idx := buckets[u]
		if len(idx) == 0 {
			continue
		}
		sp := domain.SplitRecord{
			Index:     u,
			HeartRate: roundPtr(mean(samples(st.Heartrate, idx)), 2),
			Cadence:   roundPtr(mean(samples(st.Cadence, idx)), 2),
			Power:     roundPtr(mean(samples(st.Watts, idx)), 2),
			Pace:      roundPtr(paceFromSpeed(mean(samples(st.VelocitySmooth, idx))), 2),
		}
		if alts := samples(st.Altitude, idx); len(alts) > 0 {
			lo, hi := alts[0], alts[0]
			for _, a := range alts[1:] {
				lo = math.Min(lo, a)
				hi = math.Max(hi, a)
			}
			sp.ElevationGain = roundPtr(ptr(hi-lo), 1)
		}
		splits = append(splits, sp)
	}
	return splits
}

func syntheticSplit(s Summary) domain.SplitRecord {
	return domain.SplitRecord{
		Index:         1,
		HeartRate:     roundPtr(s.AverageHeartrate, 2),
		Cadence:       roundPtr(s.AverageCadence, 2),
		Power:         roundPtr(s.AverageWatts, 2),
		Pace:          roundPtr(paceFromSpeed(s.AverageSpeed), 2),
		ElevationGain: roundPtr(s.TotalElevationGain, 1),
	}
}

func distanceKM(s Summary, st *Streams) float64 {
	if s.Distance != nil {
		return round(*s.Distance/unitMetres, 2)
	}
	if st != nil && st.Distance != nil {
		if total, ok := maxOf(st.Distance.Data); ok {
			return round(total/unitMetres, 2)
		}
	}
	return 0
}

// paceFromSpeed converts m/s into min/km. Zero or absent speed has no pace.
func paceFromSpeed(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return ptr((unitMetres / *v) / 60)
}

func samples(st *Stream, idx []int) []float64 {
	if st == nil {
		return nil
	}
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		if i < len(st.Data) && st.Data[i] != nil {
			out = append(out, *st.Data[i])
		}
	}
	return out
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return ptr(sum / float64(len(vals)))
}

func meanSplits(splits []domain.SplitRecord, get func(domain.SplitRecord) *float64) *float64 {
	var vals []float64
	for _, sp := range splits {
		if v := get(sp); v != nil {
			vals = append(vals, *v)
		}
	}
	return mean(vals)
}

func sumSplits(splits []domain.SplitRecord, get func(domain.SplitRecord) *float64) *float64 {
	var total *float64
	for _, sp := range splits {
		if v := get(sp); v != nil {
			if total == nil {
				total = ptr(0)
			}
			*total += *v
		}
	}
	return total
}

func maxOf(vals []*float64) (float64, bool) {
	found := false
	hi := 0.0
	for _, v := range vals {
		if v == nil {
			continue
		}
		if !found || *v > hi {
			hi = *v
			found = true
		}
	}
	return hi, found
}

func orElse(v, fallback *float64) *float64 {
	if v != nil {
		return v
	}
	return fallback
}

func roundPtr(v *float64, places int) *float64 {
	if v == nil {
		return nil
	}
	return ptr(round(*v, places))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ptr(v float64) *float64 { return &v }
