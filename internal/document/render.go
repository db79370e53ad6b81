// Package document turns normalized activity records into the stored,
// searchable documents the rest of the pipeline works with.
package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"runrag/internal/domain"
)

// SplitsHeader introduces the per-kilometre section of a rendered document.
const SplitsHeader = "Per-KM Breakdown:"

// FromRecord renders rec into a StoredDocument with a fresh ID. The text
// layout is fixed; absent values are left out of the text and stay nil in the
// metadata.
func FromRecord(rec domain.ActivityRecord) domain.StoredDocument {
	return domain.StoredDocument{
		ID:       uuid.NewString(),
		Text:     Render(rec),
		Metadata: MetadataOf(rec),
	}
}

// FromRecords renders a batch, preserving order.
func FromRecords(recs []domain.ActivityRecord) []domain.StoredDocument {
	docs := make([]domain.StoredDocument, 0, len(recs))
	for _, rec := range recs {
		docs = append(docs, FromRecord(rec))
	}
	return docs
}

// MetadataOf derives the filterable metadata of rec.
func MetadataOf(rec domain.ActivityRecord) domain.Metadata {
	_, week := rec.Timestamp.ISOWeek()
	dist := rec.Distance
	return domain.Metadata{
		Name:          rec.Name,
		Type:          rec.ActivityType,
		Distance:      &dist,
		Date:          rec.Timestamp.Format(domain.DateLayout),
		Year:          rec.Timestamp.Year(),
		Month:         int(rec.Timestamp.Month()),
		Week:          week,
		Pace:          rec.AvgPace,
		AvgHR:         rec.AvgHeartRate,
		AvgCadence:    rec.AvgCadence,
		AvgPower:      rec.AvgPower,
		ElevationGain: rec.TotalElevationGain,
	}
}

// Render produces the document text for rec.
func Render(rec domain.ActivityRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run Name: %s\n", rec.Name)
	fmt.Fprintf(&b, "Timestamp: %s\n", rec.Timestamp.Format(domain.DateLayout))
	fmt.Fprintf(&b, "Distance: %s km\n", num(rec.Distance))
	fmt.Fprintf(&b, "Run Type: %s\n", rec.ActivityType)
	line(&b, "Average Heart Rate: %s bpm\n", rec.AvgHeartRate)
	line(&b, "Average Pace: %s min/km\n", rec.AvgPace)
	line(&b, "Average Cadence: %s spm\n", rec.AvgCadence)
	line(&b, "Average Power: %s W\n", rec.AvgPower)
	line(&b, "Elevation Gain: %s m\n", rec.TotalElevationGain)

	if len(rec.Splits) > 0 {
		b.WriteString("\n" + SplitsHeader + "\n")
		for _, sp := range rec.Splits {
			b.WriteString(splitLine(sp))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func splitLine(sp domain.SplitRecord) string {
	head := fmt.Sprintf("KM %d:", sp.Index)
	var fields []string
	if sp.Pace != nil {
		fields = append(fields, "Pace "+num(*sp.Pace)+" min/km")
	}
	if sp.HeartRate != nil {
		fields = append(fields, "HR "+num(*sp.HeartRate)+" bpm")
	}
	if sp.Power != nil {
		fields = append(fields, "Power "+num(*sp.Power)+" W")
	}
	if sp.ElevationGain != nil {
		fields = append(fields, "Elevation Gain "+num(*sp.ElevationGain)+" m")
	}
	if len(fields) == 0 {
		return head
	}
	return head + " " + strings.Join(fields, ", ")
}

func line(b *strings.Builder, format string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, format, num(*v))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
