// Package contextcodec converts retrieved documents into the flat text
// context handed to the reasoning stage, and parses that text back into
// per-kilometre rows.
package contextcodec

import (
	"strconv"
	"strings"

	"runrag/internal/domain"
)

// NoData is the context produced for an empty result.
const NoData = "No run data available."

const (
	fieldSep  = " | "
	splitMark = "KM "
	missing   = "n/a"
)

// Options controls Serialize.
type Options struct {
	// IncludeSplits appends each document's per-kilometre lines.
	IncludeSplits bool
}

// Serialize renders docs, in order, one summary line each:
//
//	date | name | Distance: D km | Pace: P min/km | Avg HR: H bpm | Elevation: E m | Type: T
func Serialize(docs []domain.StoredDocument, opts Options) string {
	if len(docs) == 0 {
		return NoData
	}
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteByte('\n')
			if opts.IncludeSplits {
				b.WriteByte('\n')
			}
		}
		b.WriteString(SummaryLine(d.Metadata))
		if opts.IncludeSplits {
			for _, line := range SplitLines(d.Text) {
				b.WriteByte('\n')
				b.WriteString(line)
			}
		}
	}
	return b.String()
}

// SummaryLine renders the header line of one document.
func SummaryLine(md domain.Metadata) string {
	name := strings.ReplaceAll(md.Name, "|", "/")
	return strings.Join([]string{
		md.Date,
		name,
		"Distance: " + num(md.Distance) + " km",
		"Pace: " + num(md.Pace) + " min/km",
		"Avg HR: " + num(md.AvgHR) + " bpm",
		"Elevation: " + num(md.ElevationGain) + " m",
		"Type: " + md.Type,
	}, fieldSep)
}

// SplitLines returns the per-kilometre lines of a document text verbatim.
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, splitMark) {
			out = append(out, line)
		}
	}
	return out
}

func num(v *float64) string {
	if v == nil {
		return missing
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
