package contextcodec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Row is one kilometre of one activity, carrying its parent's summary.
type Row struct {
	Date           string  `json:"date"`
	RunName        string  `json:"run_name"`
	RunType        string  `json:"run_type"`
	KM             int     `json:"km"`
	Pace           float64 `json:"pace"`
	HR             float64 `json:"hr"`
	Power          float64 `json:"power"`
	ElevationGain  float64 `json:"elevation_gain"`
	Distance       float64 `json:"distance"`
	AvgHR          float64 `json:"avg_hr"`
	AvgPace        float64 `json:"avg_pace"`
	TotalElevation float64 `json:"total_elevation"`
}

const numberPattern = `-?\d+(?:\.\d+)?`

var (
	headerRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	numberRe    = regexp.MustCompile(numberPattern)
	kmRe        = regexp.MustCompile(`^KM\s+(\d+)`)
	paceRe      = regexp.MustCompile(`Pace\s+(` + numberPattern + `)`)
	hrRe        = regexp.MustCompile(`HR\s+(` + numberPattern + `)`)
	powerRe     = regexp.MustCompile(`Power\s+(` + numberPattern + `)`)
	elevationRe = regexp.MustCompile(`Elevation Gain\s+(` + numberPattern + `)`)
)

type header struct {
	date, name, runType            string
	distance, pace, hr, elevation float64
}

// Deserialize parses context text into rows. A line starting with a
// YYYY-MM-DD date and holding at least seven pipe-separated fields opens an
// activity; each following KM line adds one row to it. KM lines before any
// header are dropped and absent numbers read as 0.
func Deserialize(text string) []Row {
	var (
		rows []Row
		cur  *header
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if headerRe.MatchString(line) {
			parts := strings.Split(line, "|")
			// a short date-led line is not a header and leaves the current run open
			if len(parts) >= 7 {
				cur = &header{
					date:      strings.TrimSpace(parts[0]),
					name:      strings.TrimSpace(parts[1]),
					distance:  firstNumber(parts[2]),
					pace:      firstNumber(parts[3]),
					hr:        firstNumber(parts[4]),
					elevation: firstNumber(parts[5]),
					runType:   strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[6]), "Type:")),
				}
			}
			continue
		}
		m := kmRe.FindStringSubmatch(line)
		if m == nil || cur == nil {
			continue
		}
		km, _ := strconv.Atoi(m[1])
		rows = append(rows, Row{
			Date:           cur.date,
			RunName:        cur.name,
			RunType:        cur.runType,
			KM:             km,
			Pace:           labelled(paceRe, line),
			HR:             labelled(hrRe, line),
			Power:          labelled(powerRe, line),
			ElevationGain:  labelled(elevationRe, line),
			Distance:       cur.distance,
			AvgHR:          cur.hr,
			AvgPace:        cur.pace,
			TotalElevation: cur.elevation,
		})
	}
	return rows
}

func firstNumber(s string) float64 {
	m := numberRe.FindString(s)
	if m == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(m, 64)
	return v
}

func labelled(re *regexp.Regexp, line string) float64 {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0
	}
	v, _ := strconv.ParseFloat(m[1], 64)
	return v
}

// Describe summarises rows for a visualisation prompt: the column schema and
// the exact run names present, in first-seen order.
func Describe(rows []Row) string {
	var b strings.Builder
	b.WriteString("Per-KM run data, one row per kilometre:\n")
	b.WriteString("Columns:\n")
	for _, c := range columns {
		fmt.Fprintf(&b, "- %s: %s\n", c[0], c[1])
	}
	seen := make(map[string]struct{})
	var names []string
	for _, r := range rows {
		if _, ok := seen[r.RunName]; ok {
			continue
		}
		seen[r.RunName] = struct{}{}
		names = append(names, strconv.Quote(r.RunName))
	}
	fmt.Fprintf(&b, "Rows: %d\n", len(rows))
	fmt.Fprintf(&b, "Available run names in the data: [%s]\n", strings.Join(names, ", "))
	b.WriteString("Use these exact run names when filtering data.")
	return b.String()
}

var columns = [][2]string{
	{"date", "date and time of the run (text)"},
	{"run_name", "name of the run, unique per run"},
	{"run_type", "Long, Easy, Tempo, Interval or Unknown"},
	{"km", "kilometre index within the run (int)"},
	{"pace", "pace of the kilometre in min/km (float)"},
	{"hr", "heart rate of the kilometre in bpm (float)"},
	{"power", "power of the kilometre in W (float)"},
	{"elevation_gain", "elevation gain of the kilometre in m (float)"},
	{"distance", "total run distance in km (float)"},
	{"avg_hr", "average heart rate of the run (float)"},
	{"avg_pace", "average pace of the run in min/km (float)"},
	{"total_elevation", "total elevation gain of the run in m (float)"},
}
