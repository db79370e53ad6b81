package interpreter

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("interpreter").Parse(`You are an expert sports data interpreter. Convert the user's question about
their running activities into a strict JSON object with exactly these keys:

{
  "type": string or null,          // one of {{.Types}}
  "min_avg_hr": number or null,
  "max_avg_hr": number or null,
  "start_date": "YYYY-MM-DD" or null,
  "end_date": "YYYY-MM-DD" or null,
  "last_n_runs": integer or null,
  "distance_km": number or null,
  "metric_filter": string or null,
  "run_names": list of strings or null
}

Rules:
- Only set keys the user asked for; every other key must be null.
- Today is {{.Today}}. Turn relative time ("last 30 days", "this month") into dates.
- Output JSON only, without commentary.
- Never assume filters the user did not ask for.
- Specific runs ("Tempo Run 1 and 2") go to run_names using the stored format
  with a dash, e.g. ["Tempo Run - 1", "Tempo Run - 2"], and last_n_runs is null.
- Only "last N runs" sets last_n_runs, and then run_names is null.

User query:
{{printf "%q" .Query}}

Output JSON:
`))

type promptData struct {
	Types string
	Today string
	Query string
}

func renderPrompt(d promptData) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}
