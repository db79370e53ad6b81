package service

import (
	"strings"
	"text/template"
)

var coachTemplate = template.Must(template.New("coach").Parse(`You are a running analytics assistant acting as the user's personal coach.
Answer the question using only the run data below. Each run starts with a
summary line followed by its per-kilometre splits.
{{if .History}}
Earlier conversation:
{{.History}}
{{end}}
Run data:
{{.Runs}}

Question:
{{.Question}}

How to answer:
• Plain text only, no markdown. Start each point with "•".
• Give 5 to 7 concrete insights that cite paces, heart rates or dates.
• Mention what went well and what to work on next.
• Keep the whole answer under 3000 characters.
`))

type coachData struct {
	History  string
	Runs     string
	Question string
}

func renderCoachPrompt(d coachData) (string, error) {
	var b strings.Builder
	if err := coachTemplate.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}
