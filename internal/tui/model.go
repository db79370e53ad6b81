package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"runrag/internal/domain"
	"runrag/internal/service"
)

// Asker is the TUI-facing subset of the service.
type Asker interface {
	Ask(ctx context.Context, user, question string, opts service.AskOptions) (service.Answer, error)
}

type pane int

const (
	paneReply pane = iota
	paneContext
	paneFilter
	paneCount
)

var paneTitles = [...]string{"Reply", "Context", "Filter"}

type answerMsg struct {
	question string
	answer   service.Answer
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  Asker
	user     string
	coach    bool
	input    textinput.Model
	viewport viewport.Model
	answer   *service.Answer
	history  []string
	status   string
	pane     pane
	ready    bool
	busy     bool
	lastQ    string
}

// New creates a new TUI model instance. coach asks for a generated reply
// on every question.
func New(svc Asker, user string, coach bool) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your runs and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  svc,
		user:     user,
		coach:    coach,
		input:    ti,
		viewport: vp,
		status:   "Ready. Up/Down switches panes, Ctrl+C quits.",
		pane:     paneContext,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, pane title, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderPane())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = nil
		} else {
			ans := msg.answer
			m.answer = &ans
			m.lastQ = msg.question
			m.history = append(m.history, "Q: "+msg.question)
			if ans.Reply != "" {
				m.history = append(m.history, "A: "+ans.Reply)
				m.pane = paneReply
			} else {
				m.pane = paneContext
			}
			m.status = statusLine(ans)
		}
		m.viewport.SetContent(m.renderPane())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Thinking about %q...", q)
			m.input.SetValue("")
			return m, m.ask(q)
		case "down":
			m.pane = (m.pane + 1) % paneCount
			m.viewport.SetContent(m.renderPane())
			return m, nil
		case "up":
			m.pane = (m.pane - 1 + paneCount) % paneCount
			m.viewport.SetContent(m.renderPane())
			return m, nil
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	svc, user := m.service, m.user
	opts := service.AskOptions{Coach: m.coach, History: strings.Join(m.history, "\n")}
	return func() tea.Msg {
		ans, err := svc.Ask(context.Background(), user, q, opts)
		return answerMsg{question: q, answer: ans, err: err}
	}
}

// View renders the TUI layout and the current pane.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("runrag") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  user "+m.user)
	title := paneTitleStyle.Render(fmt.Sprintf("%s (%d/%d)", paneTitles[m.pane], m.pane+1, paneCount))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + title + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderPane() string {
	if m.answer == nil {
		return "No answer yet."
	}
	switch m.pane {
	case paneReply:
		if m.answer.Reply == "" {
			return "No coaching reply. Start with --coach to get one."
		}
		return m.answer.Reply
	case paneFilter:
		return describeFilter(m.answer.Filter)
	default:
		return highlightBestLines(m.answer.Context, m.lastQ)
	}
}

func statusLine(ans service.Answer) string {
	s := fmt.Sprintf("%d runs, %d splits via %s", len(ans.Documents), len(ans.Rows), ans.Tier)
	if ans.Fallback {
		s += " (nothing matched, showing latest)"
	}
	return s
}

func describeFilter(f domain.QueryFilter) string {
	if f.IsEmpty() {
		return "No constraints."
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	paneTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
)

// highlightBestLines emphasises the summary lines that share the most words
// with the question.
func highlightBestLines(text, query string) string {
	lines := strings.Split(text, "\n")
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	best := 0
	scores := make([]int, len(lines))
	for i, l := range lines {
		if strings.HasPrefix(l, "KM ") {
			continue
		}
		scores[i] = tokenOverlapScore(qTokens, l)
		if scores[i] > best {
			best = scores[i]
		}
	}
	if best == 0 {
		return text
	}
	for i := range lines {
		if scores[i] == best {
			lines[i] = highlightStyle.Render(lines[i])
		}
	}
	return strings.Join(lines, "\n")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, line string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(line), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
