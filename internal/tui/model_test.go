package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrag/internal/domain"
	"runrag/internal/retrieval"
	"runrag/internal/service"
)

type stubAsker struct {
	answer service.Answer
	err    error
	opts   service.AskOptions
}

func (s *stubAsker) Ask(_ context.Context, _, _ string, opts service.AskOptions) (service.Answer, error) {
	s.opts = opts
	return s.answer, s.err
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func submit(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = next.(Model)
	assert.True(t, m.busy)
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestModel_AskShowsReplyAndHistory(t *testing.T) {
	typ := domain.TypeTempo
	stub := &stubAsker{answer: service.Answer{
		Filter:    domain.QueryFilter{Type: &typ},
		Tier:      retrieval.TierFilter,
		Documents: make([]domain.StoredDocument, 1),
		Context:   "2025-07-01 | Tempo Run - 1 | Type: Tempo\nKM 1: Pace 5 min/km",
		Reply:     "• Solid tempo.",
	}}
	m := sized(New(stub, "alice", true))

	m = submit(t, m, "how was my tempo?")
	assert.False(t, m.busy)
	assert.Equal(t, paneReply, m.pane)
	assert.Contains(t, m.renderPane(), "Solid tempo")
	assert.Contains(t, m.status, "1 runs")
	assert.Contains(t, m.status, "filter")
	assert.Equal(t, []string{"Q: how was my tempo?", "A: • Solid tempo."}, m.history)
	assert.True(t, stub.opts.Coach)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, paneContext, m.pane)
	assert.Contains(t, m.renderPane(), "Tempo Run - 1")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Contains(t, m.renderPane(), `"type": "Tempo"`)

	m = submit(t, m, "and again?")
	assert.Equal(t, "Q: how was my tempo?\nA: • Solid tempo.", stub.opts.History)
}

func TestModel_ErrorStatus(t *testing.T) {
	m := sized(New(&stubAsker{err: errors.New("rate limited")}, "alice", false))
	m = submit(t, m, "anything")
	assert.Equal(t, "Error: rate limited", m.status)
	assert.Equal(t, "No answer yet.", m.renderPane())
}

func TestModel_FallbackStatus(t *testing.T) {
	m := sized(New(&stubAsker{answer: service.Answer{Tier: retrieval.TierFallback, Fallback: true}}, "alice", false))
	m = submit(t, m, "intervals")
	assert.Contains(t, m.status, "showing latest")
	assert.Equal(t, paneContext, m.pane)
}

func TestHighlightBestLines(t *testing.T) {
	text := "2025-07-01 | Tempo Run - 1\nKM 1: Pace 5\n2025-07-02 | Easy Run - 1"
	out := highlightBestLines(text, "tempo")
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Tempo Run - 1")
	assert.Equal(t, "2025-07-02 | Easy Run - 1", lines[2])
	assert.Equal(t, text, highlightBestLines(text, ""))
}

func TestDescribeFilter_Empty(t *testing.T) {
	assert.Equal(t, "No constraints.", describeFilter(domain.QueryFilter{}))
}
