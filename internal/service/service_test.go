package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrag/internal/activity"
	"runrag/internal/docstore"
	"runrag/internal/embedding/hashing"
	"runrag/internal/interpreter"
	"runrag/internal/llm"
	"runrag/internal/retrieval"
)

func f(v float64) *float64 { return &v }

func run(id int64, name, start string, hr float64) activity.Activity {
	return activity.Activity{Summary: activity.Summary{
		ID:               id,
		Name:             name,
		SportType:        "Run",
		StartDateLocal:   start,
		Distance:         f(5000),
		AverageHeartrate: f(hr),
		AverageSpeed:     f(3),
	}}
}

func fixtures() []activity.Activity {
	tempo := run(1, "Tempo Run - 1", "2025-07-01T06:00:00Z", 165)
	tempo.Streams = &activity.Streams{
		Distance:  &activity.Stream{Data: []*float64{f(0), f(900), f(1100), f(2100)}},
		Heartrate: &activity.Stream{Data: []*float64{f(150), f(160), f(170), f(172)}},
	}
	ride := run(4, "Morning Ride", "2025-07-04T06:00:00Z", 120)
	ride.Summary.SportType = "Ride"
	return []activity.Activity{
		tempo,
		run(2, "Easy Run - 1", "2025-07-02T06:00:00Z", 140),
		run(3, "Long Run - 1", "2025-07-03T06:00:00Z", 150),
		ride,
		{Summary: activity.Summary{ID: 5, SportType: "Run"}},
	}
}

// scripted answers interpreter prompts with filter and coach prompts with coach.
func scripted(filter, coach string) llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Output JSON:") {
			return filter, nil
		}
		return coach, nil
	})
}

func newService(t *testing.T, gen llm.Generator) *Service {
	t.Helper()
	mgr := docstore.NewManager(docstore.Config{Backend: docstore.BackendMemory}, hashing.NewEmbedder(64), nil)
	t.Cleanup(func() { _ = mgr.Close() })
	svc := New(mgr, gen, Config{Retrieval: retrieval.DefaultConfig()}, nil)
	_, err := svc.Ingest(context.Background(), "alice", fixtures())
	require.NoError(t, err)
	return svc
}

func TestIngest_SkipsNonRunsInvalidAndDuplicates(t *testing.T) {
	mgr := docstore.NewManager(docstore.Config{}, hashing.NewEmbedder(64), nil)
	svc := New(mgr, nil, Config{}, nil)
	ctx := context.Background()

	rep, err := svc.Ingest(ctx, "bob", fixtures())
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Seen)
	assert.Equal(t, 3, rep.Written)
	assert.Equal(t, 1, rep.NonRuns)
	require.Len(t, rep.Skipped, 1)
	var ingErr *activity.IngestionError
	assert.ErrorAs(t, rep.Skipped[0], &ingErr)

	rep, err = svc.Ingest(ctx, "bob", fixtures())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Written)
	assert.Equal(t, 3, rep.Duplicates)

	names, err := svc.Names(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Long Run - 1", "Easy Run - 1", "Tempo Run - 1"}, names)
}

func TestAsk_TypeFilter(t *testing.T) {
	svc := newService(t, scripted(`{"type": "Tempo"}`, ""))

	ans, err := svc.Ask(context.Background(), "alice", "how were my tempo runs?", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, retrieval.TierFilter, ans.Tier)
	assert.False(t, ans.Fallback)
	require.Len(t, ans.Documents, 1)
	assert.Equal(t, "Tempo Run - 1", ans.Documents[0].Metadata.Name)
	assert.True(t, strings.HasPrefix(ans.Context, "2025-07-01 06:00:00 | Tempo Run - 1 |"))
	require.Len(t, ans.Rows, 2)
	assert.Equal(t, 2, ans.Rows[1].KM)
	assert.Empty(t, ans.Reply)
}

func TestAsk_NamesBeatLastN(t *testing.T) {
	svc := newService(t, scripted(`{"run_names": ["easy run - 1"], "last_n_runs": 2}`, ""))

	ans, err := svc.Ask(context.Background(), "alice", "compare", AskOptions{})
	require.NoError(t, err)
	assert.Equal(t, retrieval.TierNames, ans.Tier)
	assert.Nil(t, ans.Filter.LastNRuns)
	require.Len(t, ans.Documents, 1)
	assert.Equal(t, "Easy Run - 1", ans.Documents[0].Metadata.Name)
}

func TestAsk_FallbackPreamble(t *testing.T) {
	svc := newService(t, scripted(`{"type": "Interval"}`, ""))

	ans, err := svc.Ask(context.Background(), "alice", "intervals?", AskOptions{})
	require.NoError(t, err)
	assert.True(t, ans.Fallback)
	assert.Equal(t, retrieval.TierFallback, ans.Tier)
	assert.True(t, strings.HasPrefix(ans.Context, FallbackPreamble(3)))
	assert.Len(t, ans.Documents, 3)
	// the preamble is not a run header
	assert.Len(t, ans.Rows, 4)
}

func TestAsk_CoachReplyIsFormatted(t *testing.T) {
	var coachPrompt string
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Output JSON:") {
			return "```json\n{\"last_n_runs\": 1}\n```", nil
		}
		coachPrompt = prompt
		return "**Nice** work.\n- Keep `easy` days easy.", nil
	})
	svc := newService(t, gen)

	ans, err := svc.Ask(context.Background(), "alice", "how did my last run go?", AskOptions{Coach: true, History: "we talked about pacing"})
	require.NoError(t, err)
	require.Len(t, ans.Documents, 1)
	assert.Equal(t, "Long Run - 1", ans.Documents[0].Metadata.Name)
	assert.Equal(t, "Nice work.\n• Keep easy days easy.", ans.Reply)
	assert.Contains(t, coachPrompt, ans.Context)
	assert.Contains(t, coachPrompt, "how did my last run go?")
	assert.Contains(t, coachPrompt, "we talked about pacing")
}

func TestAsk_InterpretationErrorSurfaces(t *testing.T) {
	svc := newService(t, scripted("I am not sure what you mean", ""))

	_, err := svc.Ask(context.Background(), "alice", "???", AskOptions{})
	var qerr *interpreter.QueryInterpretationError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "I am not sure what you mean", qerr.Raw)
}

func TestAsk_GeneratorErrorSurfaces(t *testing.T) {
	boom := errors.New("boom")
	svc := newService(t, llm.GeneratorFunc(func(context.Context, string) (string, error) { return "", boom }))

	_, err := svc.Ask(context.Background(), "alice", "anything", AskOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestAsk_WithoutGenerator(t *testing.T) {
	svc := newService(t, nil)
	_, err := svc.Ask(context.Background(), "alice", "anything", AskOptions{})
	assert.ErrorIs(t, err, ErrNoGenerator)
}

func TestLatestAndReset(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	text, err := svc.Latest(ctx, "alice", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "2025-07-03 06:00:00 | Long Run - 1 |"))
	assert.NotContains(t, text, "KM 1")

	require.NoError(t, svc.Reset(ctx, "alice"))
	text, err = svc.Latest(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Equal(t, "No run data available.", text)

	_, err = svc.Latest(ctx, "../etc", 1)
	assert.ErrorIs(t, err, docstore.ErrInvalidUser)
}
