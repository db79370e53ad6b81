// Package service wires the pipeline stages into the two user-facing
// workflows: ingesting activities and answering questions about them.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"runrag/internal/activity"
	"runrag/internal/contextcodec"
	"runrag/internal/docstore"
	"runrag/internal/domain"
	"runrag/internal/interpreter"
	"runrag/internal/llm"
	"runrag/internal/reply"
	"runrag/internal/retrieval"
)

// ErrNoGenerator is returned by Ask when no generative backend is configured.
var ErrNoGenerator = errors.New("no generator configured")

// Config tunes the workflows.
type Config struct {
	Retrieval retrieval.Config
	// ReplyMaxChars bounds coaching replies; <= 0 means reply.DefaultMaxChars.
	ReplyMaxChars int
}

// Service is safe for concurrent use by different users.
type Service struct {
	stores *docstore.Manager
	gen    llm.Generator
	interp *interpreter.Interpreter
	cfg    Config
	logger *zap.Logger
}

// New builds a service. gen may be nil, in which case only ingestion and
// direct retrieval work.
func New(stores *docstore.Manager, gen llm.Generator, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{stores: stores, gen: gen, cfg: cfg, logger: logger}
	if gen != nil {
		s.interp = interpreter.New(gen, interpreter.WithLogger(logger.Named("interpreter")))
	}
	return s
}

// IngestReport counts what happened to each input activity.
type IngestReport struct {
	Seen       int
	NonRuns    int
	Duplicates int
	Written    int
	// Skipped holds one *activity.IngestionError per unusable activity.
	Skipped []error
}

// Ingest stores the runs in acts that user does not have yet. Non-run
// activities and activities that cannot be normalized are skipped. Records
// written before a failure stay stored.
func (s *Service) Ingest(ctx context.Context, user string, acts []activity.Activity) (IngestReport, error) {
	rep := IngestReport{Seen: len(acts)}
	store, err := s.stores.Open(ctx, user)
	if err != nil {
		return rep, err
	}

	runs := make([]activity.Activity, 0, len(acts))
	for _, a := range acts {
		if !activity.IsRun(a.Sport()) {
			rep.NonRuns++
			continue
		}
		runs = append(runs, a)
	}

	records, errs := activity.NormalizeBatch(runs)
	for _, e := range errs {
		s.logger.Warn("skipping activity", zap.String("user", user), zap.Error(e))
	}
	rep.Skipped = errs

	known, err := store.ListNames(ctx)
	if err != nil {
		return rep, fmt.Errorf("listing stored names: %w", err)
	}
	fresh := records[:0]
	for _, rec := range records {
		if _, ok := known[rec.Name]; ok {
			rep.Duplicates++
			continue
		}
		known[rec.Name] = struct{}{}
		fresh = append(fresh, rec)
	}

	rep.Written, err = store.Upsert(ctx, fresh)
	s.logger.Info("ingest finished",
		zap.String("user", user),
		zap.Int("seen", rep.Seen),
		zap.Int("written", rep.Written),
		zap.Int("duplicates", rep.Duplicates),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("non_runs", rep.NonRuns),
	)
	if err != nil {
		return rep, fmt.Errorf("storing activities: %w", err)
	}
	return rep, nil
}

// AskOptions controls Ask.
type AskOptions struct {
	// Coach adds a generated coaching reply over the retrieved context.
	Coach bool
	// Limit caps the number of documents; <= 0 means the retrieval cap.
	Limit int
	// History is earlier conversation text handed to the coach.
	History string
}

// Answer is everything Ask produced for one question.
type Answer struct {
	Filter    domain.QueryFilter
	Tier      retrieval.Tier
	Fallback  bool
	Documents []domain.StoredDocument
	Context   string
	Rows      []contextcodec.Row
	// Reply is empty unless AskOptions.Coach was set.
	Reply string
}

// Ask interprets question, retrieves the matching runs of user and renders
// them as context. Interpretation and retrieval errors are returned as is.
func (s *Service) Ask(ctx context.Context, user, question string, opts AskOptions) (Answer, error) {
	if s.interp == nil {
		return Answer{}, ErrNoGenerator
	}
	f, err := s.interp.Interpret(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("interpreting question: %w", err)
	}
	ans, err := s.Retrieve(ctx, user, f, opts.Limit)
	if err != nil {
		return Answer{}, err
	}
	if !opts.Coach {
		return ans, nil
	}

	prompt, err := renderCoachPrompt(coachData{History: opts.History, Runs: ans.Context, Question: question})
	if err != nil {
		return Answer{}, fmt.Errorf("rendering coach prompt: %w", err)
	}
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generating reply: %w", err)
	}
	ans.Reply = reply.Format(raw, s.cfg.ReplyMaxChars)
	return ans, nil
}

// Retrieve runs an already structured filter for user.
func (s *Service) Retrieve(ctx context.Context, user string, f domain.QueryFilter, limit int) (Answer, error) {
	store, err := s.stores.Open(ctx, user)
	if err != nil {
		return Answer{}, err
	}
	engine := retrieval.New(store, s.cfg.Retrieval, s.logger.Named("retrieval").With(zap.String("user", user)))
	res, err := engine.Query(ctx, f, limit)
	if err != nil {
		return Answer{}, err
	}

	text := contextcodec.Serialize(res.Documents, contextcodec.Options{IncludeSplits: true})
	if res.Fallback {
		text = FallbackPreamble(len(res.Documents)) + "\n\n" + text
	}
	return Answer{
		Filter:    f,
		Tier:      res.Tier,
		Fallback:  res.Fallback,
		Documents: res.Documents,
		Context:   text,
		Rows:      contextcodec.Deserialize(text),
	}, nil
}

// FallbackPreamble introduces a context built from the latest n runs.
func FallbackPreamble(n int) string {
	return fmt.Sprintf("No specific runs found for your query. Here are your latest %d runs for context:", n)
}

// Names lists the stored run names of user, newest first.
func (s *Service) Names(ctx context.Context, user string) ([]string, error) {
	store, err := s.stores.Open(ctx, user)
	if err != nil {
		return nil, err
	}
	docs, err := store.Search(ctx, "", "", 0)
	if err != nil {
		return nil, err
	}
	docstore.SortByDateDesc(docs)
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Metadata.Name)
	}
	return names, nil
}

// Latest returns the n most recent runs of user as context text.
func (s *Service) Latest(ctx context.Context, user string, n int) (string, error) {
	store, err := s.stores.Open(ctx, user)
	if err != nil {
		return "", err
	}
	docs, err := store.Latest(ctx, n)
	if err != nil {
		return "", err
	}
	return contextcodec.Serialize(docs, contextcodec.Options{}), nil
}

// Reset removes every stored run of user.
func (s *Service) Reset(ctx context.Context, user string) error {
	store, err := s.stores.Open(ctx, user)
	if err != nil {
		return err
	}
	return store.Reset(ctx)
}
