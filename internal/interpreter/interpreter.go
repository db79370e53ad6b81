// Package interpreter turns a free-text question into a QueryFilter using a
// generative model whose output is repaired where it is safe to do so.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"runrag/internal/domain"
	"runrag/internal/llm"
)

// QueryInterpretationError reports model output that could not be turned into
// a filter. Raw holds the model text for diagnostics.
type QueryInterpretationError struct {
	Raw string
	Err error
}

func (e *QueryInterpretationError) Error() string {
	return fmt.Sprintf("interpreting query: %v", e.Err)
}

func (e *QueryInterpretationError) Unwrap() error { return e.Err }

// Interpreter calls the generator once per query. It never retries on bad
// output; rate-limit retries belong to the generator.
type Interpreter struct {
	gen    llm.Generator
	now    func() time.Time
	logger *zap.Logger
}

// Option customises an Interpreter.
type Option func(*Interpreter)

// WithClock sets the clock used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

// WithLogger sets the logger for contract repairs.
func WithLogger(l *zap.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

func New(gen llm.Generator, opts ...Option) *Interpreter {
	i := &Interpreter{gen: gen, now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Interpret asks the model for a filter describing text.
func (i *Interpreter) Interpret(ctx context.Context, text string) (domain.QueryFilter, error) {
	prompt, err := renderPrompt(promptData{
		Types: "['" + strings.Join(domain.KnownTypes, "', '") + "']",
		Today: i.now().Format("2006-01-02"),
		Query: text,
	})
	if err != nil {
		return domain.QueryFilter{}, fmt.Errorf("rendering interpreter prompt: %w", err)
	}
	raw, err := i.gen.Generate(ctx, prompt)
	if err != nil {
		return domain.QueryFilter{}, err
	}
	f, err := Parse(raw)
	if err != nil {
		i.logger.Warn("unusable interpreter output", zap.String("raw", raw), zap.Error(err))
		return domain.QueryFilter{}, err
	}
	if f.HasRunNames() && f.LastNRuns != nil {
		i.logger.Info("run_names and last_n_runs both set, keeping run_names",
			zap.Strings("run_names", f.RunNames), zap.Int("last_n_runs", *f.LastNRuns))
		f.LastNRuns = nil
	}
	return f, nil
}

// Parse decodes model output into a filter. It tolerates code fences,
// numbers sent as strings, integral floats for last_n_runs and "null" or
// empty strings for absent values.
func Parse(raw string) (domain.QueryFilter, error) {
	fields, err := llm.ExtractJSON[map[string]json.RawMessage](raw, nil)
	if err != nil {
		return domain.QueryFilter{}, &QueryInterpretationError{Raw: raw, Err: err}
	}

	var (
		f    domain.QueryFilter
		errs []error
	)
	collect := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	t, err := optString(fields["type"])
	collect("type", err)
	f.Type = canonicalType(t)

	f.MinAvgHR, err = optNumber(fields["min_avg_hr"])
	collect("min_avg_hr", err)
	f.MaxAvgHR, err = optNumber(fields["max_avg_hr"])
	collect("max_avg_hr", err)
	f.DistanceKM, err = optNumber(fields["distance_km"])
	collect("distance_km", err)
	f.StartDate, err = optString(fields["start_date"])
	collect("start_date", err)
	f.EndDate, err = optString(fields["end_date"])
	collect("end_date", err)
	f.MetricFilter, err = optString(fields["metric_filter"])
	collect("metric_filter", err)
	f.LastNRuns, err = optCount(fields["last_n_runs"])
	collect("last_n_runs", err)
	f.RunNames, err = optNames(fields["run_names"])
	collect("run_names", err)

	if len(errs) > 0 {
		return domain.QueryFilter{}, &QueryInterpretationError{
			Raw: raw,
			Err: fmt.Errorf("%w: %w", llm.ErrInvalidOutput, errors.Join(errs...)),
		}
	}
	return f, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func optString(raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("want string, got %s", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil, nil
	}
	return &s, nil
}

func optNumber(raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v, nil
	}
	s, err := optString(raw)
	if err != nil {
		return nil, fmt.Errorf("want number, got %s", raw)
	}
	if s == nil {
		return nil, nil
	}
	v, err = strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil, fmt.Errorf("want number, got %q", *s)
	}
	return &v, nil
}

func optCount(raw json.RawMessage) (*int, error) {
	v, err := optNumber(raw)
	if err != nil || v == nil {
		return nil, err
	}
	if *v != math.Trunc(*v) {
		return nil, fmt.Errorf("want integer, got %v", *v)
	}
	if *v <= 0 {
		return nil, nil
	}
	n := int(*v)
	return &n, nil
}

func optNames(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		one, serr := optString(raw)
		if serr != nil {
			return nil, fmt.Errorf("want list of strings, got %s", raw)
		}
		if one == nil {
			return nil, nil
		}
		list = []string{*one}
	}
	names := make([]string, 0, len(list))
	for _, n := range list {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

// canonicalType maps a case-insensitive known type to its canonical
// spelling. Other values are kept so that retrieval finds nothing and falls
// back.
func canonicalType(t *string) *string {
	if t == nil {
		return nil
	}
	for _, k := range domain.KnownTypes {
		if strings.EqualFold(*t, k) {
			k := k
			return &k
		}
	}
	return t
}
