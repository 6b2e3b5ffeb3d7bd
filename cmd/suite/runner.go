package suite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DanyaHDanny/tafordqe/cmd/providers"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// Observer receives results as they are produced. Methods are called from
// worker goroutines and must be safe for concurrent use.
type Observer interface {
	CheckFinished(scenario string, result CheckResult)
	ScenarioFinished(result ScenarioResult)
}

// Runner executes suites. Datasets are fetched once per scenario and shared
// by its checks; each check runs regardless of the others' outcome.
type Runner struct {
	provider  providers.Provider
	logger    *slog.Logger
	workers   int
	tolerance float64
	observers []Observer
	now       func() time.Time
}

type RunnerOption func(*Runner)

// WithWorkers bounds how many scenarios run at once.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithFloatTolerance sets the default tolerance for completeness checks.
func WithFloatTolerance(eps float64) RunnerOption {
	return func(r *Runner) { r.tolerance = eps }
}

func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(provider providers.Provider, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		provider: provider,
		logger:   logger,
		workers:  1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every scenario and returns the report in suite order. Check
// failures are part of the report; only cancellation returns an error.
func (r *Runner) Run(ctx context.Context, s *Suite) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Suite:     s.Name,
		StartedAt: r.now(),
	}
	r.logger.Info("starting suite", "suite", s.Name, "run_id", report.RunID,
		"scenarios", len(s.Scenarios), "workers", r.workers)

	results := make([]ScenarioResult, len(s.Scenarios))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range s.Scenarios {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.runScenario(gctx, &s.Scenarios[i])
			for _, o := range r.observers {
				o.ScenarioFinished(results[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report.Scenarios = results
	report.Duration = r.now().Sub(report.StartedAt)
	summary := report.Summary()
	r.logger.Info("suite finished", "suite", s.Name, "run_id", report.RunID,
		"passed", summary.Passed, "failed", summary.Failed, "errors", summary.Errors,
		"duration", report.Duration)
	return report, nil
}

type dataset struct {
	table *quality.Table
	err   error
}

func (r *Runner) runScenario(ctx context.Context, sc *Scenario) ScenarioResult {
	start := r.now()
	logger := r.logger.With("scenario", sc.Name)
	result := ScenarioResult{Name: sc.Name, Description: sc.Description, Requirement: sc.Requirement}

	needed := map[Side]bool{}
	for _, c := range sc.Checks {
		if c.Type.crossTable() {
			needed[SideSource], needed[SideTarget] = true, true
			continue
		}
		for _, side := range c.sides() {
			needed[side] = true
		}
	}

	datasets := map[Side]dataset{}
	for _, side := range []Side{SideSource, SideTarget} {
		if !needed[side] {
			continue
		}
		ds, info := r.fetch(ctx, logger, side, sc.locator(side))
		datasets[side] = ds
		if side == SideSource {
			result.Source = info
		} else {
			result.Target = info
		}
	}

	for _, spec := range sc.Checks {
		for _, res := range r.runCheck(spec, datasets) {
			switch res.Status {
			case StatusPassed:
				logger.Info("check passed", "check", res.Name)
			case StatusFailed:
				logger.Warn("check failed", "check", res.Name, "condition", res.Condition)
				logger.Debug("check failure details", "check", res.Name, "message", res.Message)
			default:
				logger.Error("check errored", "check", res.Name, "error", res.Message)
			}
			for _, o := range r.observers {
				o.CheckFinished(sc.Name, res)
			}
			result.Checks = append(result.Checks, res)
		}
	}
	result.Duration = r.now().Sub(start)
	return result
}

func (r *Runner) fetch(ctx context.Context, logger *slog.Logger, side Side, loc *providers.Locator) (dataset, *DatasetInfo) {
	if loc == nil {
		err := fmt.Errorf("%w: %s", ErrSideRequired, side)
		return dataset{err: err}, &DatasetInfo{Error: err.Error()}
	}

	start := r.now()
	info := &DatasetInfo{Locator: loc.String()}
	table, err := r.provider.Fetch(ctx, *loc)
	info.Duration = r.now().Sub(start)
	if err != nil {
		logger.Error("failed to fetch dataset", "side", side, "locator", info.Locator, "error", err)
		info.Error = err.Error()
		return dataset{err: err}, info
	}
	info.Rows = table.Len()
	info.Columns = table.ColumnNames()
	logger.Debug("fetched dataset", "side", side, "rows", info.Rows, "duration", info.Duration)
	return dataset{table: table}, info
}

func (r *Runner) runCheck(spec CheckSpec, datasets map[Side]dataset) []CheckResult {
	if spec.Type.crossTable() {
		res := CheckResult{Name: string(spec.Type), Type: spec.Type}
		src, tgt := datasets[SideSource], datasets[SideTarget]
		switch {
		case src.err != nil:
			res.Status, res.Message = StatusError, "source unavailable: "+src.err.Error()
		case tgt.err != nil:
			res.Status, res.Message = StatusError, "target unavailable: "+tgt.err.Error()
		default:
			start := r.now()
			r.classify(&res, r.evaluate(spec, src.table, tgt.table))
			res.Duration = r.now().Sub(start)
		}
		return []CheckResult{res}
	}

	var results []CheckResult
	for _, side := range spec.sides() {
		res := CheckResult{Name: fmt.Sprintf("%s[%s]", spec.Type, side), Type: spec.Type, Side: side}
		ds := datasets[side]
		if ds.err != nil {
			res.Status, res.Message = StatusError, fmt.Sprintf("%s unavailable: %s", side, ds.err)
		} else {
			start := r.now()
			r.classify(&res, r.evaluate(spec, ds.table, nil))
			res.Duration = r.now().Sub(start)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) evaluate(spec CheckSpec, a, b *quality.Table) error {
	switch spec.Type {
	case CheckCount:
		return quality.CheckCount(a, b)
	case CheckCompleteness:
		tolerance := r.tolerance
		if spec.FloatTolerance != nil {
			tolerance = *spec.FloatTolerance
		}
		return quality.CheckDataCompleteness(a, b, quality.WithFloatTolerance(tolerance))
	case CheckEmpty:
		return quality.CheckDatasetIsEmpty(a)
	case CheckNotEmpty:
		return quality.CheckDatasetIsNotEmpty(a)
	case CheckNotNull:
		return quality.CheckNotNullValues(a, spec.Columns...)
	case CheckDuplicates:
		return quality.CheckDuplicates(a, spec.Columns...)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCheck, spec.Type)
}

func (r *Runner) classify(res *CheckResult, err error) {
	if err == nil {
		res.Status = StatusPassed
		return
	}
	res.Message = err.Error()
	if v, ok := quality.AsViolation(err); ok {
		res.Status = StatusFailed
		res.Condition = v.Condition()
		res.Details = v
		return
	}
	res.Status = StatusError
}
