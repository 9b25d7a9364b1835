// Package pipeline runs the batch: load the export, build the yearly summary
// and the trend series, write them, and publish the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/output"
	"github.com/couchcryptid/civic-data-etl/internal/trend"
	"github.com/google/uuid"
)

// Step names, used in logs, metrics, and Report.Failed.
const (
	StepSummary = "service requests"
	StepTrends  = "trends"
	StepPublish = "publish"
)

// DatasetLoader reads the whole export into memory.
type DatasetLoader interface {
	Load(ctx context.Context) (domain.Dataset, error)
}

// ArtifactWriter persists the finalized artifacts.
type ArtifactWriter interface {
	WriteSummary(s aggregate.Summary) ([]output.Artifact, error)
	WriteTrends(t trend.Trends) (output.Artifact, error)
}

// Notifier announces written artifacts to downstream consumers.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, notices []output.Notice) error
	Close() error
}

// Mirror copies written artifacts to secondary storage.
type Mirror interface {
	Name() string
	Upload(ctx context.Context, runID string, year int, artifacts []output.Artifact) error
}

// Options holds the per-run parameters.
type Options struct {
	Year              int
	Limits            aggregate.Limits
	MaxResolutionDays int
	Bounds            domain.Bounds
}

// Report describes a finished run.
type Report struct {
	RunID     string
	Year      int
	Files     int
	Rows      int
	Artifacts []output.Artifact
	Failed    []string
}

// OK reports whether every step succeeded.
func (r Report) OK() bool {
	return len(r.Failed) == 0
}

// Pipeline orchestrates one batch run: load, summarize, compose trends,
// publish.
type Pipeline struct {
	loader    DatasetLoader
	writer    ArtifactWriter
	weather   domain.WeatherProvider
	notifiers []Notifier
	mirrors   []Mirror
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. Pass a nil weather provider to disable weather
// enrichment.
func New(loader DatasetLoader, writer ArtifactWriter, weather domain.WeatherProvider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Bounds == (domain.Bounds{}) {
		opts.Bounds = domain.StLouisBounds
	}
	return &Pipeline{
		loader:  loader,
		writer:  writer,
		weather: weather,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// WithNotifier adds a notification target for the publish step.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	p.notifiers = append(p.notifiers, n)
	return p
}

// WithMirror adds an artifact mirror for the publish step.
func (p *Pipeline) WithMirror(m Mirror) *Pipeline {
	p.mirrors = append(p.mirrors, m)
	return p
}

// CheckReadiness returns nil once a run has completed without failed steps.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// Close releases every notifier.
func (p *Pipeline) Close() error {
	var errs []error
	for _, n := range p.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// runState is shared by the steps of a single run.
type runState struct {
	id         string
	logger     *slog.Logger
	dataset    domain.Dataset
	normalizer *domain.Normalizer
	artifacts  []output.Artifact
}

type step struct {
	name string
	fn   func(ctx context.Context, rs *runState) error
}

// Run executes every step once. A load failure or a step error wrapping
// domain.ErrMissingInput aborts the run; any other step failure is logged and
// recorded in the report while the remaining steps still run.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	rs := &runState{id: uuid.NewString()}
	rs.logger = p.logger.With("run_id", rs.id)
	report := Report{RunID: rs.id, Year: p.opts.Year}

	start := clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer func() {
		p.metrics.PipelineRunning.Set(0)
		p.metrics.RunDuration.Observe(clock.Since(start).Seconds())
	}()

	rs.logger.Info("pipeline started", "year", p.opts.Year)

	ds, err := p.loader.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load dataset: %w", err)
	}
	rs.dataset = ds
	report.Files = len(ds.Files)
	report.Rows = len(ds.Records)

	fields := domain.ResolveColumns(ds.Header)
	rs.logger.Info("columns resolved", fields.LogAttrs()...)
	rs.normalizer = domain.NewNormalizer(fields, p.opts.Bounds, p.opts.MaxResolutionDays)

	steps := []step{
		{name: StepSummary, fn: p.summarize},
		{name: StepTrends, fn: p.composeTrends},
	}
	if len(p.notifiers)+len(p.mirrors) > 0 {
		steps = append(steps, step{name: StepPublish, fn: p.publish})
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			rs.logger.Info("pipeline stopping", "reason", err)
			report.Artifacts = rs.artifacts
			return report, err
		}
		if err := p.runStep(ctx, rs, s); err != nil {
			if errors.Is(err, domain.ErrMissingInput) {
				report.Artifacts = rs.artifacts
				return report, fmt.Errorf("%s: %w", s.name, err)
			}
			report.Failed = append(report.Failed, s.name)
		}
	}

	report.Artifacts = rs.artifacts
	if report.OK() {
		p.ready.Store(true)
	}
	rs.logger.Info("pipeline finished",
		"files", report.Files,
		"rows", report.Rows,
		"artifacts", len(report.Artifacts),
		"failed_steps", len(report.Failed),
		"duration", clock.Since(start),
	)
	return report, nil
}

// runStep times one step and converts a panic into a step failure.
func (p *Pipeline) runStep(ctx context.Context, rs *runState, s step) (err error) {
	logger := rs.logger.With("step", s.name)
	start := clock.Now()
	logger.Info("step started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", s.name, r)
		}
		elapsed := clock.Since(start)
		p.metrics.StepDuration.WithLabelValues(s.name).Observe(elapsed.Seconds())
		if err != nil {
			p.metrics.StepFailures.WithLabelValues(s.name).Inc()
			logger.Error("step failed", "error", err, "duration", elapsed)
			return
		}
		logger.Info("step completed", "duration", elapsed)
	}()

	return s.fn(ctx, rs)
}
