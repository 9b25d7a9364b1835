package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/output"
	"github.com/couchcryptid/civic-data-etl/internal/trend"
)

// summarize aggregates the target year and writes csb_<year>.json together
// with its latest copy. When no record falls in the year the whole dataset is
// aggregated instead.
func (p *Pipeline) summarize(_ context.Context, rs *runState) error {
	records := rs.normalizer.FilterYear(rs.dataset.Records, p.opts.Year)
	if len(records) == 0 {
		rs.logger.Warn("no records matched target year, aggregating full dataset",
			"year", p.opts.Year,
			"records", len(rs.dataset.Records),
		)
		p.metrics.YearFilterFallbacks.Inc()
		records = rs.dataset.Records
	}

	engine := aggregate.NewEngine(p.opts.Year, p.opts.Limits)
	rejected := make(map[string]int)
	for _, rec := range records {
		ev, reason := rs.normalizer.Normalize(rec)
		if reason != "" {
			rejected[reason]++
		}
		engine.Observe(ev)
	}
	summary, stats := engine.Finalize()

	for reason, n := range rejected {
		p.metrics.HeatmapRejected.WithLabelValues(reason).Add(float64(n))
	}
	if stats.HeatmapDropped > 0 {
		p.metrics.HeatmapRejected.WithLabelValues("cap").Add(float64(stats.HeatmapDropped))
	}
	p.metrics.RecordsAggregated.Add(float64(stats.Observed))

	rs.logger.Info("summary built",
		"records", stats.Observed,
		"categories", len(summary.Categories),
		"neighborhoods", stats.Neighborhoods,
		"heatmap_points", stats.HeatmapRetained,
		"heatmap_dropped", stats.HeatmapDropped,
	)

	artifacts, err := p.writer.WriteSummary(summary)
	p.recordWritten(rs, artifacts...)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// composeTrends builds the three-year series over every record and merges in
// the weather series.
func (p *Pipeline) composeTrends(ctx context.Context, rs *runState) error {
	composer := trend.NewComposer(rs.normalizer, p.opts.Year)
	for _, rec := range rs.dataset.Records {
		composer.Observe(rec)
	}

	weather := domain.FetchWeather(ctx, p.weather, p.opts.Year, rs.logger)
	trends, stats := composer.Finalize(weather)

	p.metrics.TrendRecords.WithLabelValues("in").Add(float64(stats.InWindow))
	p.metrics.TrendRecords.WithLabelValues("out").Add(float64(stats.OutWindow))
	p.metrics.TrendRecords.WithLabelValues("undated").Add(float64(stats.Undated))

	rs.logger.Info("trends built",
		"years", len(trends.YearlyMonthly),
		"in_window", stats.InWindow,
		"out_of_window", stats.OutWindow,
		"undated", stats.Undated,
		"weather_days", len(trends.Weather),
	)

	artifact, err := p.writer.WriteTrends(trends)
	if err != nil {
		return fmt.Errorf("write trends: %w", err)
	}
	p.recordWritten(rs, artifact)
	return nil
}

// publish mirrors the artifacts written so far and sends one notice per
// artifact to each notifier. Every target is attempted.
func (p *Pipeline) publish(ctx context.Context, rs *runState) error {
	if len(rs.artifacts) == 0 {
		rs.logger.Warn("no artifacts to publish")
		return nil
	}

	var errs []error
	for _, m := range p.mirrors {
		err := m.Upload(ctx, rs.id, p.opts.Year, rs.artifacts)
		p.recordPublished(rs, m.Name(), len(rs.artifacts), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
		}
	}

	notices := output.NewNotices(rs.id, p.opts.Year, rs.artifacts, clock.Now())
	for _, n := range p.notifiers {
		err := n.Notify(ctx, notices)
		p.recordPublished(rs, n.Name(), len(notices), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) recordWritten(rs *runState, artifacts ...output.Artifact) {
	for _, a := range artifacts {
		rs.logger.Info("artifact written", "name", a.Name, "path", a.Path, "bytes", a.Size)
	}
	rs.artifacts = append(rs.artifacts, artifacts...)
	p.metrics.ArtifactsWritten.Add(float64(len(artifacts)))
}

func (p *Pipeline) recordPublished(rs *runState, target string, count int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		rs.logger.Warn("artifact publish failed", "target", target, "error", err)
	} else {
		rs.logger.Info("artifacts published", "target", target, "count", count)
	}
	p.metrics.ArtifactsPublished.WithLabelValues(target, outcome).Add(float64(count))
}
