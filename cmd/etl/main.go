package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	amqpadapter "github.com/couchcryptid/civic-data-etl/internal/adapter/amqp"
	httpadapter "github.com/couchcryptid/civic-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/civic-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/output"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	logger.Info("civic data etl starting",
		"raw_dir", cfg.RawDir,
		"out_dir", cfg.OutDir,
		"year", cfg.DataYear,
	)

	// Weather enrichment is feature-flagged via WEATHER_ENABLED.
	var weather domain.WeatherProvider
	if cfg.WeatherEnabled {
		location := openmeteo.Location{
			Latitude:  cfg.WeatherLatitude,
			Longitude: cfg.WeatherLongitude,
			Timezone:  cfg.WeatherTimezone,
		}
		weather = openmeteo.NewClient(cfg.WeatherBaseURL, location, cfg.WeatherTimeout, metrics, logger)
		metrics.WeatherEnabled.Set(1)
		logger.Info("weather enrichment enabled", "timeout", cfg.WeatherTimeout)
	}

	reader := source.NewReader(cfg.SourceDir(), logger, metrics)
	writer := output.NewWriter(cfg.OutDir)
	opts := pipeline.Options{
		Year: cfg.DataYear,
		Limits: aggregate.Limits{
			HeatmapPoints:        cfg.HeatmapLimit,
			NeighborhoodTopN:     cfg.NeighborhoodTopN,
			MonthlyCategoriesTop: cfg.MonthlyTopN,
		},
		MaxResolutionDays: cfg.MaxResolutionDays,
		Bounds:            domain.StLouisBounds,
	}
	p := pipeline.New(reader, writer, weather, opts, logger, metrics)

	switch cfg.NotifyBackend {
	case config.NotifyKafka:
		p.WithNotifier(kafkaadapter.NewWriter(cfg, logger))
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	case config.NotifyAMQP:
		p.WithNotifier(amqpadapter.NewNotifier(cfg.AMQPURL, cfg.AMQPQueue, logger))
		logger.Info("amqp notifications enabled", "queue", cfg.AMQPQueue)
	}
	if cfg.MinioEndpoint != "" {
		mirror, err := objectstore.New(objectstore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			logger.Error("object store setup failed", "error", err)
			return 1
		}
		p.WithMirror(mirror)
		logger.Info("object store mirror enabled", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error("notifier close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, writer, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	report, err := p.Run(ctx)
	if err != nil {
		logger.Error("pipeline aborted", "error", err)
	} else {
		logSummary(logger, writer)
	}

	code := 0
	if err != nil || !report.OK() {
		code = 1
		logger.Error("pipeline finished with failures", "failed_steps", report.Failed)
	}

	if srv != nil {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return code
}

// logSummary lists every artifact in the output directory with its size.
func logSummary(logger *slog.Logger, writer *output.Writer) {
	artifacts, err := writer.List()
	if err != nil {
		logger.Warn("could not list output directory", "dir", writer.Dir(), "error", err)
		return
	}
	for _, a := range artifacts {
		logger.Info("output", "name", a.Name, "kb", float64(a.Size)/1024)
	}
	logger.Info("outputs ready", "dir", writer.Dir(), "count", len(artifacts))
}
