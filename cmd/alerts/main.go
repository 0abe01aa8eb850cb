package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/inmet-alerts/internal/adapter/httpadapter"
	"github.com/couchcryptid/inmet-alerts/internal/adapter/inmet"
	kafkaadapter "github.com/couchcryptid/inmet-alerts/internal/adapter/kafka"
	"github.com/couchcryptid/inmet-alerts/internal/config"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
	"github.com/couchcryptid/inmet-alerts/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := inmet.NewClient(cfg.AlertsURL, cfg.CityURL, cfg.FetchTimeout, logger, metrics)
	resolver := inmet.NewCachedCityResolver(client, cfg.CityCacheSize, metrics)

	regions, err := pipeline.ResolveCities(ctx, cfg.Regions, resolver, logger)
	if err != nil {
		logger.Error("invalid region configuration", "error", err)
		os.Exit(1)
	}

	sinks := []pipeline.NamedSink{{Name: "log", Sink: pipeline.NewLogSink(logger)}}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.NamedSink{Name: "kafka", Sink: writer})
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka sink disabled")
	}
	sink := pipeline.NewMultiSink(logger, metrics, sinks...)

	pollers := make([]*pipeline.Poller, 0, len(regions))
	for _, city := range regions {
		pollers = append(pollers, pipeline.NewPoller(pipeline.PollerConfig{
			City:          city,
			Interval:      cfg.PollInterval,
			MinInterval:   cfg.MinPollInterval,
			FetchTimeout:  cfg.FetchTimeout,
			DetailBaseURL: cfg.DetailURL,
			Resolver:      resolver,
		}, client, sink, logger, metrics))
	}
	supervisor := pipeline.NewSupervisor(pollers, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, supervisor, cfg.Home, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := supervisor.Run(ctx); err != nil {
			logger.Error("supervisor error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pollers did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
