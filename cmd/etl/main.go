package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/dirsource"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/filesink"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/geojsonsink"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/httpsink"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/httpsource"
	kafkaadapter "github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/cluster"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/config"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/observability"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/pipeline"
)

const (
	modeService = "service"
	modeOnce    = "once"
	modeMenu    = "menu"
)

func main() {
	mode := flag.String("mode", modeService, "service (scheduler + HTTP), once (single run) or menu (interactive)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, closeSinks, err := buildPipeline(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer closeSinks()

	switch *mode {
	case modeService:
		err = runService(ctx, cfg, p, logger)
	case modeOnce:
		_, err = p.RunOnce(ctx)
	case modeMenu:
		err = runMenu(ctx, os.Stdin, os.Stdout, p.RunOnce)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Error("exiting with error", "mode", *mode, "error", err)
		closeSinks()
		os.Exit(1)
	}
}

func runService(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, logger *slog.Logger) error {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	scheduler := pipeline.NewScheduler(p, cfg.RunInterval, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the run scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
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
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}

// buildPipeline wires the configured source, geocoder and sinks. The returned
// func closes sinks holding connections and is safe to call more than once.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, func(), error) {
	var source pipeline.Source
	if cfg.SourceEndpoint != "" {
		source = httpsource.New(cfg.SourceEndpoint, cfg.SourceTimeout, logger)
		logger.Info("reading batches over http", "endpoint", cfg.SourceEndpoint)
	} else {
		source = dirsource.New(cfg.SourceDir, logger)
		logger.Info("reading batches from directory", "dir", cfg.SourceDir)
	}

	geocoder := newGeocoder(cfg, metrics, logger)

	fileSink := filesink.New(cfg.OutputPath, logger)
	primary := pipeline.Sink{Name: "file", Target: fileSink.Path(), Loader: fileSink}

	var (
		secondary []pipeline.Sink
		closers   []func() error
	)
	if cfg.EgressEndpoint != "" {
		secondary = append(secondary, pipeline.Sink{
			Name:   "http",
			Target: cfg.EgressEndpoint,
			Loader: httpsink.New(cfg.EgressEndpoint, cfg.EgressTimeout, cfg.EgressMaxRetries, logger),
		})
	}
	if cfg.GeoJSONOutputPath != "" {
		secondary = append(secondary, pipeline.Sink{
			Name:   "geojson",
			Target: cfg.GeoJSONOutputPath,
			Loader: geojsonsink.New(cfg.GeoJSONOutputPath, logger),
		})
	}
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, writer.Close)
		secondary = append(secondary, pipeline.Sink{Name: "kafka", Target: cfg.KafkaSinkTopic, Loader: writer})
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		closers = append(closers, store.Close)
		secondary = append(secondary, pipeline.Sink{Name: "sqlite", Target: cfg.SQLitePath, Loader: store})
	}
	for _, s := range secondary {
		logger.Info("secondary sink enabled", "sink", s.Name, "target", s.Target)
	}

	opts := pipeline.Options{
		Cluster:           cluster.Params{EpsKm: cfg.ClusterEpsKm, MinPoints: cfg.ClusterMinPoints},
		Thresholds:        domain.Thresholds{Medium: cfg.IntensityMediumThreshold, High: cfg.IntensityHighThreshold},
		Geocoder:          geocoder,
		GeocodeMaxRetries: cfg.GeocodeMaxRetries,
		GeocodeTimeout:    cfg.GeocodeTimeout,
		GeocodeWorkers:    cfg.GeocodeWorkers,
		GeocodeCacheSize:  cfg.GeocodeCacheSize,
		RejectEmptyBatch:  cfg.RejectEmptyBatch(),
		BatchTimeout:      cfg.BatchTimeout,
	}
	if err := opts.Cluster.Validate(); err != nil {
		closeAll(closers, logger)
		return nil, nil, err
	}

	p := pipeline.New(source, primary, secondary, opts, logger, metrics)

	closed := false
	return p, func() {
		if closed {
			return
		}
		closed = true
		closeAll(closers, logger)
	}, nil
}

func newGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Geocoder {
	switch cfg.GeocodeProvider {
	case config.ProviderNominatim:
		metrics.GeocodeEnabled.Set(1)
		logger.Info("nominatim geocoding enabled",
			"endpoint", cfg.GeocodeEndpoint,
			"rate_limit", cfg.GeocodeRateLimit,
			"workers", cfg.GeocodeWorkers,
			"timeout", cfg.GeocodeTimeout,
		)
		return nominatim.NewClient(nominatim.Options{
			BaseURL:   cfg.GeocodeEndpoint,
			Language:  cfg.GeocodeLanguage,
			UserAgent: cfg.GeocodeUserAgent,
			Timeout:   cfg.GeocodeTimeout,
			RateLimit: cfg.GeocodeRateLimit,
		}, metrics, logger)
	case config.ProviderMapbox:
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
		return mapbox.NewClient(cfg.MapboxToken, cfg.GeocodeLanguage, cfg.GeocodeTimeout, metrics, logger)
	default:
		metrics.GeocodeEnabled.Set(0)
		logger.Info("geocoding disabled, all localities will be unknown")
		return nil
	}
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for _, c := range closers {
		if err := c(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
}
