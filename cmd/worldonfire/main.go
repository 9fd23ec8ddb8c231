package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/vsharha/WorldOnFire-backend/internal/adapter/http"
	kafkaadapter "github.com/vsharha/WorldOnFire-backend/internal/adapter/kafka"
	"github.com/vsharha/WorldOnFire-backend/internal/adapter/nominatim"
	"github.com/vsharha/WorldOnFire-backend/internal/config"
	"github.com/vsharha/WorldOnFire-backend/internal/domain"
	"github.com/vsharha/WorldOnFire-backend/internal/observability"
	"github.com/vsharha/WorldOnFire-backend/internal/refresh"
	"github.com/vsharha/WorldOnFire-backend/internal/source"
	"github.com/vsharha/WorldOnFire-backend/internal/store"
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

	registry, err := domain.LoadRegistry()
	if err != nil {
		logger.Error("failed to load city registry", "error", err)
		os.Exit(1)
	}
	registry = resolveCoordinates(ctx, cfg, registry, metrics, logger)
	logger.Info("city registry loaded", "cities", registry.Len())

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	src := source.NewNewsAPIClient(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.SourceTimeout, logger)

	var sweeper source.Sweeper
	if cfg.RSSEnabled {
		feeds := cfg.RSSFeeds
		if len(feeds) == 0 {
			feeds = source.DefaultFeeds
		}
		sweeper = source.NewRSSSweeper(feeds, cfg.SourceTimeout, logger)
		logger.Info("rss sweep enabled", "feeds", len(feeds))
	} else {
		logger.Info("rss sweep disabled")
	}

	// Article publishing is feature-flagged via KAFKA_ENABLED.
	var publisher refresh.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publisher = kafkaWriter
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}

	driver := refresh.NewDriver(registry, src, st, logger, metrics, refresh.Options{
		Sweeper:   sweeper,
		Publisher: publisher,
		Interval:  cfg.FetchInterval,
		Workers:   cfg.FetchWorkers,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, registry, st, driver, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	driver.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	driver.Stop()
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBDriver == "postgres" {
		return store.OpenPostgres(cfg.DBDSN)
	}
	return store.OpenSQLite(cfg.DBDSN)
}

// resolveCoordinates fills in registry entries that ship without coordinates
// (feature-flagged via NOMINATIM_ENABLED). Lookup failures leave the entry
// as-is; the heatmap simply renders that city at 0,0 until the next start.
func resolveCoordinates(ctx context.Context, cfg *config.Config, registry *domain.Registry,
	metrics *observability.Metrics, logger *slog.Logger) *domain.Registry {
	if !cfg.NominatimEnabled {
		return registry
	}

	cities := registry.Cities()
	missing := 0
	for _, c := range cities {
		if c.Lat == 0 && c.Lon == 0 {
			missing++
		}
	}
	if missing == 0 {
		return registry
	}

	client := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimTimeout, metrics, logger)
	geocoder := nominatim.NewCachedGeocoder(client, cfg.NominatimCacheSize, metrics)
	logger.Info("geocoding registry entries without coordinates", "count", missing)

	for i, c := range cities {
		if c.Lat != 0 || c.Lon != 0 {
			continue
		}
		result, err := geocoder.Geocode(ctx, c.Name, c.Country)
		if err != nil {
			logger.Warn("geocode failed", "city", c.Name, "error", err)
			continue
		}
		if result.DisplayName == "" {
			logger.Warn("no geocoding match", "city", c.Name)
			continue
		}
		cities[i].Lat = result.Lat
		cities[i].Lon = result.Lon
	}

	resolved, err := domain.NewRegistry(cities)
	if err != nil {
		logger.Warn("rebuilding registry with resolved coordinates failed", "error", err)
		return registry
	}
	return resolved
}
