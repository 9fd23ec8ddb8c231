// Command backfill runs a one-shot historical fetch over the city registry,
// reaching further back than the refresh loop's normal query window. Useful
// for seeding a fresh database or filling a gap after downtime.
//
// Usage:
//
//	NEWS_API_KEY=... go run ./cmd/backfill -hours 48
//	NEWS_API_KEY=... go run ./cmd/backfill -hours 12 -city Tokyo
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vsharha/WorldOnFire-backend/internal/config"
	"github.com/vsharha/WorldOnFire-backend/internal/domain"
	"github.com/vsharha/WorldOnFire-backend/internal/observability"
	"github.com/vsharha/WorldOnFire-backend/internal/refresh"
	"github.com/vsharha/WorldOnFire-backend/internal/source"
	"github.com/vsharha/WorldOnFire-backend/internal/store"
)

func main() {
	hours := flag.Int("hours", 24, "how far back to fetch, in hours")
	city := flag.String("city", "", "limit the backfill to a single registry city")
	workers := flag.Int("workers", 0, "worker pool size (default from FETCH_WORKERS)")
	flag.Parse()

	if *hours < 1 {
		fmt.Fprintln(os.Stderr, "-hours must be at least 1")
		os.Exit(1)
	}

	if code := run(*hours, *city, *workers); code != 0 {
		os.Exit(code)
	}
}

func run(hours int, cityName string, workers int) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting() // nothing scrapes a one-shot run

	registry, err := domain.LoadRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load city registry: %v\n", err)
		return 1
	}
	if cityName != "" {
		registry, err = singleCityRegistry(registry, cityName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open store (%s): %v\n", cfg.DBDriver, err)
		return 1
	}
	defer st.Close()

	src := source.NewNewsAPIClient(cfg.NewsAPIURL, cfg.NewsAPIKey, cfg.SourceTimeout, logger)

	if workers <= 0 {
		workers = cfg.FetchWorkers
	}
	driver := refresh.NewDriver(registry, src, st, logger, metrics, refresh.Options{
		Lookback: time.Duration(hours) * time.Hour,
		Workers:  workers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("=== Backfill: %d cities, last %dh ===\n\n", registry.Len(), hours)
	summary := driver.RunOnce(ctx)

	fmt.Printf("  %-22s %d\n", "cities attempted", summary.CitiesAttempted)
	fmt.Printf("  %-22s %d\n", "cities succeeded", summary.CitiesSucceeded)
	fmt.Printf("  %-22s %d\n", "cities failed", summary.CitiesFailed)
	fmt.Printf("  %-22s %d\n", "articles ingested", summary.Ingested)
	fmt.Printf("  %-22s %d\n", "duplicates skipped", summary.Duplicates)
	fmt.Printf("  %-22s %d\n", "dropped (no city)", summary.Dropped)
	fmt.Printf("  %-22s %.1fs\n", "duration", summary.DurationSeconds)

	if len(summary.Failures) > 0 {
		fmt.Println("\n--- failures ---")
		for _, f := range summary.Failures {
			fmt.Printf("  %-20s %-20s %s\n", f.City, f.Kind, f.Error)
		}
		return 1
	}

	fmt.Println("\nBackfill complete.")
	return 0
}

func singleCityRegistry(registry *domain.Registry, name string) (*domain.Registry, error) {
	id, ok := registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown city %q", name)
	}
	city, _ := registry.CityByID(id)
	return domain.NewRegistry([]domain.City{city})
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DBDriver == "postgres" {
		return store.OpenPostgres(cfg.DBDSN)
	}
	return store.OpenSQLite(cfg.DBDSN)
}
