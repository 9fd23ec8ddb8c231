// Package refresh runs the periodic ingestion cycle: fan out over the city
// registry, fetch, extract, score, persist. Each city is an independent unit
// of work; one city failing never aborts the cycle.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vsharha/WorldOnFire-backend/internal/domain"
	"github.com/vsharha/WorldOnFire-backend/internal/observability"
	"github.com/vsharha/WorldOnFire-backend/internal/source"
	"github.com/vsharha/WorldOnFire-backend/internal/store"
)

// Failure kinds reported in a cycle summary.
const (
	FailureRateLimited       = "rate_limited"
	FailureSourceUnavailable = "source_unavailable"
	FailureStorage           = "storage"
)

// Publisher receives newly ingested articles, e.g. a Kafka producer. Nil
// disables publishing.
type Publisher interface {
	PublishArticles(ctx context.Context, articles []domain.Article) error
}

// CityFailure records one city's failure within a cycle.
type CityFailure struct {
	City  domain.CityID `json:"city"`
	Kind  string        `json:"kind"`
	Error string        `json:"error"`
}

// CycleSummary is the outcome of one refresh cycle, returned by the manual
// trigger endpoint and logged by the timer loop.
type CycleSummary struct {
	StartedAt       time.Time     `json:"started_at"`
	DurationSeconds float64       `json:"duration_seconds"`
	CitiesAttempted int           `json:"cities_attempted"`
	CitiesSucceeded int           `json:"cities_succeeded"`
	CitiesFailed    int           `json:"cities_failed"`
	Ingested        int           `json:"ingested"`
	Duplicates      int           `json:"duplicates"`
	Dropped         int           `json:"dropped"`
	Failures        []CityFailure `json:"failures,omitempty"`
}

// Driver owns the refresh lifecycle: a clock-driven loop with explicit
// Start/Stop, plus RunOnce for the manual trigger.
type Driver struct {
	registry  *domain.Registry
	src       source.Source
	sweeper   source.Sweeper
	store     store.Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration
	lookback  time.Duration
	workers   int

	mu       sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}
	ready    atomic.Bool
}

// Options are the driver's optional collaborators and tuning knobs.
type Options struct {
	Sweeper   source.Sweeper  // nil disables the feed sweep
	Publisher Publisher       // nil disables article publishing
	Clock     clockwork.Clock // nil uses the real clock
	Interval  time.Duration   // <=0 defaults to 10m
	Lookback  time.Duration   // source query window; <=0 derives 2x Interval
	Workers   int             // <=0 defaults to 4
}

// NewDriver creates a Driver. The worker count bounds per-cycle concurrency
// against the upstream API; raising it past the provider's limits just trips
// rate limiting across many cities at once.
func NewDriver(registry *domain.Registry, src source.Source, st store.Store,
	logger *slog.Logger, metrics *observability.Metrics, opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Lookback <= 0 {
		// Twice the interval, so articles landing between cycles are never
		// missed and overlap is handled by dedup.
		opts.Lookback = 2 * opts.Interval
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Driver{
		registry:  registry,
		src:       src,
		sweeper:   opts.Sweeper,
		store:     st,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     opts.Clock,
		interval:  opts.Interval,
		lookback:  opts.Lookback,
		workers:   opts.Workers,
	}
}

// Start launches the periodic loop: one cycle immediately, then one per
// interval until Stop or context cancellation. Safe to call once.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopChan != nil {
		return
	}
	d.stopChan = make(chan struct{})
	d.doneChan = make(chan struct{})
	go d.loop(ctx, d.stopChan, d.doneChan)
}

// Stop halts the periodic loop and waits for an in-flight cycle to finish
// its current city units. Idempotent.
func (d *Driver) Stop() {
	d.mu.Lock()
	stopChan, doneChan := d.stopChan, d.doneChan
	d.stopChan, d.doneChan = nil, nil
	d.mu.Unlock()
	if stopChan == nil {
		return
	}
	close(stopChan)
	<-doneChan
}

func (d *Driver) loop(ctx context.Context, stopChan, doneChan chan struct{}) {
	defer close(doneChan)

	d.logger.Info("refresh loop started", "interval", d.interval, "cities", d.registry.Len())
	d.runAndLog(ctx)

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return
		case <-stopChan:
			d.logger.Info("refresh loop stopped")
			return
		case <-ticker.Chan():
			d.runAndLog(ctx)
		}
	}
}

func (d *Driver) runAndLog(ctx context.Context) {
	summary := d.RunOnce(ctx)
	d.logger.Info("refresh cycle complete",
		"ingested", summary.Ingested,
		"duplicates", summary.Duplicates,
		"dropped", summary.Dropped,
		"cities_failed", summary.CitiesFailed,
		"duration_seconds", summary.DurationSeconds,
	)
	for _, f := range summary.Failures {
		d.logger.Warn("city refresh failed", "city", f.City, "kind", f.Kind, "error", f.Error)
	}
}

// CheckReadiness reports whether a first cycle has completed.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("no refresh cycle has completed yet")
	}
	return nil
}

// RunOnce executes one full cycle over the registry and returns its summary.
// Also invoked by POST /news/fetch.
func (d *Driver) RunOnce(ctx context.Context) CycleSummary {
	start := d.clock.Now()
	d.metrics.CyclesTotal.Inc()
	d.metrics.RefreshRunning.Set(1)
	defer d.metrics.RefreshRunning.Set(0)

	summary := CycleSummary{
		StartedAt:       start.UTC(),
		CitiesAttempted: d.registry.Len(),
	}

	for res := range d.fanOut(ctx) {
		summary.Ingested += res.ingested
		summary.Duplicates += res.duplicates
		summary.Dropped += res.dropped
		if res.err != nil {
			kind := classifyFailure(res.err)
			summary.CitiesFailed++
			summary.Failures = append(summary.Failures, CityFailure{
				City:  res.city,
				Kind:  kind,
				Error: res.err.Error(),
			})
			d.metrics.CityFetches.WithLabelValues(kind).Inc()
		} else {
			summary.CitiesSucceeded++
			d.metrics.CityFetches.WithLabelValues("ok").Inc()
		}
	}

	if d.sweeper != nil && ctx.Err() == nil {
		d.sweep(ctx, &summary)
	}

	d.metrics.ArticlesIngested.Add(float64(summary.Ingested))
	d.metrics.DuplicatesSkipped.Add(float64(summary.Duplicates))
	d.metrics.ExtractionDropped.Add(float64(summary.Dropped))
	summary.DurationSeconds = d.clock.Since(start).Seconds()
	d.metrics.CycleDuration.Observe(summary.DurationSeconds)
	d.ready.Store(true)
	return summary
}

type cityResult struct {
	city       domain.CityID
	ingested   int
	duplicates int
	dropped    int
	err        error
}

// fanOut runs the per-city pipeline over a bounded worker pool and streams
// results. The jobs channel closes on context cancellation, abandoning the
// rest of the cycle without touching already-committed cities.
func (d *Driver) fanOut(ctx context.Context) <-chan cityResult {
	jobs := make(chan domain.City)
	results := make(chan cityResult)

	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for city := range jobs {
				results <- d.processCity(ctx, city)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, city := range d.registry.Cities() {
			select {
			case jobs <- city:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// processCity runs one city unit: fetch, extract, score, persist.
func (d *Driver) processCity(ctx context.Context, city domain.City) cityResult {
	res := cityResult{city: city.Name}

	since := d.clock.Now().Add(-d.lookback)
	raws, err := d.src.Fetch(ctx, city.Name, since)
	if err != nil {
		res.err = err
		return res
	}

	ingested, duplicates, dropped, err := d.ingest(ctx, city.Name, raws)
	res.ingested, res.duplicates, res.dropped, res.err = ingested, duplicates, dropped, err
	return res
}

// sweep routes un-scoped feed articles through the same extract/score/persist
// path. Sweep failures degrade the cycle, never fail it.
func (d *Driver) sweep(ctx context.Context, summary *CycleSummary) {
	raws, err := d.sweeper.FetchAll(ctx)
	if err != nil {
		d.logger.Warn("feed sweep failed", "error", err)
		return
	}
	ingested, duplicates, dropped, err := d.ingest(ctx, "", raws)
	summary.Ingested += ingested
	summary.Duplicates += duplicates
	summary.Dropped += dropped
	if err != nil {
		d.logger.Warn("feed sweep persistence failed", "error", err)
	}
}

// ingest attributes raw articles to cities, scores each city's additions
// against its stored window state, and persists. queryCity scopes extraction
// for per-city fetches; empty for sweeps.
func (d *Driver) ingest(ctx context.Context, queryCity domain.CityID, raws []domain.RawArticle) (ingested, duplicates, dropped int, err error) {
	now := d.clock.Now()
	byCity := make(map[domain.CityID][]domain.Article)
	seen := make(map[string]bool, len(raws))

	for _, raw := range raws {
		cityID, ok := d.registry.ExtractCity(raw, queryCity)
		if !ok {
			dropped++
			continue
		}
		a := domain.NewArticle(raw, cityID)
		key := domain.DedupKey(a)
		if seen[key] {
			duplicates++
			continue
		}
		seen[key] = true
		byCity[cityID] = append(byCity[cityID], a)
	}

	for cityID, articles := range byCity {
		n, dups, cityErr := d.persistCity(ctx, cityID, articles, now)
		ingested += n
		duplicates += dups
		if cityErr != nil && err == nil {
			err = cityErr
		}
	}
	return ingested, duplicates, dropped, err
}

// persistCity scores one city's new articles against its stored window state
// and upserts them. The heat score stamped on each article is the city's
// aggregate at ingestion time: prior window mentions plus the genuinely new
// articles of this batch.
func (d *Driver) persistCity(ctx context.Context, cityID domain.CityID, articles []domain.Article, now time.Time) (ingested, duplicates int, err error) {
	keys := make([]string, len(articles))
	for i, a := range articles {
		keys[i] = domain.DedupKey(a)
	}
	existing, err := d.store.ExistingKeys(ctx, keys)
	if err != nil {
		return 0, 0, err
	}

	windowStart := now.Add(-domain.ScoreWindow)
	mentions, err := d.store.CityMentions(ctx, cityID, windowStart)
	if err != nil {
		return 0, 0, err
	}

	fresh := articles[:0]
	for i, a := range articles {
		if existing[keys[i]] {
			duplicates++
			continue
		}
		fresh = append(fresh, a)
		mentions = append(mentions, domain.MentionOf(a))
	}

	score := domain.ScoreAt(mentions, now)

	var published []domain.Article
	for i := range fresh {
		fresh[i].HeatScore = score
		inserted, upsertErr := d.store.UpsertArticle(ctx, fresh[i])
		if upsertErr != nil {
			// Earlier inserts stay committed; this city's remainder is lost
			// for the cycle.
			return ingested, duplicates, upsertErr
		}
		if inserted {
			ingested++
			published = append(published, fresh[i])
		} else {
			duplicates++
		}
	}

	if d.publisher != nil && len(published) > 0 {
		if pubErr := d.publisher.PublishArticles(ctx, published); pubErr != nil {
			d.logger.Warn("article publish failed", "city", cityID, "count", len(published), "error", pubErr)
		}
	}
	return ingested, duplicates, nil
}

func classifyFailure(err error) string {
	var storageErr *store.StorageError
	switch {
	case errors.Is(err, source.ErrRateLimited):
		return FailureRateLimited
	case errors.Is(err, source.ErrSourceUnavailable):
		return FailureSourceUnavailable
	case errors.As(err, &storageErr):
		return FailureStorage
	default:
		return FailureSourceUnavailable
	}
}
