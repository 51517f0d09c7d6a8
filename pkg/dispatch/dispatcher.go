package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for batch dispatch.
var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_batches_total",
		Help: "Total day batches dispatched",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scorecard_batch_duration_seconds",
		Help:    "Time from the first lookup of a batch to its barrier",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	batchFailedLookups = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scorecard_batch_failed_lookups",
		Help:    "Lookups per batch that produced no result",
		Buckets: []float64{0, 1, 5, 10, 20, 31},
	})
)

// Config holds dispatcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of lookups in flight per batch.
	MaxConcurrency int

	// Timeout per lookup, applied on top of the client's own timeout.
	// Zero leaves lookups bounded by the client alone.
	Timeout time.Duration
}

// DefaultConfig returns a configuration with one worker per day.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: scorecard.LastDay - scorecard.FirstDay + 1,
	}
}

// Lookuper performs a single lookup. Implementations must be safe for
// concurrent use and must report every failure as ok == false.
type Lookuper interface {
	Lookup(ctx context.Context, key scorecard.CandidateKey) (scorecard.Record, bool)
}

// DayResult is the outcome of the lookup for one day of a batch.
type DayResult struct {
	Day    int
	Record scorecard.Record
	OK     bool
}

// Dispatcher fans a batch out to a bounded worker pool.
type Dispatcher struct {
	lookups Lookuper
	config  Config
	logger  zerolog.Logger
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(lookups Lookuper, config Config) *Dispatcher {
	days := scorecard.LastDay - scorecard.FirstDay + 1
	if config.MaxConcurrency <= 0 || config.MaxConcurrency > days {
		config.MaxConcurrency = days
	}

	return &Dispatcher{
		lookups: lookups,
		config:  config,
		logger:  log.With().Str("component", "batch-dispatcher").Logger(),
	}
}

// Dispatch looks up every day of (identifier, year, month) and waits for all
// of them. The result has one entry per day, ordered by day.
func (d *Dispatcher) Dispatch(ctx context.Context, identifier string, year, month int) []DayResult {
	start := time.Now()
	batchesTotal.Inc()

	results := make([]DayResult, scorecard.LastDay-scorecard.FirstDay+1)

	dayQueue := make(chan int, len(results))
	for day := scorecard.FirstDay; day <= scorecard.LastDay; day++ {
		dayQueue <- day
	}
	close(dayQueue)

	var wg sync.WaitGroup
	for i := 0; i < d.config.MaxConcurrency; i++ {
		wg.Add(1)
		go d.worker(ctx, identifier, year, month, dayQueue, results, &wg)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	batchFailedLookups.Observe(float64(failed))
	batchDuration.Observe(time.Since(start).Seconds())

	event := d.logger.Debug()
	if failed == len(results) {
		event = d.logger.Warn()
	}
	event.
		Str("identifier", identifier).
		Int("year", year).
		Int("month", month).
		Int("batch_failures", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results
}

// worker drains the day queue. Each day owns its own slot in results, so
// workers never write the same element.
func (d *Dispatcher) worker(ctx context.Context, identifier string, year, month int, dayQueue <-chan int, results []DayResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for day := range dayQueue {
		key := scorecard.CandidateKey{Identifier: identifier, Day: day, Month: month, Year: year}

		lookupCtx, cancel := ctx, context.CancelFunc(func() {})
		if d.config.Timeout > 0 {
			lookupCtx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		}
		rec, ok := d.lookups.Lookup(lookupCtx, key)
		cancel()

		results[day-scorecard.FirstDay] = DayResult{Day: day, Record: rec, OK: ok}
	}
}

// FirstAccepted returns the lowest-day result whose record is accepted.
func FirstAccepted(results []DayResult) (DayResult, bool) {
	for _, r := range results {
		if r.OK && r.Record.Accepted() {
			return r, true
		}
	}
	return DayResult{}, false
}
