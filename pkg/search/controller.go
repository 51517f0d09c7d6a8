// Package search drives the enumeration of candidate keys: identifiers
// ascending, years descending, months ascending, with one day batch per
// (identifier, year, month).
package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Sternrassler/scorecard-search/pkg/checkpoint"
	"github.com/Sternrassler/scorecard-search/pkg/dispatch"
	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for the search loop.
var (
	identifiersSearched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_identifiers_searched_total",
		Help: "Total identifiers whose search finished (matched or exhausted)",
	})

	matchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scorecard_matches_total",
		Help: "Total accepted records found",
	})

	currentIdentifier = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scorecard_current_identifier",
		Help: "Identifier currently being searched",
	})
)

// Default enumeration bounds.
const (
	DefaultIdentifierStart int64 = 240411345673
	DefaultIdentifierEnd   int64 = 240411999999
	DefaultYearHigh              = 2007
	DefaultYearLow               = 2004
)

// Months enumerated for every year.
const (
	FirstMonth = 1
	LastMonth  = 12
)

// BatchDispatcher looks up every day of one (identifier, year, month).
type BatchDispatcher interface {
	Dispatch(ctx context.Context, identifier string, year, month int) []dispatch.DayResult
}

// Reporter receives each accepted record as soon as it is found.
type Reporter interface {
	Report(ctx context.Context, res Result) error
}

// Config holds controller configuration.
type Config struct {
	// IdentifierStart is the first identifier searched.
	IdentifierStart int64

	// IdentifierEnd is one past the last identifier searched.
	IdentifierEnd int64

	// YearHigh and YearLow bound the year loop, which runs downward.
	YearHigh int
	YearLow  int

	// Reporter is notified of every match (optional).
	Reporter Reporter

	// Store persists progress and matches (optional).
	Store checkpoint.Store
}

// DefaultConfig returns the default enumeration bounds.
func DefaultConfig() Config {
	return Config{
		IdentifierStart: DefaultIdentifierStart,
		IdentifierEnd:   DefaultIdentifierEnd,
		YearHigh:        DefaultYearHigh,
		YearLow:         DefaultYearLow,
	}
}

// Validate checks the enumeration bounds.
func (c Config) Validate() error {
	if c.IdentifierStart < 0 {
		return fmt.Errorf("identifier start must be non-negative (got %d)", c.IdentifierStart)
	}
	if c.IdentifierEnd < c.IdentifierStart {
		return fmt.Errorf("identifier end %d is before start %d", c.IdentifierEnd, c.IdentifierStart)
	}
	if c.YearLow > c.YearHigh {
		return fmt.Errorf("year low %d is after year high %d", c.YearLow, c.YearHigh)
	}
	return nil
}

// Result is the outcome of searching one identifier.
type Result struct {
	Identifier string
	Found      bool
	Key        scorecard.CandidateKey
	Record     scorecard.Record

	// Batches is the number of day batches dispatched for the identifier.
	Batches int
}

// Summary is the outcome of a Run.
type Summary struct {
	Searched int
	Matches  []Result

	// NextIdentifier is the first identifier not yet searched.
	NextIdentifier int64
}

// Controller runs the nested enumeration.
type Controller struct {
	dispatcher BatchDispatcher
	config     Config
	logger     zerolog.Logger
}

// NewController creates a new controller.
func NewController(dispatcher BatchDispatcher, cfg Config) (*Controller, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Controller{
		dispatcher: dispatcher,
		config:     cfg,
		logger:     log.With().Str("component", "search-controller").Logger(),
	}, nil
}

// Run searches every identifier of the configured range.
//
// A match ends the year and month loops of its identifier only; the
// identifier loop always advances. Run returns early only when ctx is done,
// with the summary of the identifiers completed so far.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	rangeKey := checkpoint.RangeKey{Start: c.config.IdentifierStart, End: c.config.IdentifierEnd}
	first := c.resumePoint(ctx, rangeKey)

	summary := Summary{NextIdentifier: first}
	start := time.Now()

	c.logger.Info().
		Int64("from", first).
		Int64("to", c.config.IdentifierEnd).
		Int("year_high", c.config.YearHigh).
		Int("year_low", c.config.YearLow).
		Msg("Search started")

	for id := first; id < c.config.IdentifierEnd; id++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		currentIdentifier.Set(float64(id))
		res, err := c.SearchIdentifier(ctx, strconv.FormatInt(id, 10))
		if err != nil {
			return summary, err
		}

		summary.Searched++
		identifiersSearched.Inc()
		if res.Found {
			summary.Matches = append(summary.Matches, res)
			c.publish(ctx, res)
		}

		summary.NextIdentifier = id + 1
		c.saveCheckpoint(ctx, rangeKey, id+1)
	}

	c.logger.Info().
		Int("searched", summary.Searched).
		Int("matches", len(summary.Matches)).
		Dur("duration", time.Since(start)).
		Msg("Search finished")

	return summary, nil
}

// SearchIdentifier runs the year and month loops for one identifier and
// stops at the first accepted record. The only error is ctx's.
func (c *Controller) SearchIdentifier(ctx context.Context, identifier string) (Result, error) {
	res := Result{Identifier: identifier}

	for year := c.config.YearHigh; year >= c.config.YearLow; year-- {
		step, err := c.searchYear(ctx, identifier, year, &res.Batches)
		if err != nil {
			return res, err
		}
		if step.Kind == StepFound {
			res.Found = true
			res.Key = step.Match.Key
			res.Record = step.Match.Record
			return res, nil
		}
	}

	c.logger.Info().
		Str("identifier", identifier).
		Int("batches", res.Batches).
		Msg("Identifier exhausted without a match")

	return res, nil
}

func (c *Controller) searchYear(ctx context.Context, identifier string, year int, batches *int) (Step, error) {
	for month := FirstMonth; month <= LastMonth; month++ {
		step, err := c.searchMonth(ctx, identifier, year, month)
		if err != nil {
			return step, err
		}
		*batches++
		if step.Kind == StepFound {
			return step, nil
		}
	}
	return exhaustedStep(), nil
}

func (c *Controller) searchMonth(ctx context.Context, identifier string, year, month int) (Step, error) {
	c.logger.Info().
		Str("identifier", identifier).
		Int("year", year).
		Int("month", month).
		Msg("Dispatching batch")

	results := c.dispatcher.Dispatch(ctx, identifier, year, month)

	// Lookups cut short by cancellation look like misses; do not trust them.
	if err := ctx.Err(); err != nil {
		return continueStep(), err
	}

	hit, ok := dispatch.FirstAccepted(results)
	if !ok {
		return continueStep(), nil
	}

	return foundStep(Match{
		Key:    scorecard.CandidateKey{Identifier: identifier, Day: hit.Day, Month: month, Year: year},
		Record: hit.Record,
	}), nil
}

func (c *Controller) publish(ctx context.Context, res Result) {
	matchesTotal.Inc()

	c.logger.Info().
		Str("identifier", res.Identifier).
		Int("year", res.Key.Year).
		Int("month", res.Key.Month).
		Int("day", res.Key.Day).
		Str("all_india_rank", res.Record.AllIndiaRank).
		Msg("Accepted record found")

	if c.config.Reporter != nil {
		if err := c.config.Reporter.Report(ctx, res); err != nil {
			c.logger.Warn().Err(err).Str("identifier", res.Identifier).Msg("Failed to report match")
		}
	}

	if c.config.Store != nil {
		if err := c.config.Store.RecordMatch(ctx, res.Identifier, res.Record); err != nil {
			c.logger.Warn().Err(err).Str("identifier", res.Identifier).Msg("Failed to archive match")
		}
	}
}

// resumePoint returns the first identifier to search, honoring a stored
// checkpoint that lies inside the range.
func (c *Controller) resumePoint(ctx context.Context, key checkpoint.RangeKey) int64 {
	if c.config.Store == nil {
		return c.config.IdentifierStart
	}

	next, ok, err := c.config.Store.Load(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("range", key.String()).Msg("Failed to load checkpoint, starting from range start")
		return c.config.IdentifierStart
	}
	if !ok || next <= c.config.IdentifierStart || next > c.config.IdentifierEnd {
		return c.config.IdentifierStart
	}

	c.logger.Info().Int64("next", next).Str("range", key.String()).Msg("Resuming from checkpoint")
	return next
}

func (c *Controller) saveCheckpoint(ctx context.Context, key checkpoint.RangeKey, next int64) {
	if c.config.Store == nil {
		return
	}
	if err := c.config.Store.Save(ctx, key, next); err != nil {
		c.logger.Warn().Err(err).Int64("next", next).Msg("Failed to save checkpoint")
		return
	}
	c.logger.Debug().Int64("next", next).Msg("Checkpoint saved")
}
