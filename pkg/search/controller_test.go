package search

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/Sternrassler/scorecard-search/pkg/checkpoint"
	"github.com/Sternrassler/scorecard-search/pkg/dispatch"
	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchCall struct {
	Identifier string
	Year       int
	Month      int
}

// fakeLookups answers single lookups from a function; nil means "never matches".
type fakeLookups struct {
	answer func(key scorecard.CandidateKey) (scorecard.Record, bool)

	mu    sync.Mutex
	count int
}

func (f *fakeLookups) Lookup(_ context.Context, key scorecard.CandidateKey) (scorecard.Record, bool) {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	if f.answer == nil {
		return scorecard.EmptyRecord(), true
	}
	return f.answer(key)
}

func (f *fakeLookups) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// recordingDispatcher wraps a real dispatcher and records every batch.
type recordingDispatcher struct {
	inner *dispatch.Dispatcher
	after func(call batchCall)

	mu    sync.Mutex
	calls []batchCall
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, identifier string, year, month int) []dispatch.DayResult {
	call := batchCall{Identifier: identifier, Year: year, Month: month}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	results := r.inner.Dispatch(ctx, identifier, year, month)
	if r.after != nil {
		r.after(call)
	}
	return results
}

func (r *recordingDispatcher) callsFor(identifier string) []batchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []batchCall
	for _, c := range r.calls {
		if c.Identifier == identifier {
			out = append(out, c)
		}
	}
	return out
}

func newRecording(lookups dispatch.Lookuper) *recordingDispatcher {
	return &recordingDispatcher{inner: dispatch.NewDispatcher(lookups, dispatch.DefaultConfig())}
}

var targetKey = scorecard.CandidateKey{Identifier: "240411345999", Day: 5, Month: 3, Year: 2006}

var targetRecord = scorecard.Record{
	ApplicationNumber: "240411345999",
	CandidateName:     "ASHA KUMARI",
	AllIndiaRank:      "10432",
	Marks:             "655",
}

func matchOnly(key scorecard.CandidateKey, rec scorecard.Record) func(scorecard.CandidateKey) (scorecard.Record, bool) {
	return func(k scorecard.CandidateKey) (scorecard.Record, bool) {
		if k == key {
			return rec, true
		}
		return scorecard.EmptyRecord(), true
	}
}

func rangeConfig(start, end int64) Config {
	cfg := DefaultConfig()
	cfg.IdentifierStart = start
	cfg.IdentifierEnd = end
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int64(240411345673), cfg.IdentifierStart)
	assert.Equal(t, int64(240411999999), cfg.IdentifierEnd)
	assert.Equal(t, 2007, cfg.YearHigh)
	assert.Equal(t, 2004, cfg.YearLow)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"negative start", func(c *Config) { c.IdentifierStart = -1 }, "identifier start must be non-negative (got -1)"},
		{"end before start", func(c *Config) { c.IdentifierStart, c.IdentifierEnd = 10, 5 }, "identifier end 5 is before start 10"},
		{"inverted years", func(c *Config) { c.YearHigh, c.YearLow = 2004, 2007 }, "year low 2007 is after year high 2004"},
		{"empty range", func(c *Config) { c.IdentifierStart, c.IdentifierEnd = 5, 5 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.errorMsg, err.Error())
		})
	}
}

func TestNewController_Validation(t *testing.T) {
	_, err := NewController(nil, DefaultConfig())
	assert.EqualError(t, err, "dispatcher is required")

	cfg := DefaultConfig()
	cfg.YearLow = 2010
	_, err = NewController(newRecording(&fakeLookups{}), cfg)
	assert.Error(t, err)
}

func TestSearchIdentifier_VisitsEveryYearMonthOnce(t *testing.T) {
	d := newRecording(&fakeLookups{})
	c, err := NewController(d, DefaultConfig())
	require.NoError(t, err)

	res, err := c.SearchIdentifier(context.Background(), "240411345673")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 48, res.Batches)

	var want []batchCall
	for year := 2007; year >= 2004; year-- {
		for month := 1; month <= 12; month++ {
			want = append(want, batchCall{Identifier: "240411345673", Year: year, Month: month})
		}
	}
	assert.Equal(t, want, d.calls, "years descending, months ascending, no duplicates")
}

func TestSearchIdentifier_NeverMatchingServiceExhaustsSpace(t *testing.T) {
	lookups := &fakeLookups{
		answer: func(k scorecard.CandidateKey) (scorecard.Record, bool) {
			rec := scorecard.EmptyRecord()
			rec.ApplicationNumber = k.Identifier
			rec.CandidateName = "SOMEONE"
			rec.Marks = "700"
			return rec, true
		},
	}
	c, err := NewController(newRecording(lookups), DefaultConfig())
	require.NoError(t, err)

	res, err := c.SearchIdentifier(context.Background(), "240411345673")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, 4*12*31, lookups.Count())
}

func TestSearchIdentifier_FirstAcceptedDayWins(t *testing.T) {
	lookups := &fakeLookups{
		answer: func(k scorecard.CandidateKey) (scorecard.Record, bool) {
			rec := scorecard.EmptyRecord()
			if k.Year == 2007 && k.Month == 1 && (k.Day == 9 || k.Day == 20) {
				rec.AllIndiaRank = strconv.Itoa(k.Day)
			}
			return rec, true
		},
	}
	c, err := NewController(newRecording(lookups), DefaultConfig())
	require.NoError(t, err)

	res, err := c.SearchIdentifier(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 9, res.Key.Day)
	assert.Equal(t, "9", res.Record.AllIndiaRank)
	assert.Equal(t, 1, res.Batches)
}

func TestSearchIdentifier_FailedLookupsAreMisses(t *testing.T) {
	lookups := &fakeLookups{
		answer: func(k scorecard.CandidateKey) (scorecard.Record, bool) {
			if k.Day%2 == 0 {
				return scorecard.Record{AllIndiaRank: "ignored"}, false
			}
			if k == targetKey {
				return targetRecord, true
			}
			return scorecard.EmptyRecord(), true
		},
	}
	c, err := NewController(newRecording(lookups), DefaultConfig())
	require.NoError(t, err)

	res, err := c.SearchIdentifier(context.Background(), targetKey.Identifier)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, targetKey, res.Key)
}

func TestRun_ReportsExactlyTheMatchingRecord(t *testing.T) {
	lookups := &fakeLookups{answer: matchOnly(targetKey, targetRecord)}

	var reported []Result
	cfg := rangeConfig(240411345997, 240411346002)
	cfg.Reporter = ReporterFunc(func(_ context.Context, res Result) error {
		reported = append(reported, res)
		return nil
	})

	c, err := NewController(newRecording(lookups), cfg)
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Searched)
	assert.Equal(t, int64(240411346002), summary.NextIdentifier)
	require.Len(t, summary.Matches, 1)
	require.Len(t, reported, 1)

	got := reported[0]
	assert.Equal(t, "240411345999", got.Identifier)
	assert.Equal(t, targetKey, got.Key)
	assert.Equal(t, targetRecord, got.Record)
	assert.Equal(t, summary.Matches[0], got)
}

func TestRun_MatchStopsOnlyTheCurrentIdentifier(t *testing.T) {
	lookups := &fakeLookups{answer: matchOnly(targetKey, targetRecord)}
	d := newRecording(lookups)

	c, err := NewController(d, rangeConfig(240411345999, 240411346001))
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Matches, 1)

	// 2007: 12 months, 2006: months 1-3. Nothing after (2006, 3).
	matched := d.callsFor("240411345999")
	require.Len(t, matched, 15)
	assert.Equal(t, batchCall{Identifier: "240411345999", Year: 2006, Month: 3}, matched[len(matched)-1])
	for _, call := range matched {
		assert.False(t, call.Year < 2006 || (call.Year == 2006 && call.Month > 3),
			"batch dispatched after the match: %+v", call)
	}

	// The identifier loop is not gated by the match.
	next := d.callsFor("240411346000")
	assert.Len(t, next, 48)
	assert.Equal(t, 2, summary.Searched)
}

func TestRun_EmptyRange(t *testing.T) {
	d := newRecording(&fakeLookups{})
	c, err := NewController(d, rangeConfig(10, 10))
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Searched)
	assert.Empty(t, d.calls)
}

func TestRun_CancellationStopsWithoutCheckpointingPartialIdentifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := checkpoint.NewMemoryStore()
	d := newRecording(&fakeLookups{})
	d.after = func(call batchCall) {
		if call.Identifier == "101" && call.Year == 2005 && call.Month == 6 {
			cancel()
		}
	}

	cfg := rangeConfig(100, 200)
	cfg.Store = store
	c, err := NewController(d, cfg)
	require.NoError(t, err)

	summary, err := c.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, summary.Searched)
	assert.Equal(t, int64(101), summary.NextIdentifier)

	next, ok, err := store.Load(context.Background(), checkpoint.RangeKey{Start: 100, End: 200})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(101), next, "identifier 101 was interrupted and must be searched again")
}

func TestSearchIdentifier_CancelledBatchIsNotCounted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newRecording(&fakeLookups{})
	d.after = func(call batchCall) {
		if call.Year == 2007 && call.Month == 3 {
			cancel()
		}
	}

	c, err := NewController(d, DefaultConfig())
	require.NoError(t, err)

	res, err := c.SearchIdentifier(ctx, "240411345999")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, res.Found)
	assert.Len(t, d.callsFor("240411345999"), 3)
	assert.Equal(t, 2, res.Batches, "only batches that completed before cancellation count")
}

func TestRun_ResumesFromCheckpoint(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	key := checkpoint.RangeKey{Start: 100, End: 104}
	require.NoError(t, store.Save(context.Background(), key, 102))

	d := newRecording(&fakeLookups{})
	cfg := rangeConfig(100, 104)
	cfg.Store = store
	c, err := NewController(d, cfg)
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Searched)
	assert.Empty(t, d.callsFor("100"))
	assert.Empty(t, d.callsFor("101"))
	assert.Len(t, d.callsFor("102"), 48)
	assert.Len(t, d.callsFor("103"), 48)

	next, _, _ := store.Load(context.Background(), key)
	assert.Equal(t, int64(104), next)
}

func TestRun_IgnoresCheckpointOutsideRange(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	key := checkpoint.RangeKey{Start: 100, End: 102}
	require.NoError(t, store.Save(context.Background(), key, 500))

	d := newRecording(&fakeLookups{})
	cfg := rangeConfig(100, 102)
	cfg.Store = store
	c, err := NewController(d, cfg)
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Searched)
}

func TestRun_ArchivesMatches(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	cfg := rangeConfig(240411345999, 240411346000)
	cfg.Store = store

	c, err := NewController(newRecording(&fakeLookups{answer: matchOnly(targetKey, targetRecord)}), cfg)
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	matches, err := store.Matches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]scorecard.Record{"240411345999": targetRecord}, matches)
}

type failingStore struct{ checkpoint.Store }

func (failingStore) Load(context.Context, checkpoint.RangeKey) (int64, bool, error) {
	return 0, false, errors.New("redis down")
}

func (failingStore) Save(context.Context, checkpoint.RangeKey, int64) error {
	return errors.New("redis down")
}

func (failingStore) RecordMatch(context.Context, string, scorecard.Record) error {
	return errors.New("redis down")
}

func TestRun_StoreErrorsDoNotAbort(t *testing.T) {
	cfg := rangeConfig(240411345999, 240411346001)
	cfg.Store = failingStore{}
	cfg.Reporter = ReporterFunc(func(context.Context, Result) error { return errors.New("stdout closed") })

	c, err := NewController(newRecording(&fakeLookups{answer: matchOnly(targetKey, targetRecord)}), cfg)
	require.NoError(t, err)

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Searched)
	assert.Len(t, summary.Matches, 1)
}

func TestStepKind_String(t *testing.T) {
	assert.Equal(t, "continue", StepContinue.String())
	assert.Equal(t, "found", StepFound.String())
	assert.Equal(t, "exhausted", StepExhausted.String())
	assert.Equal(t, "unknown", StepKind(42).String())
}
