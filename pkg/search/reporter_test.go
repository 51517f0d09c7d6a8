package search

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONReporter_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewJSONReporter(buf)

	err := r.Report(context.Background(), Result{
		Identifier: "240411345999",
		Found:      true,
		Key:        scorecard.CandidateKey{Identifier: "240411345999", Day: 5, Month: 3, Year: 2006},
		Record:     targetRecord,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"identifier": "240411345999",
		"day": 5, "month": 3, "year": 2006,
		"record": {
			"application_number": "240411345999",
			"candidate_name": "ASHA KUMARI",
			"all_india_rank": "10432",
			"marks": "655"
		}
	}`, buf.String())
}

func TestJSONReporter_ConcurrentLines(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewJSONReporter(buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Report(context.Background(), Result{Identifier: "1", Record: targetRecord})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestJSONReporter_WriteError(t *testing.T) {
	err := NewJSONReporter(brokenWriter{}).Report(context.Background(), Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode match")
}
