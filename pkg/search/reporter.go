package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
)

// MatchLine is the JSON form of a reported match.
type MatchLine struct {
	Identifier string           `json:"identifier"`
	Day        int              `json:"day"`
	Month      int              `json:"month"`
	Year       int              `json:"year"`
	Record     scorecard.Record `json:"record"`
}

// JSONReporter writes one JSON object per match.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONReporter creates a reporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

// Report implements Reporter.
func (r *JSONReporter) Report(_ context.Context, res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := MatchLine{
		Identifier: res.Identifier,
		Day:        res.Key.Day,
		Month:      res.Key.Month,
		Year:       res.Key.Year,
		Record:     res.Record,
	}
	if err := r.enc.Encode(line); err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	return nil
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, res Result) error

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, res Result) error {
	return f(ctx, res)
}
