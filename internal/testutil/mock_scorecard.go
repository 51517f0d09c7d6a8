// Package testutil provides a mock scorecard service for tests.
package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
)

// Token is the anti-forgery token the mock expects by default.
const Token = "test-csrf-token"

// NoResultPage is served for keys that do not match: the empty lookup form.
const NoResultPage = `<!DOCTYPE html>
<html><body>
<form method="post">
  <input type="hidden" name="_csrf-frontend" value="test-csrf-token">
  <input name="Scorecardmodel[ApplicationNumber]">
  <select name="Scorecardmodel[Day]"></select>
  <select name="Scorecardmodel[Month]"></select>
  <select name="Scorecardmodel[Year]"></select>
</form>
<table><tr><td>Invalid Application No. or Date of Birth</td></tr></table>
</body></html>`

// RenderScorecard renders a result page carrying rec.
func RenderScorecard(rec scorecard.Record) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><body>
<table class="scorecard">
  <tr><td>%s</td> <td>%s</td></tr>
  <tr><td>%s</td> <td>%s</td></tr>
  <tr><td>%s</td> <td>%s</td></tr>
  <tr><td>%s</td> <td>%s</td></tr>
</table>
</body></html>`,
		scorecard.LabelApplicationNumber, html.EscapeString(rec.ApplicationNumber),
		scorecard.LabelCandidateName, html.EscapeString(rec.CandidateName),
		scorecard.LabelAllIndiaRank, html.EscapeString(rec.AllIndiaRank),
		scorecard.LabelMarks, html.EscapeString(rec.Marks),
	)
}

// RenderWithoutRank renders a result page that lacks the rank row.
func RenderWithoutRank(rec scorecard.Record) string {
	return fmt.Sprintf(`<html><body><table>
<tr><td>%s</td><td>%s</td></tr>
<tr><td>%s</td><td>%s</td></tr>
<tr><td>%s</td><td>%s</td></tr>
</table></body></html>`,
		scorecard.LabelApplicationNumber, html.EscapeString(rec.ApplicationNumber),
		scorecard.LabelCandidateName, html.EscapeString(rec.CandidateName),
		scorecard.LabelMarks, html.EscapeString(rec.Marks),
	)
}

// MockScorecard is a configurable mock scorecard service.
type MockScorecard struct {
	server *httptest.Server

	mu       sync.RWMutex
	matches  map[scorecard.CandidateKey]scorecard.Record
	fail     func(scorecard.CandidateKey) bool
	render   func(scorecard.CandidateKey) (string, bool)
	delay    time.Duration
	requests []scorecard.CandidateKey
	badToken int
}

// NewMockScorecard starts a mock service.
func NewMockScorecard() *MockScorecard {
	m := &MockScorecard{
		matches: make(map[scorecard.CandidateKey]scorecard.Record),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the form endpoint URL.
func (m *MockScorecard) URL() string {
	return m.server.URL + "/frontend/web/scorecard/index"
}

// Close shuts down the mock server.
func (m *MockScorecard) Close() {
	m.server.Close()
}

// AddMatch serves a scorecard carrying rec for key.
func (m *MockScorecard) AddMatch(key scorecard.CandidateKey, rec scorecard.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[key] = rec
}

// SetFailure makes the server drop the connection for keys where fn is true.
func (m *MockScorecard) SetFailure(fn func(scorecard.CandidateKey) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

// SetRenderer overrides the page served for non-matching keys.
// fn returning false falls back to NoResultPage.
func (m *MockScorecard) SetRenderer(fn func(scorecard.CandidateKey) (string, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.render = fn
}

// SetDelay delays every response.
func (m *MockScorecard) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns every key received, in arrival order.
func (m *MockScorecard) Requests() []scorecard.CandidateKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]scorecard.CandidateKey, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests received.
func (m *MockScorecard) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CountFor returns the number of requests received for identifier.
func (m *MockScorecard) CountFor(identifier string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, k := range m.requests {
		if k.Identifier == identifier {
			n++
		}
	}
	return n
}

// BadTokenCount returns the number of requests that carried a wrong token.
func (m *MockScorecard) BadTokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badToken
}

func (m *MockScorecard) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	key := scorecard.CandidateKey{Identifier: r.PostForm.Get(scorecard.FieldApplicationNumber)}
	key.Day, _ = strconv.Atoi(r.PostForm.Get(scorecard.FieldDay))
	key.Month, _ = strconv.Atoi(r.PostForm.Get(scorecard.FieldMonth))
	key.Year, _ = strconv.Atoi(r.PostForm.Get(scorecard.FieldYear))

	m.mu.Lock()
	m.requests = append(m.requests, key)
	if r.PostForm.Get(scorecard.FieldToken) != Token {
		m.badToken++
	}
	rec, matched := m.matches[key]
	fail := m.fail
	render := m.render
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if fail != nil && fail(key) {
		dropConnection(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusOK)

	switch {
	case matched:
		w.Write([]byte(RenderScorecard(rec)))
	case render != nil:
		if page, ok := render(key); ok {
			w.Write([]byte(page))
			return
		}
		w.Write([]byte(NoResultPage))
	default:
		w.Write([]byte(NoResultPage))
	}
}

// dropConnection closes the connection without a response, which the client
// sees as a transport error.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("testutil: response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(fmt.Sprintf("testutil: hijack: %v", err))
	}
	conn.Close()
}
