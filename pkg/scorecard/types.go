// Package scorecard holds the candidate key and parsed record types and the
// parser that extracts records from scorecard result pages.
package scorecard

import (
	"net/url"
	"strconv"
)

// NotFound is the sentinel assigned to a Record field whose label is absent.
const NotFound = "N/A"

// Day range attempted for every (identifier, year, month) triple.
// Days are not validated against the calendar.
const (
	FirstDay = 1
	LastDay  = 31
)

// Form field names of the scorecard submission.
const (
	FieldToken             = "_csrf-frontend"
	FieldApplicationNumber = "Scorecardmodel[ApplicationNumber]"
	FieldDay               = "Scorecardmodel[Day]"
	FieldMonth             = "Scorecardmodel[Month]"
	FieldYear              = "Scorecardmodel[Year]"
)

// CandidateKey identifies one lookup: an application number and a date of birth.
type CandidateKey struct {
	Identifier string
	Day        int
	Month      int
	Year       int
}

// Form renders the key as the form body of one submission.
// Numbers are rendered without zero padding.
func (k CandidateKey) Form(token string) url.Values {
	return url.Values{
		FieldToken:             []string{token},
		FieldApplicationNumber: []string{k.Identifier},
		FieldDay:               []string{strconv.Itoa(k.Day)},
		FieldMonth:             []string{strconv.Itoa(k.Month)},
		FieldYear:              []string{strconv.Itoa(k.Year)},
	}
}

// Record is the set of labeled values extracted from one result page.
type Record struct {
	ApplicationNumber string `json:"application_number"`
	CandidateName     string `json:"candidate_name"`
	AllIndiaRank      string `json:"all_india_rank"`
	Marks             string `json:"marks"`
}

// EmptyRecord returns a record with every field set to NotFound.
func EmptyRecord() Record {
	return Record{
		ApplicationNumber: NotFound,
		CandidateName:     NotFound,
		AllIndiaRank:      NotFound,
		Marks:             NotFound,
	}
}

// Accepted reports whether the record is a match.
// Only the rank decides; the other fields may still hold NotFound.
func (r Record) Accepted() bool {
	return r.AllIndiaRank != NotFound
}
