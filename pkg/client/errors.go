package client

import (
	"errors"
	"fmt"
	"net"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
)

// ErrorClass represents a classification of lookup failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection, timeout and cancellation errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response body that could not be read.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassRequest represents a request that could not be built.
	ErrorClassRequest ErrorClass = "request"
)

// ErrNoResult is the cause recorded when a lookup yields nothing usable.
var ErrNoResult = errors.New("no result")

// LookupError describes why a single lookup produced no result.
type LookupError struct {
	Key        scorecard.CandidateKey
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s %04d-%02d-%02d: %s error: %v",
		e.Key.Identifier, e.Key.Year, e.Key.Month, e.Key.Day, e.ErrorClass, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// Is makes every LookupError match ErrNoResult.
func (e *LookupError) Is(target error) bool {
	return target == ErrNoResult
}

// IsTimeout reports whether the underlying failure was a timeout.
func (e *LookupError) IsTimeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
