package search

import "github.com/Sternrassler/scorecard-search/pkg/scorecard"

// StepKind tells an enclosing loop what the level below it concluded.
type StepKind int

const (
	// StepContinue means the level found nothing and the caller moves on.
	StepContinue StepKind = iota

	// StepFound means an accepted record was found; Step.Match is set.
	StepFound

	// StepExhausted means every candidate at the level was tried without a match.
	StepExhausted
)

// String implements fmt.Stringer.
func (k StepKind) String() string {
	switch k {
	case StepContinue:
		return "continue"
	case StepFound:
		return "found"
	case StepExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Match is an accepted record together with the key that produced it.
type Match struct {
	Key    scorecard.CandidateKey
	Record scorecard.Record
}

// Step is the control signal returned by each enumeration level.
type Step struct {
	Kind  StepKind
	Match *Match
}

func continueStep() Step  { return Step{Kind: StepContinue} }
func exhaustedStep() Step { return Step{Kind: StepExhausted} }

func foundStep(m Match) Step {
	return Step{Kind: StepFound, Match: &m}
}
