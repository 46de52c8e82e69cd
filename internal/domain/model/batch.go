package model

// OutcomeKind is the tri-state result of running one stage against one
// document inside a batch run. A skip is control flow, never a failure.
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomeFailed
	OutcomeSkipped
)

type DocumentOutcome struct {
	Kind   OutcomeKind
	Reason string // set for failures, optional for skips
}

func Succeeded() DocumentOutcome             { return DocumentOutcome{Kind: OutcomeSucceeded} }
func Failed(reason string) DocumentOutcome   { return DocumentOutcome{Kind: OutcomeFailed, Reason: reason} }
func Skipped(reason string) DocumentOutcome  { return DocumentOutcome{Kind: OutcomeSkipped, Reason: reason} }

// BatchError is one structured per-document failure in a batch run.
type BatchError struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

// BatchStats aggregates outcomes across a batch run.
type BatchStats struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Total     int          `json:"total"`
	Errors    []BatchError `json:"errors"`
}

func (s *BatchStats) Record(doc string, outcome DocumentOutcome) {
	switch outcome.Kind {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
		if outcome.Reason != "" {
			s.Errors = append(s.Errors, BatchError{Document: doc, Error: outcome.Reason})
		}
	case OutcomeFailed:
		s.Failed++
		s.Errors = append(s.Errors, BatchError{Document: doc, Error: outcome.Reason})
	}
	s.Processed++
}
