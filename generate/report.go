package generate

import (
	"github.com/google/uuid"
	"github.com/teranos/inkr/errors"
)

// Status is the terminal state of one Generate call
type Status string

const (
	StatusCompleted       Status = "COMPLETED"
	StatusPartiallyFailed Status = "PARTIALLY_FAILED"
	StatusFailed          Status = "FAILED"
)

// Outcome is the result for one resolved template
type Outcome string

const (
	OutcomeRendered       Outcome = "rendered"
	OutcomeSkippedExists  Outcome = "skipped-exists"
	OutcomeSkippedNoMatch Outcome = "skipped-no-match"
	OutcomeFailed         Outcome = "failed"
)

// Entry records what happened to one template
type Entry struct {
	TemplateID  string  `json:"template"`
	TriggerID   string  `json:"trigger"`
	Outcome     Outcome `json:"outcome"`
	Destination string  `json:"destination,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Cause       error   `json:"-"`
}

// Report is the structured result of one Generate call. It is owned by the
// caller.
type Report struct {
	ID      string   `json:"id"`
	Status  Status   `json:"status"`
	Entries []Entry  `json:"entries"`
	Written []string `json:"written"`
	// Err is set when Status is FAILED
	Err error `json:"-"`
}

func newReport() *Report {
	return &Report{ID: uuid.NewString(), Written: []string{}}
}

func (r *Report) fail(err error) *Report {
	r.Status = StatusFailed
	r.Err = err
	r.Entries = nil
	r.Written = []string{}
	return r
}

func (r *Report) add(e Entry) {
	if e.Cause != nil && e.Reason == "" {
		e.Reason = errors.Kind(e.Cause) + ": " + e.Cause.Error()
	}
	r.Entries = append(r.Entries, e)
}

func (r *Report) finish() *Report {
	r.Status = StatusCompleted
	for _, e := range r.Entries {
		if e.Outcome == OutcomeFailed {
			r.Status = StatusPartiallyFailed
			break
		}
	}
	return r
}

// Count returns the number of entries with the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the failed entries
func (r *Report) Failed() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == OutcomeFailed {
			out = append(out, e)
		}
	}
	return out
}
