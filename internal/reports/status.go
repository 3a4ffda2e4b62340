package reports

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigUnavailable marks a date window that never resolved.
	ErrConfigUnavailable = errors.New("reports: date window unavailable")
	// ErrQueryFailed marks a store call that failed and was replaced by zero rows.
	ErrQueryFailed = errors.New("reports: query failed")
	// ErrPartialFanout marks a branch dropped from an aggregate fan-out.
	ErrPartialFanout = errors.New("reports: partial fan-out failure")
	// ErrAggregateBranch is a precondition failure: the sentinel reached the executor.
	ErrAggregateBranch = errors.New("reports: aggregate branch cannot be queried directly")
	// ErrWindowPending is a precondition failure: a query ran before the window resolved.
	ErrWindowPending = errors.New("reports: date window not resolved")
)

// FailureKind classifies a swallowed failure.
type FailureKind string

const (
	KindConfigUnavailable    FailureKind = "config_unavailable"
	KindQueryFailed          FailureKind = "query_failed"
	KindPartialFanoutFailure FailureKind = "partial_fanout_failure"
)

// Cause records one swallowed failure.
type Cause struct {
	Kind   FailureKind
	Branch BranchID
	Err    error
}

func (c Cause) Error() string {
	if c.Branch != "" {
		return fmt.Sprintf("%s [%s]: %v", c.Kind, c.Branch, c.Err)
	}
	return fmt.Sprintf("%s: %v", c.Kind, c.Err)
}

func (c Cause) Unwrap() error {
	return c.Err
}

// Status is the side channel next to every result: Ready, or Degraded with the
// causes that were converted into empty data.
type Status struct {
	Causes []Cause
}

// Ready returns the zero status.
func Ready() Status {
	return Status{}
}

// Degraded builds a status carrying the given causes.
func Degraded(causes ...Cause) Status {
	return Status{Causes: causes}
}

// IsDegraded reports whether any failure was swallowed.
func (s Status) IsDegraded() bool {
	return len(s.Causes) > 0
}

// Merge combines two statuses.
func (s Status) Merge(other Status) Status {
	if len(other.Causes) == 0 {
		return s
	}
	causes := make([]Cause, 0, len(s.Causes)+len(other.Causes))
	causes = append(causes, s.Causes...)
	causes = append(causes, other.Causes...)
	return Status{Causes: causes}
}

// Err joins the causes into a single error, or nil when ready.
func (s Status) Err() error {
	if len(s.Causes) == 0 {
		return nil
	}
	errs := make([]error, len(s.Causes))
	for i, c := range s.Causes {
		errs[i] = c
	}
	return errors.Join(errs...)
}
