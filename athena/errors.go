package athena

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// SubmissionError reports a query the service rejected before issuing an
// execution id. The query never started; there is nothing to poll.
type SubmissionError struct {
	Query string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit query: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// LookupError reports a status call that itself failed (unknown id,
// network, auth). Distinct from a query that reached the FAILED state.
type LookupError struct {
	ExecutionID string
	Err         error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("query execution %s: status lookup: %v", e.ExecutionID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// TimeoutError reports a wait that exhausted its budget with no terminal
// state observed. The execution may still be running; LastState is the last
// status seen, never a terminal one.
type TimeoutError struct {
	ExecutionID string
	LastState   types.QueryExecutionState
	Wait        time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("query execution %s still %s after %s", e.ExecutionID, e.LastState, e.Wait)
}

// FetchError reports results requested for an execution that is not in the
// SUCCEEDED state, or a results call that failed.
type FetchError struct {
	ExecutionID string
	State       types.QueryExecutionState
	Err         error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query execution %s (%s): fetch results: %v", e.ExecutionID, e.State, e.Err)
	}
	return fmt.Sprintf("query execution %s (%s): results unavailable", e.ExecutionID, e.State)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PartitionFailure names one partition statement that failed and why.
type PartitionFailure struct {
	Partition PartitionKey
	Err       error
}

// PartitionError reports a batch add with mixed outcomes. Applied counts
// the statements that took effect; Failures holds the rest so callers can
// retry just those.
type PartitionError struct {
	Applied  int
	Failures []PartitionFailure
}

func (e *PartitionError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Partition.LogUID
	}
	return fmt.Sprintf("added %d partitions, %d failed: %s", e.Applied, len(e.Failures), strings.Join(names, ", "))
}
