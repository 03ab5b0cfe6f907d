package athena

import (
	"context"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// IsTerminal reports whether a query execution state can no longer change.
func IsTerminal(state types.QueryExecutionState) bool {
	switch state {
	case types.QueryExecutionStateSucceeded,
		types.QueryExecutionStateFailed,
		types.QueryExecutionStateCancelled:
		return true
	}
	return false
}

// StartQuery submits a query and returns its execution id. The id is an
// opaque handle; it names the same immutable execution for its lifetime.
// A rejected submission returns a *SubmissionError and no id.
func (c *Client) StartQuery(ctx context.Context, query string) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: &query,
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: &c.db,
			Catalog:  &c.catalog,
		},
		WorkGroup:          &c.workgroup,
		ClientRequestToken: clientRequestToken(),
	}

	if c.outputLocation != "" {
		input.ResultConfiguration = &types.ResultConfiguration{
			OutputLocation: &c.outputLocation,
		}
	}

	resp, err := c.api.StartQueryExecution(ctx, input)
	if err != nil {
		return "", &SubmissionError{Query: query, Err: err}
	}
	if resp.QueryExecutionId == nil || *resp.QueryExecutionId == "" {
		return "", &SubmissionError{Query: query, Err: errors.New("service returned no execution id")}
	}

	c.log.Debug("query submitted", "execution_id", *resp.QueryExecutionId)
	return *resp.QueryExecutionId, nil
}

// QueryStatus returns the current state of an execution. A FAILED or
// CANCELLED state is a legitimate return; *LookupError means the status
// call itself could not be completed.
func (c *Client) QueryStatus(ctx context.Context, executionID string) (types.QueryExecutionState, error) {
	exec, err := c.queryExecution(ctx, executionID)
	if err != nil {
		return "", err
	}

	state := exec.Status.State
	c.log.Debug("query status", "execution_id", executionID, "state", state)
	return state, nil
}

// WaitForQuery polls an execution until it reaches a terminal state,
// sleeping the client's poll interval between checks. State transitions are
// monotonic (QUEUED -> RUNNING -> terminal), so the first terminal state
// observed is final and is returned as-is: FAILED and CANCELLED are results,
// not errors, and are never retried here. When the timeout budget elapses
// first, a *TimeoutError is returned so "still running" can never be
// mistaken for "done".
func (c *Client) WaitForQuery(ctx context.Context, executionID string) (types.QueryExecutionState, error) {
	var last types.QueryExecutionState

	start := time.Now()
	for {
		state, err := c.QueryStatus(ctx, executionID)
		if err != nil {
			return last, err
		}
		last = state

		if IsTerminal(state) {
			return state, nil
		}

		if time.Since(start) >= c.timeout {
			return last, &TimeoutError{ExecutionID: executionID, LastState: last, Wait: c.timeout}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// StopQuery cancels a running execution. Cancellation is an explicit
// operation on the service, separate from any wait loop; a wait that times
// out does not stop the underlying query.
func (c *Client) StopQuery(ctx context.Context, executionID string) error {
	input := &athena.StopQueryExecutionInput{
		QueryExecutionId: &executionID,
	}

	if _, err := c.api.StopQueryExecution(ctx, input); err != nil {
		return errors.Wrapf(err, "stop query execution %s", executionID)
	}
	return nil
}

// RunQuery submits a query, waits for it to finish and fetches its shaped
// results. An execution that ends FAILED or CANCELLED is reported as a
// *FetchError carrying the terminal state.
func (c *Client) RunQuery(ctx context.Context, query string) (*ResultSet, error) {
	executionID, err := c.StartQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	state, err := c.WaitForQuery(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if state != types.QueryExecutionStateSucceeded {
		return nil, &FetchError{
			ExecutionID: executionID,
			State:       state,
			Err:         errors.Errorf("query did not succeed: %s", c.stateChangeReason(ctx, executionID)),
		}
	}

	return c.fetchResults(ctx, executionID, state, !isDDLQuery(query))
}

func (c *Client) queryExecution(ctx context.Context, executionID string) (*types.QueryExecution, error) {
	input := &athena.GetQueryExecutionInput{
		QueryExecutionId: &executionID,
	}

	resp, err := c.api.GetQueryExecution(ctx, input)
	if err != nil {
		return nil, &LookupError{ExecutionID: executionID, Err: err}
	}
	if resp.QueryExecution == nil || resp.QueryExecution.Status == nil {
		return nil, &LookupError{ExecutionID: executionID, Err: errors.New("nil QueryExecution")}
	}

	return resp.QueryExecution, nil
}

// stateChangeReason returns the service's explanation for a terminal state,
// or "" when none is available.
func (c *Client) stateChangeReason(ctx context.Context, executionID string) string {
	exec, err := c.queryExecution(ctx, executionID)
	if err != nil || exec.Status.StateChangeReason == nil {
		return ""
	}
	return *exec.Status.StateChangeReason
}

func clientRequestToken() *string {
	token := uuid.NewV4().String()
	return &token
}

// supported DDL statements by Athena
// https://docs.aws.amazon.com/athena/latest/ug/language-reference.html
var ddlQueryRegex = regexp.MustCompile(`(?i)^\s*(ALTER|CREATE|DESCRIBE|DROP|MSCK|SHOW)`)

func isDDLQuery(query string) bool {
	return ddlQueryRegex.MatchString(query)
}
