package athena

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartQuery(t *testing.T) {
	executionID := "exec-1"

	api := &fakeAPI{
		start: func(params *athena.StartQueryExecutionInput) (*athena.StartQueryExecutionOutput, error) {
			assert.Equal(t, "SELECT 1", aws.ToString(params.QueryString))
			assert.Equal(t, "telemetry_pool_v5", aws.ToString(params.QueryExecutionContext.Database))
			assert.Equal(t, CatalogAwsDataCatalog, aws.ToString(params.QueryExecutionContext.Catalog))
			assert.Equal(t, "s3://carbonix-athena-results/", aws.ToString(params.ResultConfiguration.OutputLocation))
			assert.NotEmpty(t, aws.ToString(params.ClientRequestToken))
			return &athena.StartQueryExecutionOutput{QueryExecutionId: &executionID}, nil
		},
	}

	c := newTestClient(t, api)
	id, err := c.StartQuery(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, executionID, id)
}

func TestStartQueryRejected(t *testing.T) {
	tests := []struct {
		desc string
		resp *athena.StartQueryExecutionOutput
		err  error
	}{
		{
			desc: "service error",
			err:  errDummy,
		},
		{
			desc: "no execution id in response",
			resp: &athena.StartQueryExecutionOutput{},
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			c := newTestClient(t, &fakeAPI{
				start: func(*athena.StartQueryExecutionInput) (*athena.StartQueryExecutionOutput, error) {
					return test.resp, test.err
				},
			})

			id, err := c.StartQuery(context.Background(), "SELECT bogus")
			assert.Empty(t, id)

			var submitErr *SubmissionError
			require.ErrorAs(t, err, &submitErr)
			assert.Equal(t, "SELECT bogus", submitErr.Query)
		})
	}
}

func TestQueryStatus(t *testing.T) {
	c := newTestClient(t, &fakeAPI{
		getExec: func(params *athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
			assert.Equal(t, "exec-1", aws.ToString(params.QueryExecutionId))
			return execOutput(types.QueryExecutionStateFailed, "SYNTAX_ERROR"), nil
		},
	})

	// FAILED is a legitimate status, not a lookup failure.
	state, err := c.QueryStatus(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, types.QueryExecutionStateFailed, state)
}

func TestQueryStatusLookupError(t *testing.T) {
	tests := []struct {
		desc string
		resp *athena.GetQueryExecutionOutput
		err  error
	}{
		{desc: "call fails", err: errDummy},
		{desc: "nil execution", resp: &athena.GetQueryExecutionOutput{}},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			c := newTestClient(t, &fakeAPI{
				getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
					return test.resp, test.err
				},
			})

			_, err := c.QueryStatus(context.Background(), "exec-unknown")
			var lookupErr *LookupError
			require.ErrorAs(t, err, &lookupErr)
			assert.Equal(t, "exec-unknown", lookupErr.ExecutionID)
		})
	}
}

func TestWaitForQuery(t *testing.T) {
	tests := []struct {
		desc     string
		states   []types.QueryExecutionState
		expected types.QueryExecutionState
	}{
		{
			desc: "queued through running to succeeded",
			states: []types.QueryExecutionState{
				types.QueryExecutionStateQueued,
				types.QueryExecutionStateRunning,
				types.QueryExecutionStateSucceeded,
			},
			expected: types.QueryExecutionStateSucceeded,
		},
		{
			desc: "failed is returned, not retried",
			states: []types.QueryExecutionState{
				types.QueryExecutionStateRunning,
				types.QueryExecutionStateFailed,
			},
			expected: types.QueryExecutionStateFailed,
		},
		{
			desc:     "cancelled is returned as-is",
			states:   []types.QueryExecutionState{types.QueryExecutionStateCancelled},
			expected: types.QueryExecutionStateCancelled,
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			calls := 0
			c := newTestClient(t, &fakeAPI{
				getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
					state := test.states[calls]
					if calls < len(test.states)-1 {
						calls++
					}
					return execOutput(state, ""), nil
				},
			})

			state, err := c.WaitForQuery(context.Background(), "exec-1")
			require.NoError(t, err)
			assert.Equal(t, test.expected, state)
		})
	}
}

func TestWaitForQueryTimeout(t *testing.T) {
	polls := 0
	api := &fakeAPI{
		getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
			polls++
			return execOutput(types.QueryExecutionStateRunning, ""), nil
		},
	}

	c, err := NewWithAPI(api, Config{
		Database:     "telemetry_pool_v5",
		PollInterval: 10 * time.Millisecond,
		Timeout:      25 * time.Millisecond,
	})
	require.NoError(t, err)

	state, err := c.WaitForQuery(context.Background(), "exec-1")

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "exec-1", timeoutErr.ExecutionID)
	assert.Equal(t, types.QueryExecutionStateRunning, timeoutErr.LastState)
	// The last observed status is surfaced, but never as nil-error success.
	assert.Equal(t, types.QueryExecutionStateRunning, state)
	assert.GreaterOrEqual(t, polls, 2)
}

func TestWaitForQueryLookupErrorPropagates(t *testing.T) {
	c := newTestClient(t, &fakeAPI{
		getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
			return nil, errDummy
		},
	})

	_, err := c.WaitForQuery(context.Background(), "exec-1")
	var lookupErr *LookupError
	assert.ErrorAs(t, err, &lookupErr)
}

func TestWaitForQueryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(t, &fakeAPI{
		getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
			cancel()
			return execOutput(types.QueryExecutionStateRunning, ""), nil
		},
	})

	_, err := c.WaitForQuery(ctx, "exec-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStopQuery(t *testing.T) {
	stopped := ""
	c := newTestClient(t, &fakeAPI{
		stop: func(params *athena.StopQueryExecutionInput) (*athena.StopQueryExecutionOutput, error) {
			stopped = aws.ToString(params.QueryExecutionId)
			return &athena.StopQueryExecutionOutput{}, nil
		},
	})

	require.NoError(t, c.StopQuery(context.Background(), "exec-1"))
	assert.Equal(t, "exec-1", stopped)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(types.QueryExecutionStateSucceeded))
	assert.True(t, IsTerminal(types.QueryExecutionStateFailed))
	assert.True(t, IsTerminal(types.QueryExecutionStateCancelled))
	assert.False(t, IsTerminal(types.QueryExecutionStateQueued))
	assert.False(t, IsTerminal(types.QueryExecutionStateRunning))
}

func TestIsDDLQuery(t *testing.T) {
	assert.True(t, isDDLQuery("ALTER TABLE logs ADD PARTITION (loguid='a')"))
	assert.True(t, isDDLQuery("show partitions logs"))
	assert.False(t, isDDLQuery("SELECT loguid FROM logs"))
}
