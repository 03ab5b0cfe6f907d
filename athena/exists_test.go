package athena

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selectAPI fakes a full submit/wait/fetch cycle for a SELECT returning the
// given data rows, recording the submitted statement.
func selectAPI(submitted *string, columns []types.ColumnInfo, dataRows ...types.Row) *fakeAPI {
	rows := []types.Row{}
	header := types.Row{}
	for _, col := range columns {
		header.Data = append(header.Data, types.Datum{VarCharValue: col.Name})
	}
	rows = append(rows, header)
	rows = append(rows, dataRows...)

	return &fakeAPI{
		start: func(params *athena.StartQueryExecutionInput) (*athena.StartQueryExecutionOutput, error) {
			*submitted = aws.ToString(params.QueryString)
			return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("exec-1")}, nil
		},
		getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
			return execOutput(types.QueryExecutionStateSucceeded, ""), nil
		},
		getResults: func(*athena.GetQueryResultsInput) (*athena.GetQueryResultsOutput, error) {
			return &athena.GetQueryResultsOutput{
				ResultSet: &types.ResultSet{
					ResultSetMetadata: &types.ResultSetMetadata{ColumnInfo: columns},
					Rows:              rows,
				},
			}, nil
		},
	}
}

func TestLogUIDExists(t *testing.T) {
	var submitted string
	columns := []types.ColumnInfo{genColumnInfo("loguid", "varchar")}
	c := newTestClient(t, selectAPI(&submitted, columns, genRow("log123")))

	exists, err := c.LogUIDExists(context.Background(), "log123")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t,
		"SELECT loguid FROM carbonix_logs_telemetry_data_pool WHERE loguid = 'log123' LIMIT 1",
		submitted)
}

func TestLogUIDExistsNoRows(t *testing.T) {
	var submitted string
	columns := []types.ColumnInfo{genColumnInfo("loguid", "varchar")}
	c := newTestClient(t, selectAPI(&submitted, columns))

	// Zero rows from a SUCCEEDED query is a definitive "does not exist".
	exists, err := c.LogUIDExists(context.Background(), "log-missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestKeyExistsEscapesValue(t *testing.T) {
	var submitted string
	columns := []types.ColumnInfo{genColumnInfo("keyname", "varchar")}
	c := newTestClient(t, selectAPI(&submitted, columns))

	_, err := c.KeyExists(context.Background(), "keyname", "o'neill")
	require.NoError(t, err)
	assert.Contains(t, submitted, "keyname = 'o''neill'")
}

func TestKeyExistsPropagatesFailures(t *testing.T) {
	tests := []struct {
		desc string
		api  *fakeAPI
		as   func(error) bool
	}{
		{
			desc: "submission rejected",
			api: &fakeAPI{
				start: func(*athena.StartQueryExecutionInput) (*athena.StartQueryExecutionOutput, error) {
					return nil, errDummy
				},
			},
			as: func(err error) bool {
				var e *SubmissionError
				return assert.ErrorAs(t, err, &e)
			},
		},
		{
			desc: "query failed",
			api: &fakeAPI{
				start: func(*athena.StartQueryExecutionInput) (*athena.StartQueryExecutionOutput, error) {
					return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("exec-1")}, nil
				},
				getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
					return execOutput(types.QueryExecutionStateFailed, "PERMISSION_DENIED"), nil
				},
			},
			as: func(err error) bool {
				var e *FetchError
				return assert.ErrorAs(t, err, &e)
			},
		},
		{
			desc: "status lookup unreachable",
			api: &fakeAPI{
				start: func(*athena.StartQueryExecutionInput) (*athena.StartQueryExecutionOutput, error) {
					return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("exec-1")}, nil
				},
				getExec: func(*athena.GetQueryExecutionInput) (*athena.GetQueryExecutionOutput, error) {
					return nil, errDummy
				},
			},
			as: func(err error) bool {
				var e *LookupError
				return assert.ErrorAs(t, err, &e)
			},
		},
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			c := newTestClient(t, test.api)

			// Existence-unknown must surface as an error, never as false-with-nil.
			exists, err := c.LogUIDExists(context.Background(), "log123")
			assert.False(t, exists)
			require.Error(t, err)
			test.as(err)
		})
	}
}

func TestBootTime(t *testing.T) {
	tests := []struct {
		desc        string
		fileType    string
		messageType string
		keyName     string
	}{
		{desc: "dataflash", fileType: ".BIN", messageType: "FMT", keyName: "Type"},
		{desc: "telemetry", fileType: ".TLOG", messageType: "HEARTBEAT", keyName: "type"},
		{desc: "lowercase extension", fileType: ".bin", messageType: "FMT", keyName: "Type"},
	}

	columns := []types.ColumnInfo{
		genColumnInfo("loguid", "varchar"),
		genColumnInfo("timestamp", "bigint"),
	}

	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			var submitted string
			c := newTestClient(t, selectAPI(&submitted, columns, genRow("log123", "1667428489")))

			ts, err := c.BootTime(context.Background(), "log123", test.fileType)
			require.NoError(t, err)
			assert.Equal(t, "1667428489", ts)
			assert.Contains(t, submitted, "messagetype = '"+test.messageType+"'")
			assert.Contains(t, submitted, "keyname = '"+test.keyName+"'")
			assert.Contains(t, submitted, "ORDER BY timestamp ASC LIMIT 1")
		})
	}
}

func TestBootTimeUnsupportedType(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	_, err := c.BootTime(context.Background(), "log123", ".ULG")
	assert.Error(t, err)
}

func TestBootTimeNoRecord(t *testing.T) {
	var submitted string
	columns := []types.ColumnInfo{
		genColumnInfo("loguid", "varchar"),
		genColumnInfo("timestamp", "bigint"),
	}
	c := newTestClient(t, selectAPI(&submitted, columns))

	_, err := c.BootTime(context.Background(), "log123", ".BIN")
	assert.Error(t, err)
}
