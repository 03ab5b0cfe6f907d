package athena

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/pkg/errors"
)

// Column describes one result column: its name and the Athena type that
// drives value conversion.
type Column struct {
	Name string
	Type string
}

// Row maps column names to converted scalar values. A NULL cell is a nil
// entry under its column name.
type Row map[string]interface{}

// ResultSet holds one query's fully aggregated results. Columns preserves
// the declared column order; Rows preserves row order across result pages.
type ResultSet struct {
	Columns []Column
	Rows    []Row
}

// ColumnNames returns the column names in declared order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, col := range rs.Columns {
		names[i] = col.Name
	}
	return names
}

// FetchResults retrieves and shapes all result pages of a SUCCEEDED
// execution. Any other state is a precondition violation reported as a
// *FetchError; partial data is never returned as success. The header row
// Athena includes on the first page labels the columns and is excluded
// from Rows.
func (c *Client) FetchResults(ctx context.Context, executionID string) (*ResultSet, error) {
	state, err := c.QueryStatus(ctx, executionID)
	if err != nil {
		return nil, &FetchError{ExecutionID: executionID, Err: err}
	}
	if state != types.QueryExecutionStateSucceeded {
		return nil, &FetchError{ExecutionID: executionID, State: state}
	}

	return c.fetchResults(ctx, executionID, state, true)
}

func (c *Client) fetchResults(ctx context.Context, executionID string, state types.QueryExecutionState, skipHeader bool) (*ResultSet, error) {
	rs := &ResultSet{}

	var nextToken *string
	for {
		input := &athena.GetQueryResultsInput{
			QueryExecutionId: &executionID,
			NextToken:        nextToken,
		}

		resp, err := c.api.GetQueryResults(ctx, input)
		if err != nil {
			return nil, &FetchError{ExecutionID: executionID, State: state, Err: err}
		}
		if resp.ResultSet == nil {
			break
		}

		// Column metadata rides on every page; capture it from the first.
		if rs.Columns == nil && resp.ResultSet.ResultSetMetadata != nil {
			for _, info := range resp.ResultSet.ResultSetMetadata.ColumnInfo {
				col := Column{}
				if info.Name != nil {
					col.Name = *info.Name
				}
				if info.Type != nil {
					col.Type = *info.Type
				}
				rs.Columns = append(rs.Columns, col)
			}
		}

		rows := resp.ResultSet.Rows
		if skipHeader && len(rows) > 0 {
			rows = rows[1:]
		}
		skipHeader = false

		for _, row := range rows {
			shaped, err := shapeRow(rs.Columns, row.Data)
			if err != nil {
				return nil, &FetchError{ExecutionID: executionID, State: state, Err: err}
			}
			rs.Rows = append(rs.Rows, shaped)
		}

		if resp.NextToken == nil {
			break
		}
		nextToken = resp.NextToken
	}

	c.log.Debug("query results fetched", "execution_id", executionID, "rows", len(rs.Rows))
	return rs, nil
}

func shapeRow(columns []Column, data []types.Datum) (Row, error) {
	row := make(Row, len(data))
	for i, datum := range data {
		if i >= len(columns) {
			return nil, errors.Errorf("row has %d cells but only %d columns are declared", len(data), len(columns))
		}

		col := columns[i]
		if datum.VarCharValue == nil {
			row[col.Name] = nil
			continue
		}

		v, err := convertValue(*datum.VarCharValue, col.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col.Name)
		}
		row[col.Name] = v
	}
	return row, nil
}
