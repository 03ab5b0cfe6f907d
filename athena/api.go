package athena

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/athena"
)

// StartQueryExecutionAPI defines the interface for the Athena StartQueryExecution operation
type StartQueryExecutionAPI interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
}

// GetQueryExecutionAPI defines the interface for the Athena GetQueryExecution operation
type GetQueryExecutionAPI interface {
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

// GetQueryResultsAPI defines the interface for the Athena GetQueryResults operation
type GetQueryResultsAPI interface {
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// StopQueryExecutionAPI defines the interface for the Athena StopQueryExecution operation
type StopQueryExecutionAPI interface {
	StopQueryExecution(ctx context.Context, params *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
}

// GetWorkGroupAPI defines the interface for the Athena GetWorkGroup operation
type GetWorkGroupAPI interface {
	GetWorkGroup(ctx context.Context, params *athena.GetWorkGroupInput, optFns ...func(*athena.Options)) (*athena.GetWorkGroupOutput, error)
}

// API wraps the Athena operations the client depends on.
type API interface {
	StartQueryExecutionAPI
	GetQueryExecutionAPI
	GetQueryResultsAPI
	StopQueryExecutionAPI
	GetWorkGroupAPI
}

// Ensure that the SDK Athena client implements our interface
var _ API = (*athena.Client)(nil)
