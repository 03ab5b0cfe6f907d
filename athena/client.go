// Package athena drives Athena queries for the Carbonix telemetry pool:
// submit a statement, poll the execution to a terminal state, fetch and
// shape the paginated results. Partition registration and loguid existence
// checks for the log table are built on the same submit/wait/fetch cycle.
package athena

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
)

const (
	// pollIntervalDefault is the delay between status checks. Each check is
	// a billable API call, so the default stays at seconds scale.
	pollIntervalDefault = 5 * time.Second

	// timeoutDefault matches Athena's own DML execution limit.
	timeoutDefault = 30 * time.Minute

	// CatalogAwsDataCatalog default catalog name
	CatalogAwsDataCatalog = "AwsDataCatalog"
)

// Config is the input to New.
type Config struct {
	// Database is the Athena database queries run against.
	Database string

	// Table is the partitioned log table used by the existence-check and
	// partition helpers. Plain-query methods do not require it.
	Table string

	// OutputLocation is the S3 location Athena writes result objects to,
	// in the form "s3://bucket/prefix/". When empty the workgroup's
	// configured location applies.
	OutputLocation string

	// WorkGroup defaults to "primary".
	WorkGroup string

	// Catalog defaults to "AwsDataCatalog".
	Catalog string

	// PollInterval is the delay between status checks while waiting on a
	// query. Defaults to 5s.
	PollInterval time.Duration

	// Timeout bounds how long WaitForQuery keeps polling one execution.
	// Defaults to 30m.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client submits queries and drives them to completion. It holds no mutable
// state beyond the service handle; independent executions may be waited on
// from independent goroutines, each owning its own poll cadence.
type Client struct {
	api            API
	db             string
	table          string
	outputLocation string
	workgroup      string
	catalog        string
	pollInterval   time.Duration
	timeout        time.Duration
	log            *slog.Logger
}

// New builds a Client from an AWS config, e.g. one loaded with
// config.LoadDefaultConfig.
func New(awsCfg aws.Config, cfg Config) (*Client, error) {
	return NewWithAPI(athena.NewFromConfig(awsCfg), cfg)
}

// NewFromRegion builds a Client on the SDK's default credential chain,
// optionally overriding the region.
func NewFromRegion(ctx context.Context, region string, cfg Config) (*Client, error) {
	var cfgOpts []func(*config.LoadOptions) error
	if region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, err
	}
	return New(awsCfg, cfg)
}

// NewWithAPI builds a Client around an existing Athena API implementation.
func NewWithAPI(api API, cfg Config) (*Client, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("database is required")
	}
	if cfg.WorkGroup == "" {
		cfg.WorkGroup = "primary"
	}
	if cfg.Catalog == "" {
		cfg.Catalog = CatalogAwsDataCatalog
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollIntervalDefault
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = timeoutDefault
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		api:            api,
		db:             cfg.Database,
		table:          cfg.Table,
		outputLocation: cfg.OutputLocation,
		workgroup:      cfg.WorkGroup,
		catalog:        cfg.Catalog,
		pollInterval:   cfg.PollInterval,
		timeout:        cfg.Timeout,
		log:            cfg.Logger,
	}, nil
}

// OutputLocationFromWorkGroup returns the result location configured on the
// client's workgroup. Useful when no explicit OutputLocation is set and a
// caller needs to know where result objects land.
func (c *Client) OutputLocationFromWorkGroup(ctx context.Context) (string, error) {
	input := &athena.GetWorkGroupInput{
		WorkGroup: &c.workgroup,
	}

	resp, err := c.api.GetWorkGroup(ctx, input)
	if err != nil {
		return "", err
	}

	if resp.WorkGroup == nil || resp.WorkGroup.Configuration == nil || resp.WorkGroup.Configuration.ResultConfiguration == nil {
		return "", fmt.Errorf("workgroup %s has no output location configured", c.workgroup)
	}

	outputLocation := resp.WorkGroup.Configuration.ResultConfiguration.OutputLocation
	if outputLocation == nil || *outputLocation == "" {
		return "", fmt.Errorf("workgroup %s has no output location configured", c.workgroup)
	}

	return *outputLocation, nil
}
