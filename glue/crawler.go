// Package glue controls the Glue crawler that keeps the telemetry pool's
// table metadata in step with the objects landing in S3.
package glue

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/pkg/errors"
)

// API wraps the Glue crawler operations the client depends on.
type API interface {
	StartCrawler(ctx context.Context, params *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error)
	StopCrawler(ctx context.Context, params *glue.StopCrawlerInput, optFns ...func(*glue.Options)) (*glue.StopCrawlerOutput, error)
	GetCrawler(ctx context.Context, params *glue.GetCrawlerInput, optFns ...func(*glue.Options)) (*glue.GetCrawlerOutput, error)
}

var _ API = (*glue.Client)(nil)

// Client drives one named crawler.
type Client struct {
	api  API
	name string
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New builds a Client from an AWS config.
func New(awsCfg aws.Config, crawlerName string, opts ...Option) *Client {
	return NewWithAPI(glue.NewFromConfig(awsCfg), crawlerName, opts...)
}

// NewWithAPI builds a Client around an existing Glue API implementation.
func NewWithAPI(api API, crawlerName string, opts ...Option) *Client {
	c := &Client{
		api:  api,
		name: crawlerName,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start triggers a crawl. Starting a crawler that is already running is
// not an error.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.api.StartCrawler(ctx, &glue.StartCrawlerInput{Name: &c.name})
	if err != nil {
		var running *types.CrawlerRunningException
		if errors.As(err, &running) {
			c.log.Debug("crawler already running", "crawler", c.name)
			return nil
		}
		return errors.Wrapf(err, "start crawler %s", c.name)
	}

	c.log.Debug("crawler started", "crawler", c.name)
	return nil
}

// Stop cancels the current crawl. A crawler that is not running, or is
// already stopping, counts as stopped.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.api.StopCrawler(ctx, &glue.StopCrawlerInput{Name: &c.name})
	if err != nil {
		var notRunning *types.CrawlerNotRunningException
		var stopping *types.CrawlerStoppingException
		if errors.As(err, &notRunning) || errors.As(err, &stopping) {
			return nil
		}
		return errors.Wrapf(err, "stop crawler %s", c.name)
	}
	return nil
}

// Status returns the crawler's current state.
func (c *Client) Status(ctx context.Context) (types.CrawlerState, error) {
	resp, err := c.api.GetCrawler(ctx, &glue.GetCrawlerInput{Name: &c.name})
	if err != nil {
		return "", errors.Wrapf(err, "get crawler %s", c.name)
	}
	if resp.Crawler == nil {
		return "", errors.Errorf("get crawler %s: nil crawler in response", c.name)
	}

	state := resp.Crawler.State
	c.log.Debug("crawler status", "crawler", c.name, "state", state)
	return state, nil
}

// Running reports whether the crawler is currently crawling.
func (c *Client) Running(ctx context.Context) (bool, error) {
	state, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return state == types.CrawlerStateRunning, nil
}

// Ready reports whether the crawler is idle and its last run's metadata is
// visible.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	state, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return state == types.CrawlerStateReady, nil
}

// WaitUntilReady polls the crawler until it returns to READY, sleeping
// pollInterval between checks. It fails rather than returning silently
// when the timeout elapses with the crawler still busy.
func (c *Client) WaitUntilReady(ctx context.Context, pollInterval, timeout time.Duration) error {
	start := time.Now()
	for {
		state, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if state == types.CrawlerStateReady {
			return nil
		}

		if time.Since(start) >= timeout {
			return errors.Errorf("crawler %s still %s after %s", c.name, state, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
