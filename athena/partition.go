package athena

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/pkg/errors"
)

// PartitionKey names one subdivision of the log table and the storage
// location holding its data. It is only ever used to construct
// ADD PARTITION statements; the table itself owns partition state.
type PartitionKey struct {
	LogUID      string
	MessageType string
	Instance    string
	KeyName     string

	// Location is the full s3:// URI of the partition's folder.
	Location string
}

// ParsePartitionPath builds a PartitionKey from a pool folder key of the
// form "loguid=<v>/messagetype=<v>/instance=<v>/keyname=<v>/...". Backslash
// separators and leading slashes are normalized away first.
func ParsePartitionPath(folder, bucket string) (PartitionKey, error) {
	folder = strings.ReplaceAll(folder, "\\", "/")
	folder = strings.TrimRight(strings.TrimLeft(folder, "/"), "\n")

	parts := strings.Split(strings.TrimSuffix(folder, "/"), "/")
	if len(parts) < 4 {
		return PartitionKey{}, errors.Errorf("partition path %q has %d segments, want 4", folder, len(parts))
	}

	values := make([]string, 4)
	for i, want := range []string{"loguid", "messagetype", "instance", "keyname"} {
		name, value, ok := strings.Cut(parts[i], "=")
		if !ok || !strings.EqualFold(name, want) || value == "" {
			return PartitionKey{}, errors.Errorf("partition path segment %q: want %s=<value>", parts[i], want)
		}
		values[i] = value
	}

	return PartitionKey{
		LogUID:      values[0],
		MessageType: values[1],
		Instance:    values[2],
		KeyName:     values[3],
		Location:    fmt.Sprintf("s3://%s/%s", bucket, folder),
	}, nil
}

// clause renders the PARTITION (...) LOCATION '...' fragment of an
// ALTER TABLE ADD statement.
func (p PartitionKey) clause() (string, error) {
	lits := make([]string, 0, 5)
	for _, v := range []string{p.LogUID, p.MessageType, p.Instance, p.KeyName, p.Location} {
		lit, err := serial(v)
		if err != nil {
			return "", err
		}
		lits = append(lits, lit)
	}

	return fmt.Sprintf("PARTITION (loguid=%s, messagetype=%s, instance=%s, keyname=%s) LOCATION %s",
		lits[0], lits[1], lits[2], lits[3], lits[4]), nil
}

// AddPartitions registers each partition with the log table and returns the
// number applied. Adding a partition that already exists is a success, not
// an error. A partition whose statement fails for any other reason is
// recorded and the remaining partitions still run; the failures come back
// in a *PartitionError alongside the applied count so callers can retry
// just those keys.
func (c *Client) AddPartitions(ctx context.Context, partitions []PartitionKey) (int, error) {
	if c.table == "" {
		return 0, errors.New("table is not configured")
	}

	applied := 0
	var failures []PartitionFailure
	for _, p := range partitions {
		if err := c.addPartition(ctx, p); err != nil {
			c.log.Debug("add partition failed", "loguid", p.LogUID, "location", p.Location, "error", err)
			failures = append(failures, PartitionFailure{Partition: p, Err: err})
			continue
		}
		applied++
	}

	if len(failures) > 0 {
		return applied, &PartitionError{Applied: applied, Failures: failures}
	}
	return applied, nil
}

func (c *Client) addPartition(ctx context.Context, p PartitionKey) error {
	clause, err := p.clause()
	if err != nil {
		return errors.Wrap(err, "encode partition values")
	}

	query := fmt.Sprintf("ALTER TABLE %s ADD IF NOT EXISTS %s", c.table, clause)

	executionID, err := c.StartQuery(ctx, query)
	if err != nil {
		return err
	}

	state, err := c.WaitForQuery(ctx, executionID)
	if err != nil {
		return err
	}

	switch state {
	case types.QueryExecutionStateSucceeded:
		return nil
	case types.QueryExecutionStateFailed:
		reason := c.stateChangeReason(ctx, executionID)
		// IF NOT EXISTS absorbs duplicates on current engines; older ones
		// surface them as an AlreadyExistsException instead.
		if strings.Contains(reason, "already exists") || strings.Contains(reason, "AlreadyExistsException") {
			return nil
		}
		return errors.Errorf("partition statement failed: %s", reason)
	default:
		return errors.Errorf("partition statement ended %s", state)
	}
}
