package athena

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// KeyExists runs a bounded probe for a column value in the log table:
// SELECT <col> FROM <table> WHERE <col> = <value> LIMIT 1. It returns true
// iff the probe SUCCEEDED and produced at least one row. A probe that fails
// at any stage propagates its error; existence-unknown is never collapsed
// into "does not exist".
func (c *Client) KeyExists(ctx context.Context, column string, value interface{}) (bool, error) {
	if c.table == "" {
		return false, errors.New("table is not configured")
	}

	lit, err := serial(value)
	if err != nil {
		return false, errors.Wrap(err, "encode predicate value")
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1", column, c.table, column, lit)

	rs, err := c.RunQuery(ctx, query)
	if err != nil {
		return false, err
	}
	return len(rs.Rows) > 0, nil
}

// LogUIDExists reports whether any telemetry for the loguid has landed in
// the log table.
func (c *Client) LogUIDExists(ctx context.Context, loguid string) (bool, error) {
	return c.KeyExists(ctx, "loguid", loguid)
}

// BootTime returns the earliest timestamp recorded for a loguid, as stored
// in the table. The marker message depends on the log flavor: dataflash
// logs (.BIN) boot with an FMT/Type record, telemetry logs (.TLOG) with a
// HEARTBEAT/type record.
func (c *Client) BootTime(ctx context.Context, loguid, fileType string) (string, error) {
	if c.table == "" {
		return "", errors.New("table is not configured")
	}

	var messageType, keyName string
	switch strings.ToUpper(fileType) {
	case ".BIN":
		messageType, keyName = "FMT", "Type"
	case ".TLOG":
		messageType, keyName = "HEARTBEAT", "type"
	default:
		return "", errors.Errorf("unsupported log file type %q", fileType)
	}

	lit, err := serial(loguid)
	if err != nil {
		return "", errors.Wrap(err, "encode loguid")
	}

	query := fmt.Sprintf(
		"SELECT loguid, timestamp FROM %s WHERE loguid = %s AND messagetype = '%s' AND keyname = '%s' ORDER BY timestamp ASC LIMIT 1",
		c.table, lit, messageType, keyName)

	rs, err := c.RunQuery(ctx, query)
	if err != nil {
		return "", err
	}
	if len(rs.Rows) == 0 {
		return "", errors.Errorf("no boot record for loguid %s", loguid)
	}

	switch ts := rs.Rows[0]["timestamp"].(type) {
	case nil:
		return "", errors.Errorf("boot record for loguid %s has no timestamp", loguid)
	case time.Time:
		return ts.Format(TimestampLayout), nil
	default:
		return fmt.Sprint(ts), nil
	}
}
