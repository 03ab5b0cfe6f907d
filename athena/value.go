package athena

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// TimestampLayout is the Go time layout string for an Athena `timestamp`.
	TimestampLayout             = "2006-01-02 15:04:05.999"
	TimestampWithTimeZoneLayout = "2006-01-02 15:04:05.999 MST"
	DateLayout                  = "2006-01-02"
)

// convertValue turns Athena's textual cell representation into the Go
// scalar matching the declared column type. Unrecognized types pass
// through as strings.
func convertValue(s string, columnType string) (interface{}, error) {
	switch columnType {
	case "tinyint", "smallint", "integer", "int":
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse integer value: %s", s)
		}
		return int32(i), nil
	case "bigint":
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse bigint value: %s", s)
		}
		return i, nil
	case "double", "float", "real":
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse float value: %s", s)
		}
		return f, nil
	case "boolean":
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse boolean value: %s", s)
		}
		return b, nil
	case "varbinary":
		// Athena renders binary cells as space-separated hex octets.
		b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse varbinary value: %s", s)
		}
		return b, nil
	case "timestamp":
		t, err := time.Parse(TimestampLayout, s)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse timestamp value: %s", s)
		}
		return t, nil
	case "timestamp with time zone":
		t, err := time.Parse(TimestampWithTimeZoneLayout, s)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse timestamp value: %s", s)
		}
		return t, nil
	case "date":
		t, err := time.Parse(DateLayout, s)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse date value: %s", s)
		}
		return t, nil
	default:
		return s, nil
	}
}
