package aurora

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

// LogExists reports whether a log with the given SHA256 hash has already
// been registered in LogTable.
func (h *Handler) LogExists(ctx context.Context, sha256hash string) (bool, error) {
	query, args, err := sq.Select("COUNT(1)").
		From("LogTable").
		Where(sq.Eq{"SHA256Hash": sha256hash}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build query")
	}

	var count int
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, errors.Wrap(err, "query LogTable")
	}

	h.log.Debug("log lookup", "sha256", sha256hash, "count", count)
	return count > 0, nil
}

// AircraftUID returns the UID of the aircraft the Cube with the given
// serial number was installed in at the given time. The component link
// table bounds each installation with a StartDate and an open or closed
// EndDate.
func (h *Handler) AircraftUID(ctx context.Context, cubeSerial string, at time.Time) (string, error) {
	query, args, err := aircraftLinkQuery("ASCL.AircraftID", at, cubeSerial).ToSql()
	if err != nil {
		return "", errors.Wrap(err, "build query")
	}

	var uid string
	err = h.db.QueryRowContext(ctx, query, args...).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Errorf("no aircraft found for cube serial %s at %s", cubeSerial, at.Format(time.RFC3339))
	}
	if err != nil {
		return "", errors.Wrapf(err, "look up aircraft for cube serial %s", cubeSerial)
	}

	return uid, nil
}

// AircraftName returns the name of the aircraft the Cube with the given
// serial number was installed in at the given time.
func (h *Handler) AircraftName(ctx context.Context, cubeSerial string, at time.Time) (string, error) {
	query, args, err := aircraftLinkQuery("AT.AircraftName", at, cubeSerial).
		Join("AircraftTable AS AT ON ASCL.AircraftID = AT.UID").
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, "build query")
	}

	var name string
	err = h.db.QueryRowContext(ctx, query, args...).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Errorf("no aircraft found for cube serial %s at %s", cubeSerial, at.Format(time.RFC3339))
	}
	if err != nil {
		return "", errors.Wrapf(err, "look up aircraft for cube serial %s", cubeSerial)
	}

	return name, nil
}

func aircraftLinkQuery(column string, at time.Time, cubeSerial string) sq.SelectBuilder {
	return sq.Select(column).
		From("AircraftSubComponentLink AS ASCL").
		Join("SubComponentUnits AS SCU ON ASCL.SubComponentUnitID = SCU.UID").
		Where(sq.Eq{"SCU.SerialNumber": cubeSerial}).
		Where(sq.LtOrEq{"ASCL.StartDate": at}).
		Where(sq.Or{
			sq.Eq{"ASCL.EndDate": nil},
			sq.GtOrEq{"ASCL.EndDate": at},
		})
}
