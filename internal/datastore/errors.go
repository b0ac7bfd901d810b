package datastore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun/driver/pgdriver"
)

const PG_UNIQUE_VIOLATION = "23505"

var ErrConflict = errors.New("unique constraint violated")
var ErrStaleRecord = errors.New("record was changed by another request")

func translateError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == PG_UNIQUE_VIOLATION {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Field('n'))
	}
	return err
}

// affectedOne turns a conditional update that matched no row into
// ErrStaleRecord.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return translateError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleRecord
	}
	return nil
}

// sqlDate keeps date comparisons independent of the session time zone.
func sqlDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
