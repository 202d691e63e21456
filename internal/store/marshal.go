package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/roach88/archivist/internal/model"
)

// dbID stores a uint64 identifier bit-for-bit in a signed INTEGER column.
// database/sql rejects uint64 values with the high bit set, so the
// conversion happens here rather than in the driver.
func dbID(id uint64) int64 {
	return int64(id)
}

// fromDBID reverses dbID.
func fromDBID(v int64) uint64 {
	return uint64(v)
}

// marshalTime splits a timestamp into unix seconds and its UTC offset so the
// fixed offset reported by the origin survives a round trip.
func marshalTime(t time.Time) (sec int64, offset int) {
	_, offset = t.Zone()
	return t.Unix(), offset
}

// unmarshalTime rebuilds a timestamp written by marshalTime.
func unmarshalTime(sec int64, offset int) time.Time {
	if offset == 0 {
		return time.Unix(sec, 0).UTC()
	}
	return time.Unix(sec, 0).In(time.FixedZone("", offset))
}

// escapeLike escapes LIKE metacharacters so user queries match literally.
// Used with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// nullableUser builds an author pointer from LEFT JOIN columns.
func nullableUser(id sql.NullInt64, name, handle, description sql.NullString) *model.User {
	if !id.Valid {
		return nil
	}
	return &model.User{
		ID:          fromDBID(id.Int64),
		Name:        name.String,
		Handle:      handle.String,
		Description: description.String,
	}
}
