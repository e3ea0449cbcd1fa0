package domain

import "time"

// TimestampPrecision is the resolution of stored timestamps (PostgreSQL TIMESTAMPTZ).
const TimestampPrecision = time.Microsecond

// Now returns the current UTC time at stored precision, so a record returned
// to the caller equals the same record read back from the database.
func Now() time.Time {
	return time.Now().UTC().Truncate(TimestampPrecision)
}
