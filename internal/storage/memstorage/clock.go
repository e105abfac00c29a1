package memstorage

import "time"

// now stamps created_at/updated_at the way the database defaults would.
func now() time.Time {
	return time.Now().UTC()
}
