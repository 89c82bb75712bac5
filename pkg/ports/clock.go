package ports

import "time"

// Clock abstracts time so presentation delays can be tested without
// wall-clock waits.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}
