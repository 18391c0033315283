// Package clock declares the time source shared by aggregators, sessions and
// the navigation journal. Implementations live in clock/system.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
