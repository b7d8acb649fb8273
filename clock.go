package pagetextcache

import "time"

// Clock provides time operations for the stores.
// The default implementation uses time.Now(); tests inject a fake to control
// entry expiration without sleeping.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
