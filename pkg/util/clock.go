package util

import "time"

// Clock abstracts the wall clock so stores and services can run under a
// deterministic time source in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
