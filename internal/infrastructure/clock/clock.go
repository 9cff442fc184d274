// Package clock provides the real wall-clock implementation of
// port.Clock; tests substitute a fixed-time fake instead.
package clock

import (
	"time"

	"github.com/corelab/udd-packager/internal/application/port"
)

// System is the real wall clock.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time { return time.Now() }

var _ port.Clock = System{}
