package planeval

import "time"

// Report formatting constants.
const (
	percent           = 100
	durationPrecision = time.Millisecond
)
