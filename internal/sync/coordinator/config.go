package coordinator

import (
	"math/rand/v2"
	"time"
)

// maxJitterFraction is the largest share of the interval added or removed as jitter
const maxJitterFraction = 10

// nextInterval returns interval with a random offset of up to ±10% applied
func nextInterval(interval time.Duration) time.Duration {
	jitter := interval / maxJitterFraction
	if jitter <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return interval + offset
}
