package worker

import (
	"math"
	"math/rand"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
)

// defaultBase and defaultCap are the suggested tuning values; base=1s,
// cap=5min.
const (
	defaultBase = time.Second
	defaultCap  = 5 * time.Minute
)

// retryDelay computes the delay before attempt is retried, grounded on the
// teacher's scheduler/worker.go retryDelay but generalized to the three
// named strategies (fixed/linear/exponential_jitter) instead of two, with
// jitter bounds matching exactly.
func retryDelay(backoff domain.Backoff, attempt int) time.Duration {
	switch backoff {
	case domain.BackoffFixed:
		return defaultBase
	case domain.BackoffLinear:
		return defaultBase * time.Duration(attempt)
	default: // exponential_jitter
		delay := time.Duration(float64(defaultBase) * math.Pow(2, float64(attempt-1)))
		if delay > defaultCap {
			delay = defaultCap
		}
		jitter := 0.5 + rand.Float64() // uniform(0.5, 1.5)
		return time.Duration(float64(delay) * jitter)
	}
}
