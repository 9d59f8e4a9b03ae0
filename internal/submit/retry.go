package submit

import (
	"math"
	"math/rand"
	"net/http"
	"time"
)

// backoff is the nominal wait before retry number attempt: InitialDelay
// grown by Multiplier per attempt and capped at MaxDelay.
func backoff(attempt int, config *RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	return time.Duration(math.Min(delay, float64(config.MaxDelay)))
}

// jitter spreads d uniformly over ±10%.
func jitter(d time.Duration) time.Duration {
	spread := float64(d) * 0.1
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

func calculateBackoff(attempt int, config *RetryConfig) time.Duration {
	return jitter(backoff(attempt, config))
}

// isRetryableStatus reports whether the host may accept the same submission
// on a later attempt.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
