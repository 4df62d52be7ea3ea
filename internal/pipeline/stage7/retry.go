package stage7

import "time"

// backoffSchedule returns the exponential backoff delay for a given
// retry attempt (0-based), generalizing the teacher's
// internal/httpx/client.go calculateBackoff (base * 2^attempt) for a
// fixed, unjittered sequence — 1s, 2s, 4s when base is one second,
// matching the delays named explicitly.
func backoffSchedule(attempt int, base time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
