package queue

import "reframe/internal/services"

// FailureStatus maps a job error to the queue status the workflow manager
// should persist. Every failure is terminal; Retryable decides whether a
// retry can change the outcome.
func FailureStatus(err error) Status {
	if err == nil {
		return StatusCompleted
	}
	return StatusFailed
}

// Retryable reports whether resubmitting the same item could succeed.
// Bad input and impossible geometry fail the same way every time.
func Retryable(kind string) bool {
	switch kind {
	case "invalid_spec", "degenerate_geometry":
		return false
	}
	return true
}

// FailureKind returns the stable kind recorded for err.
func FailureKind(err error) string {
	return services.Kind(err)
}
