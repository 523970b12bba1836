package schedule

import "time"

// Canonical tolerance windows. The sweep runs on a period coarser than a
// minute, so a point-in-time equality test would miss firings; a symmetric
// window catches the instant no matter which side of it a tick lands on.
const (
	// SweepTolerance brackets the advance notification target.
	SweepTolerance = 5 * time.Minute
	// ExactTolerance brackets the exact-time firing instant.
	ExactTolerance = 1 * time.Minute
)

// WithinTolerance reports whether now is within tol of target. The interval
// is closed on both ends: a tick landing exactly on the boundary still fires.
func WithinTolerance(target, now time.Time, tol time.Duration) bool {
	d := now.Sub(target)
	if d < 0 {
		d = -d
	}
	return d <= tol
}
