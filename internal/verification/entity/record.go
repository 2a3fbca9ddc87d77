package entity

import "time"

// Record is the pending verification for one user.
type Record struct {
	Code        string
	PhoneNumber string
	ExpiresAt   time.Time
	Attempts    int
}

// Expired reports whether the record is past its expiry at now. A record is
// still valid at the exact expiry instant.
func (r Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// RemainingAttempts returns how many comparisons are left under maxAttempts.
func (r Record) RemainingAttempts(maxAttempts int) int {
	return max(maxAttempts-r.Attempts, 0)
}
