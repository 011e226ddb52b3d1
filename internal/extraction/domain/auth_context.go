package domain

import "time"

// AuthContext is the caller identity handed to review operations by the auth provider.
type AuthContext struct {
	ActorID       string
	ElevatedUntil time.Time
}

// IsElevated reports whether the stepped-up authentication is still valid at now.
func (a AuthContext) IsElevated(now time.Time) bool {
	return now.Before(a.ElevatedUntil)
}
