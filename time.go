package registration

import "time"

// ActivationExpiresAt returns the instant the activation window closes.
func ActivationExpiresAt(issuedAt time.Time, days int) time.Time {
	return issuedAt.Add(time.Duration(days) * 24 * time.Hour)
}

// ActivationKeyExpired reports whether a key issued at issuedAt is expired
// at now. The window is closed on the boundary: issuedAt + days <= now.
func ActivationKeyExpired(issuedAt time.Time, days int, now time.Time) bool {
	return !ActivationExpiresAt(issuedAt, days).After(now)
}

// activationCutoff is the oldest issue time still inside the window.
// Keys issued strictly after it are live.
func activationCutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}
