package services

import "time"

// linkCacheTTL is how long a positive entry may live: the remaining validity
// of the link, capped at def. A result <= 0 means the link must not be cached.
func linkCacheTTL(validDate *time.Time, now time.Time, def time.Duration) time.Duration {
	if validDate == nil {
		return def
	}
	if remaining := validDate.Sub(now); remaining < def {
		return remaining
	}
	return def
}
