package constants

import "time"

const (
	LastResetMarker = "lastResetDate"

	// Sessions live in the local cache under user:{token}; the in-process copy expires.
	UserSessionPrefix   = "user"
	SessionCacheExpiry  = 12 * time.Hour
	SessionCacheCleanup = 30 * time.Minute
)
