package constants

import "time"

// Database tuning
const (
	DatabaseSSLMode         = "disable"
	DatabaseMaxOpenConns    = 25
	DatabaseMaxIdleConns    = 5
	DatabaseConnMaxLifetime = 30 // minutes
)

// Request handling
const (
	DefaultTimeout  = 10 * time.Second
	ProviderTimeout = 8 * time.Second
)

// Calendar sync defaults. Overridable via config; these are the documented
// conservative values (skew window, retry budget, backoff base, parallelism).
const (
	TokenRefreshSkew   = 5 * time.Minute
	SyncRetryAttempts  = 3
	SyncRetryBaseDelay = 500 * time.Millisecond
	SyncMaxParallel    = 4

	DeploymentTimezone = "America/New_York"
)

// OAuth state tokens
const (
	OAuthStateLength = 32
	OAuthStateTTL    = 10 * time.Minute
)

// Redis keys
const (
	RedisKeyTokenBlacklist = "auth:blacklist:"
	RedisKeyReauthNotified = "calendar:reauth_notified:"
)

// Asynq task types
const (
	TaskCalendarReauthRequired = "calendar:reauth_required"
	TaskCalendarSyncFailed     = "calendar:sync_failed"
)
