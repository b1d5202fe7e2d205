package constants

import "time"

// Context keys shared between middleware and handlers
const (
	ContextKeyUserID     = "user_id"
	ContextKeyOrgID      = "organization_id"
	ContextKeyAccessJTI  = "access_jti"
	ContextKeyDialog     = "dialog"
	ContextKeyMembership = "membership"
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Auth
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Lifecycle windows for background cleanup sweeps
const (
	InvitationTTL           = 7 * 24 * time.Hour
	InvitationRetention     = 30 * 24 * time.Hour
	SessionRevokedRetention = 7 * 24 * time.Hour
	CleanupSweepInterval    = time.Hour
)
