package entity

import (
	"time"

	"rosterhub/core/entity"

	"github.com/google/uuid"
)

// OAuthState is the short-lived token persisted across the Google consent
// round-trip; it carries the initiating user so the callback can bind the
// granted credentials to the right connection.
type OAuthState struct {
	State          string    `db:"state"`
	UserID         uuid.UUID `db:"user_id"`
	OrganizationID uuid.UUID `db:"organization_id"`
	ExpiresAt      time.Time `db:"expires_at"`
	entity.BaseEntity
}
