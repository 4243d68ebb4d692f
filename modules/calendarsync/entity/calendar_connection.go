package entity

import (
	"time"

	"rosterhub/core/entity"

	"github.com/google/uuid"
)

// ConnectionStatus is the user-visible state of a calendar link.
type ConnectionStatus string

const (
	StatusConnected   ConnectionStatus = "connected"
	StatusNeedsReauth ConnectionStatus = "needs_reauth"
)

// CalendarConnection stores a user's linked Google Calendar account plus sync
// preferences. One per user; tokens are persisted only as ciphertext.
type CalendarConnection struct {
	entity.BaseEntity
	UserID              uuid.UUID        `db:"user_id" json:"user_id"`
	OrganizationID      uuid.UUID        `db:"organization_id" json:"organization_id"`
	GoogleAccountEmail  string           `db:"google_account_email" json:"google_account_email"`
	AccessTokenEnc      []byte           `db:"access_token_enc" json:"-"`
	RefreshTokenEnc     []byte           `db:"refresh_token_enc" json:"-"`
	TokenExpiresAt      time.Time        `db:"token_expires_at" json:"token_expires_at"`
	OrgCalendarID       *string          `db:"org_calendar_id" json:"-"`
	PersonalCalendarID  *string          `db:"personal_calendar_id" json:"-"`
	SyncOrgCalendar     bool             `db:"sync_org_calendar" json:"sync_org_calendar"`
	SyncPersonalCalendar bool            `db:"sync_personal_calendar" json:"sync_personal_calendar"`
	Status              ConnectionStatus `db:"status" json:"status"`
}

func (CalendarConnection) TableName() string {
	return "calendar_connections"
}

// VenueCalendar is the per-venue provider calendar for one connection.
// Created lazily on first enable and never deleted on disable; the flag flips
// instead so re-enabling reuses the same provider calendar.
type VenueCalendar struct {
	entity.BaseEntity
	ConnectionID     uuid.UUID `db:"connection_id" json:"connection_id"`
	VenueID          uuid.UUID `db:"venue_id" json:"venue_id"`
	GoogleCalendarID string    `db:"google_calendar_id" json:"-"`
	SyncEnabled      bool      `db:"sync_enabled" json:"sync_enabled"`
}

func (VenueCalendar) TableName() string {
	return "venue_calendars"
}
