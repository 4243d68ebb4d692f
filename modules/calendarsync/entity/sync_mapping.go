package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scope identifiers. Venue scopes carry the venue id: "venue:<uuid>".
const (
	ScopeOrganization = "organization"
	ScopePersonal     = "personal"
	scopeVenuePrefix  = "venue:"
)

// VenueScope encodes a venue-calendar scope key.
func VenueScope(venueID uuid.UUID) string {
	return scopeVenuePrefix + venueID.String()
}

// ParseVenueScope extracts the venue id from a venue scope key.
func ParseVenueScope(scope string) (uuid.UUID, bool) {
	if !strings.HasPrefix(scope, scopeVenuePrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(scope, scopeVenuePrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SyncMapping records that an internal event has been pushed to one provider
// calendar: (connection, scope, event) -> provider event id + content hash.
// The hash is what makes re-syncs idempotent.
type SyncMapping struct {
	ConnectionID  uuid.UUID `db:"connection_id" json:"connection_id"`
	Scope         string    `db:"scope" json:"scope"`
	EventID       uuid.UUID `db:"event_id" json:"event_id"`
	GoogleEventID string    `db:"google_event_id" json:"-"`
	ContentHash   string    `db:"content_hash" json:"content_hash"`
	LastSyncedAt  time.Time `db:"last_synced_at" json:"last_synced_at"`
}

func (m SyncMapping) String() string {
	return fmt.Sprintf("mapping(%s/%s/%s)", m.ConnectionID, m.Scope, m.EventID)
}
