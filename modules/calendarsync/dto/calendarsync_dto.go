package dto

import (
	"time"

	"rosterhub/modules/calendarsync/entity"
)

// ========== Connection DTOs ==========

// ConnectURLResponse carries the provider consent URL the client redirects to.
type ConnectURLResponse struct {
	AuthURL string `json:"auth_url"`
}

// ConnectionResponse is the connection view returned to clients. Tokens never leave
// the service.
type ConnectionResponse struct {
	ID                   string                  `json:"id"`
	GoogleAccountEmail   string                  `json:"google_account_email"`
	Status               entity.ConnectionStatus `json:"status"`
	SyncOrgCalendar      bool                    `json:"sync_org_calendar"`
	SyncPersonalCalendar bool                    `json:"sync_personal_calendar"`
	ConnectedAt          time.Time               `json:"connected_at"`
	VenueCalendars       []VenueCalendarResponse `json:"venue_calendars,omitempty"`
}

// VenueCalendarResponse is one per-venue sync toggle row.
type VenueCalendarResponse struct {
	VenueID     string `json:"venue_id"`
	SyncEnabled bool   `json:"sync_enabled"`
}

// UpdatePreferencesRequest patches the calendar sync preferences. Nil fields
// are left unchanged.
type UpdatePreferencesRequest struct {
	SyncOrgCalendar      *bool `json:"sync_org_calendar"`
	SyncPersonalCalendar *bool `json:"sync_personal_calendar"`
}

// ToggleVenueSyncRequest enables or disables syncing for one venue.
type ToggleVenueSyncRequest struct {
	Enabled bool `json:"enabled"`
}

// ========== Mappers ==========

func ToConnectionResponse(conn *entity.CalendarConnection, venueCalendars []entity.VenueCalendar) ConnectionResponse {
	resp := ConnectionResponse{
		ID:                   conn.ID.String(),
		GoogleAccountEmail:   conn.GoogleAccountEmail,
		Status:               conn.Status,
		SyncOrgCalendar:      conn.SyncOrgCalendar,
		SyncPersonalCalendar: conn.SyncPersonalCalendar,
		ConnectedAt:          conn.CreatedAt,
	}
	for _, vc := range venueCalendars {
		resp.VenueCalendars = append(resp.VenueCalendars, VenueCalendarResponse{
			VenueID:     vc.VenueID.String(),
			SyncEnabled: vc.SyncEnabled,
		})
	}
	return resp
}
