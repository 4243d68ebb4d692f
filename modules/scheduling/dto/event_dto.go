package dto

import (
	"time"

	"rosterhub/modules/scheduling/entity"

	"github.com/google/uuid"
)

// CreateEventRequest creates an event in the caller's organization.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	AllDay      bool      `json:"all_day"`
	Status      string    `json:"status"`
	Visibility  string    `json:"visibility"`
	Location    string    `json:"location"`
	VenueIDs    []string  `json:"venue_ids"`
}

// UpdateEventRequest replaces the mutable fields of an event.
type UpdateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	AllDay      bool      `json:"all_day"`
	Status      string    `json:"status"`
	Visibility  string    `json:"visibility"`
	Location    string    `json:"location"`
}

// RespondAssignmentRequest accepts or declines the caller's assignment.
type RespondAssignmentRequest struct {
	Status string `json:"status" validate:"required"` // accepted | declined
}

func (r CreateEventRequest) ToEntity(orgID uuid.UUID) *entity.Event {
	event := &entity.Event{
		OrganizationID: orgID,
		Title:          r.Title,
		Description:    r.Description,
		StartsAt:       r.StartsAt,
		EndsAt:         r.EndsAt,
		AllDay:         r.AllDay,
		Status:         entity.EventStatus(r.Status),
		Visibility:     entity.EventVisibility(r.Visibility),
		Location:       r.Location,
	}
	if event.Status == "" {
		event.Status = entity.EventStatusDraft
	}
	if event.Visibility == "" {
		event.Visibility = entity.VisibilityMembers
	}
	for _, idStr := range r.VenueIDs {
		if id, err := uuid.Parse(idStr); err == nil {
			event.VenueIDs = append(event.VenueIDs, id)
		}
	}
	return event
}

func (r UpdateEventRequest) ApplyTo(event *entity.Event) {
	event.Title = r.Title
	event.Description = r.Description
	event.StartsAt = r.StartsAt
	event.EndsAt = r.EndsAt
	event.AllDay = r.AllDay
	if r.Status != "" {
		event.Status = entity.EventStatus(r.Status)
	}
	if r.Visibility != "" {
		event.Visibility = entity.EventVisibility(r.Visibility)
	}
	event.Location = r.Location
}
