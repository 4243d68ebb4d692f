package entity

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the publication state of a scheduled event.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// EventVisibility controls which calendars an event may fan out to.
type EventVisibility string

const (
	VisibilityPublic  EventVisibility = "public"
	VisibilityMembers EventVisibility = "members"
	VisibilityPrivate EventVisibility = "private"
)

// AssignmentStatus is the lifecycle of a role assignment.
type AssignmentStatus string

const (
	AssignmentInvited  AssignmentStatus = "invited"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentDeclined AssignmentStatus = "declined"
)

// Event is the canonical internal event shape. Repositories normalize every
// joined-relation row (venues, assignments, invitations) into this struct
// before it reaches any mapper; downstream code never sees storage
// representation.
type Event struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	OrganizationID uuid.UUID       `db:"organization_id" json:"organization_id"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	StartsAt       time.Time       `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time       `db:"ends_at" json:"ends_at"`
	AllDay         bool            `db:"all_day" json:"all_day"`
	Status         EventStatus     `db:"status" json:"status"`
	Visibility     EventVisibility `db:"visibility" json:"visibility"`
	Location       string          `db:"location" json:"location"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	VenueIDs    []uuid.UUID  `db:"-" json:"venue_ids"`
	Assignments []Assignment `db:"-" json:"assignments"`
	InviteeIDs  []uuid.UUID  `db:"-" json:"invitee_ids"`
}

// Assignment links a person to a role on an event.
type Assignment struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	EventID   uuid.UUID        `db:"event_id" json:"event_id"`
	UserID    uuid.UUID        `db:"user_id" json:"user_id"`
	RoleTitle string           `db:"role_title" json:"role_title"`
	Status    AssignmentStatus `db:"status" json:"status"`
}

// Venue is a bookable space belonging to an organization.
type Venue struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	Color          string    `db:"color" json:"color"`
}

// HasVenue reports whether the event is linked to the given venue.
func (e *Event) HasVenue(venueID uuid.UUID) bool {
	for _, id := range e.VenueIDs {
		if id == venueID {
			return true
		}
	}
	return false
}

// AssignmentFor returns the user's assignment, if any.
func (e *Event) AssignmentFor(userID uuid.UUID) *Assignment {
	for i := range e.Assignments {
		if e.Assignments[i].UserID == userID {
			return &e.Assignments[i]
		}
	}
	return nil
}

// IsInvited reports whether the user holds an explicit invitation record.
func (e *Event) IsInvited(userID uuid.UUID) bool {
	for _, id := range e.InviteeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
