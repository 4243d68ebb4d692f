package repository

import (
	"context"
	"database/sql"

	"rosterhub/core/database"
	"rosterhub/core/logger"
	"rosterhub/modules/scheduling/entity"

	"github.com/google/uuid"
)

// EventRepository is the read/write surface of the scheduling domain. The
// calendar sync service consumes it read-only for events and for
// target-resolution queries (org admins, venue members, assignees).
type EventRepository interface {
	GetEventByID(ctx context.Context, id uuid.UUID) (*entity.Event, error)
	CreateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error)
	UpdateEvent(ctx context.Context, event *entity.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	SetAssignmentStatus(ctx context.Context, eventID, userID uuid.UUID, status entity.AssignmentStatus) error

	GetVenue(ctx context.Context, id uuid.UUID) (*entity.Venue, error)
	GetOrganizationName(ctx context.Context, orgID uuid.UUID) (string, error)
	GetOrgAdminUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
	GetVenueMemberUserIDs(ctx context.Context, venueID uuid.UUID) ([]uuid.UUID, error)
}

type eventRepository struct {
	db database.Database
}

func NewEventRepository(db database.Database) EventRepository {
	return &eventRepository{db: db}
}

// GetEventByID loads an event and normalizes its joined relations (venues,
// assignments, invitations) into the canonical shape.
func (r *eventRepository) GetEventByID(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	var event entity.Event
	query := `
		SELECT id, organization_id, title, COALESCE(description, '') AS description,
		       starts_at, ends_at, all_day, status, visibility,
		       COALESCE(location, '') AS location, created_at, updated_at
		FROM events
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("EventRepository:GetEventByID:Error", "error", err, "event_id", id)
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &event.VenueIDs,
		`SELECT venue_id FROM event_venues WHERE event_id = $1 ORDER BY venue_id`, id); err != nil {
		logger.Error("EventRepository:GetEventByID:Venues:Error", "error", err, "event_id", id)
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &event.Assignments, `
		SELECT id, event_id, user_id, role_title, status
		FROM assignments
		WHERE event_id = $1
		ORDER BY role_title, user_id
	`, id); err != nil {
		logger.Error("EventRepository:GetEventByID:Assignments:Error", "error", err, "event_id", id)
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &event.InviteeIDs,
		`SELECT user_id FROM event_invitations WHERE event_id = $1`, id); err != nil {
		logger.Error("EventRepository:GetEventByID:Invitations:Error", "error", err, "event_id", id)
		return nil, err
	}

	return &event, nil
}

func (r *eventRepository) CreateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error) {
	query := `
		INSERT INTO events (organization_id, title, description, starts_at, ends_at, all_day, status, visibility, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		event.OrganizationID, event.Title, event.Description, event.StartsAt, event.EndsAt,
		event.AllDay, event.Status, event.Visibility, event.Location,
	).Scan(&event.ID, &event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		logger.Error("EventRepository:CreateEvent:Error", "error", err)
		return nil, err
	}

	for _, venueID := range event.VenueIDs {
		if err := r.db.ExecContext(ctx,
			`INSERT INTO event_venues (event_id, venue_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			event.ID, venueID); err != nil {
			logger.Error("EventRepository:CreateEvent:Venue:Error", "error", err, "venue_id", venueID)
			return nil, err
		}
	}
	return event, nil
}

func (r *eventRepository) UpdateEvent(ctx context.Context, event *entity.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, starts_at = $3, ends_at = $4, all_day = $5,
		    status = $6, visibility = $7, location = $8, updated_at = NOW()
		WHERE id = $9
	`
	err := r.db.ExecContext(ctx, query,
		event.Title, event.Description, event.StartsAt, event.EndsAt, event.AllDay,
		event.Status, event.Visibility, event.Location, event.ID,
	)
	if err != nil {
		logger.Error("EventRepository:UpdateEvent:Error", "error", err, "event_id", event.ID)
	}
	return err
}

func (r *eventRepository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		logger.Error("EventRepository:DeleteEvent:Error", "error", err, "event_id", id)
	}
	return err
}

func (r *eventRepository) SetAssignmentStatus(ctx context.Context, eventID, userID uuid.UUID, status entity.AssignmentStatus) error {
	query := `
		UPDATE assignments
		SET status = $1
		WHERE event_id = $2 AND user_id = $3
	`
	err := r.db.ExecContext(ctx, query, status, eventID, userID)
	if err != nil {
		logger.Error("EventRepository:SetAssignmentStatus:Error", "error", err, "event_id", eventID, "user_id", userID)
	}
	return err
}

func (r *eventRepository) GetVenue(ctx context.Context, id uuid.UUID) (*entity.Venue, error) {
	var venue entity.Venue
	query := `SELECT id, organization_id, name, COALESCE(color, '') AS color FROM venues WHERE id = $1`
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &venue, nil
}

func (r *eventRepository) GetOrganizationName(ctx context.Context, orgID uuid.UUID) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		return "", err
	}
	return name, nil
}

func (r *eventRepository) GetOrgAdminUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		SELECT user_id FROM organization_members
		WHERE organization_id = $1 AND role = 'admin'
	`
	if err := r.db.SelectContext(ctx, &ids, query, orgID); err != nil {
		logger.Error("EventRepository:GetOrgAdminUserIDs:Error", "error", err, "org_id", orgID)
		return nil, err
	}
	return ids, nil
}

func (r *eventRepository) GetVenueMemberUserIDs(ctx context.Context, venueID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `SELECT user_id FROM venue_memberships WHERE venue_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, venueID); err != nil {
		logger.Error("EventRepository:GetVenueMemberUserIDs:Error", "error", err, "venue_id", venueID)
		return nil, err
	}
	return ids, nil
}
