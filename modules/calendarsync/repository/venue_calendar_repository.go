package repository

import (
	"context"
	"database/sql"

	"rosterhub/core/database"
	"rosterhub/core/logger"
	"rosterhub/modules/calendarsync/entity"

	"github.com/google/uuid"
)

type VenueCalendarRepository interface {
	GetByConnectionAndVenue(ctx context.Context, connectionID, venueID uuid.UUID) (*entity.VenueCalendar, error)
	GetEnabledByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.VenueCalendar, error)
	GetByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.VenueCalendar, error)
	Create(ctx context.Context, vc *entity.VenueCalendar) (*entity.VenueCalendar, error)
	SetSyncEnabled(ctx context.Context, connectionID, venueID uuid.UUID, enabled bool) error
	UpdateCalendarID(ctx context.Context, connectionID, venueID uuid.UUID, calendarID string) error
}

type venueCalendarRepository struct {
	db database.Database
}

func NewVenueCalendarRepository(db database.Database) VenueCalendarRepository {
	return &venueCalendarRepository{db: db}
}

func (r *venueCalendarRepository) GetByConnectionAndVenue(ctx context.Context, connectionID, venueID uuid.UUID) (*entity.VenueCalendar, error) {
	var vc entity.VenueCalendar
	query := `
		SELECT id, connection_id, venue_id, google_calendar_id, sync_enabled, created_at, updated_at
		FROM venue_calendars
		WHERE connection_id = $1 AND venue_id = $2
	`
	if err := r.db.GetContext(ctx, &vc, query, connectionID, venueID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("VenueCalendarRepository:GetByConnectionAndVenue:Error", "error", err)
		return nil, err
	}
	return &vc, nil
}

func (r *venueCalendarRepository) GetEnabledByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.VenueCalendar, error) {
	var rows []entity.VenueCalendar
	query := `
		SELECT id, connection_id, venue_id, google_calendar_id, sync_enabled, created_at, updated_at
		FROM venue_calendars
		WHERE connection_id = $1 AND sync_enabled = true
	`
	if err := r.db.SelectContext(ctx, &rows, query, connectionID); err != nil {
		logger.Error("VenueCalendarRepository:GetEnabledByConnection:Error", "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *venueCalendarRepository) GetByConnection(ctx context.Context, connectionID uuid.UUID) ([]entity.VenueCalendar, error) {
	var rows []entity.VenueCalendar
	query := `
		SELECT id, connection_id, venue_id, google_calendar_id, sync_enabled, created_at, updated_at
		FROM venue_calendars
		WHERE connection_id = $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, connectionID); err != nil {
		logger.Error("VenueCalendarRepository:GetByConnection:Error", "error", err)
		return nil, err
	}
	return rows, nil
}

func (r *venueCalendarRepository) Create(ctx context.Context, vc *entity.VenueCalendar) (*entity.VenueCalendar, error) {
	query := `
		INSERT INTO venue_calendars (connection_id, venue_id, google_calendar_id, sync_enabled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		vc.ConnectionID, vc.VenueID, vc.GoogleCalendarID, vc.SyncEnabled,
	).Scan(&vc.ID, &vc.CreatedAt, &vc.UpdatedAt)
	if err != nil {
		logger.Error("VenueCalendarRepository:Create:Error", "error", err)
		return nil, err
	}
	return vc, nil
}

func (r *venueCalendarRepository) UpdateCalendarID(ctx context.Context, connectionID, venueID uuid.UUID, calendarID string) error {
	query := `
		UPDATE venue_calendars
		SET google_calendar_id = $1, updated_at = NOW()
		WHERE connection_id = $2 AND venue_id = $3
	`
	err := r.db.ExecContext(ctx, query, calendarID, connectionID, venueID)
	if err != nil {
		logger.Error("VenueCalendarRepository:UpdateCalendarID:Error", "error", err)
	}
	return err
}

func (r *venueCalendarRepository) SetSyncEnabled(ctx context.Context, connectionID, venueID uuid.UUID, enabled bool) error {
	query := `
		UPDATE venue_calendars
		SET sync_enabled = $1, updated_at = NOW()
		WHERE connection_id = $2 AND venue_id = $3
	`
	err := r.db.ExecContext(ctx, query, enabled, connectionID, venueID)
	if err != nil {
		logger.Error("VenueCalendarRepository:SetSyncEnabled:Error", "error", err)
	}
	return err
}
