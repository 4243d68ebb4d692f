package repository

import (
	"context"
	"database/sql"
	"time"

	"rosterhub/core/database"
	"rosterhub/core/logger"
	"rosterhub/modules/calendarsync/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ConnectionRepository interface {
	UpsertConnection(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error)
	GetConnectionByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error)
	GetConnectionByUserID(ctx context.Context, userID uuid.UUID) (*entity.CalendarConnection, error)
	GetConnectionsByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]entity.CalendarConnection, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessTokenEnc, refreshTokenEnc []byte, expiresAt time.Time) error
	UpdatePreferences(ctx context.Context, conn *entity.CalendarConnection) error
	SetCalendarID(ctx context.Context, id uuid.UUID, column string, calendarID string) error
	SetStatus(ctx context.Context, id uuid.UUID, status entity.ConnectionStatus) error
	DeleteConnection(ctx context.Context, userID uuid.UUID) error
}

type connectionRepository struct {
	db database.Database
}

func NewConnectionRepository(db database.Database) ConnectionRepository {
	return &connectionRepository{db: db}
}

const connectionColumns = `
	id, user_id, organization_id, google_account_email,
	access_token_enc, refresh_token_enc, token_expires_at,
	org_calendar_id, personal_calendar_id,
	sync_org_calendar, sync_personal_calendar, status,
	created_at, updated_at
`

// UpsertConnection creates or replaces the user's connection. Keyed by
// user_id so a re-connect is idempotent; re-connecting always resets status
// to connected and installs the freshly granted tokens.
func (r *connectionRepository) UpsertConnection(ctx context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	query := `
		INSERT INTO calendar_connections
			(user_id, organization_id, google_account_email, access_token_enc, refresh_token_enc,
			 token_expires_at, sync_org_calendar, sync_personal_calendar, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			google_account_email = EXCLUDED.google_account_email,
			access_token_enc     = EXCLUDED.access_token_enc,
			refresh_token_enc    = EXCLUDED.refresh_token_enc,
			token_expires_at     = EXCLUDED.token_expires_at,
			status               = EXCLUDED.status,
			updated_at           = NOW()
		RETURNING id, org_calendar_id, personal_calendar_id, sync_org_calendar, sync_personal_calendar, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		conn.UserID, conn.OrganizationID, conn.GoogleAccountEmail,
		conn.AccessTokenEnc, conn.RefreshTokenEnc, conn.TokenExpiresAt,
		conn.SyncOrgCalendar, conn.SyncPersonalCalendar, entity.StatusConnected,
	).Scan(&conn.ID, &conn.OrgCalendarID, &conn.PersonalCalendarID,
		&conn.SyncOrgCalendar, &conn.SyncPersonalCalendar, &conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		logger.Error("ConnectionRepository:UpsertConnection:Error", "error", err, "user_id", conn.UserID)
		return nil, err
	}
	conn.Status = entity.StatusConnected
	return conn, nil
}

func (r *connectionRepository) GetConnectionByID(ctx context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	var conn entity.CalendarConnection
	err := r.db.GetContext(ctx, &conn,
		`SELECT `+connectionColumns+` FROM calendar_connections WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) GetConnectionByUserID(ctx context.Context, userID uuid.UUID) (*entity.CalendarConnection, error) {
	var conn entity.CalendarConnection
	err := r.db.GetContext(ctx, &conn,
		`SELECT `+connectionColumns+` FROM calendar_connections WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepository) GetConnectionsByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]entity.CalendarConnection, error) {
	if len(userIDs) == 0 {
		return []entity.CalendarConnection{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+connectionColumns+` FROM calendar_connections WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.SQLx().Rebind(query)

	var connections []entity.CalendarConnection
	if err := r.db.SelectContext(ctx, &connections, query, args...); err != nil {
		logger.Error("ConnectionRepository:GetConnectionsByUserIDs:Error", "error", err)
		return nil, err
	}
	return connections, nil
}

// UpdateTokens persists freshly refreshed credentials. Last write wins;
// concurrent refreshes are tolerated because refresh tokens rotate
// monotonically on the provider side.
func (r *connectionRepository) UpdateTokens(ctx context.Context, id uuid.UUID, accessTokenEnc, refreshTokenEnc []byte, expiresAt time.Time) error {
	query := `
		UPDATE calendar_connections
		SET access_token_enc = $1, refresh_token_enc = $2, token_expires_at = $3, updated_at = NOW()
		WHERE id = $4
	`
	err := r.db.ExecContext(ctx, query, accessTokenEnc, refreshTokenEnc, expiresAt, id)
	if err != nil {
		logger.Error("ConnectionRepository:UpdateTokens:Error", "error", err, "connection_id", id)
	}
	return err
}

func (r *connectionRepository) UpdatePreferences(ctx context.Context, conn *entity.CalendarConnection) error {
	query := `
		UPDATE calendar_connections
		SET sync_org_calendar = $1, sync_personal_calendar = $2, updated_at = NOW()
		WHERE id = $3
	`
	err := r.db.ExecContext(ctx, query, conn.SyncOrgCalendar, conn.SyncPersonalCalendar, conn.ID)
	if err != nil {
		logger.Error("ConnectionRepository:UpdatePreferences:Error", "error", err, "connection_id", conn.ID)
	}
	return err
}

// SetCalendarID persists a provider-assigned calendar id. column must be
// org_calendar_id or personal_calendar_id.
func (r *connectionRepository) SetCalendarID(ctx context.Context, id uuid.UUID, column string, calendarID string) error {
	if column != "org_calendar_id" && column != "personal_calendar_id" {
		return sql.ErrNoRows
	}
	query := `UPDATE calendar_connections SET ` + column + ` = $1, updated_at = NOW() WHERE id = $2`
	err := r.db.ExecContext(ctx, query, calendarID, id)
	if err != nil {
		logger.Error("ConnectionRepository:SetCalendarID:Error", "error", err, "connection_id", id, "column", column)
	}
	return err
}

func (r *connectionRepository) SetStatus(ctx context.Context, id uuid.UUID, status entity.ConnectionStatus) error {
	err := r.db.ExecContext(ctx,
		`UPDATE calendar_connections SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		logger.Error("ConnectionRepository:SetStatus:Error", "error", err, "connection_id", id, "status", status)
	}
	return err
}

func (r *connectionRepository) DeleteConnection(ctx context.Context, userID uuid.UUID) error {
	err := r.db.ExecContext(ctx, `DELETE FROM calendar_connections WHERE user_id = $1`, userID)
	if err != nil {
		logger.Error("ConnectionRepository:DeleteConnection:Error", "error", err, "user_id", userID)
	}
	return err
}
