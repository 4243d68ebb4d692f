package repository

import (
	"context"
	"database/sql"
	"time"

	"rosterhub/core/database"
	"rosterhub/core/logger"
	"rosterhub/modules/calendarsync/entity"

	"github.com/google/uuid"
)

type OAuthStateRepository interface {
	SaveState(ctx context.Context, state string, userID, orgID uuid.UUID, expiresAt time.Time) error
	ConsumeState(ctx context.Context, state string) (*entity.OAuthState, error)
	CleanupExpired(ctx context.Context) error
}

type oauthStateRepository struct {
	db database.Database
}

func NewOAuthStateRepository(db database.Database) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) SaveState(ctx context.Context, state string, userID, orgID uuid.UUID, expiresAt time.Time) error {
	query := `
		INSERT INTO oauth_states (id, state, user_id, organization_id, expires_at, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (state)
		DO UPDATE SET expires_at = $4, updated_at = NOW()
	`
	err := r.db.ExecContext(ctx, query, state, userID, orgID, expiresAt)
	if err != nil {
		logger.Error("OAuthStateRepository:SaveState:Error", "error", err)
	}
	return err
}

// ConsumeState fetches and deletes the state row in one round-trip so a state
// token can be redeemed only once.
func (r *oauthStateRepository) ConsumeState(ctx context.Context, state string) (*entity.OAuthState, error) {
	var row entity.OAuthState
	query := `
		DELETE FROM oauth_states
		WHERE state = $1 AND expires_at > NOW()
		RETURNING id, state, user_id, organization_id, expires_at, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, state).Scan(
		&row.ID, &row.State, &row.UserID, &row.OrganizationID,
		&row.ExpiresAt, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("OAuthStateRepository:ConsumeState:Error", "error", err)
		return nil, err
	}
	return &row, nil
}

func (r *oauthStateRepository) CleanupExpired(ctx context.Context) error {
	err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		logger.Error("OAuthStateRepository:CleanupExpired:Error", "error", err)
	}
	return err
}
