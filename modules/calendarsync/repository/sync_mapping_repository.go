package repository

import (
	"context"
	"database/sql"

	"rosterhub/core/database"
	"rosterhub/core/logger"
	"rosterhub/modules/calendarsync/entity"

	"github.com/google/uuid"
)

type SyncMappingRepository interface {
	Get(ctx context.Context, connectionID uuid.UUID, scope string, eventID uuid.UUID) (*entity.SyncMapping, error)
	GetByEvent(ctx context.Context, eventID uuid.UUID) ([]entity.SyncMapping, error)
	Upsert(ctx context.Context, m *entity.SyncMapping) error
	Delete(ctx context.Context, connectionID uuid.UUID, scope string, eventID uuid.UUID) error
	DeleteByConnection(ctx context.Context, connectionID uuid.UUID) error
}

type syncMappingRepository struct {
	db database.Database
}

func NewSyncMappingRepository(db database.Database) SyncMappingRepository {
	return &syncMappingRepository{db: db}
}

func (r *syncMappingRepository) Get(ctx context.Context, connectionID uuid.UUID, scope string, eventID uuid.UUID) (*entity.SyncMapping, error) {
	var m entity.SyncMapping
	query := `
		SELECT connection_id, scope, event_id, google_event_id, content_hash, last_synced_at
		FROM sync_mappings
		WHERE connection_id = $1 AND scope = $2 AND event_id = $3
	`
	if err := r.db.GetContext(ctx, &m, query, connectionID, scope, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SyncMappingRepository:Get:Error", "error", err)
		return nil, err
	}
	return &m, nil
}

func (r *syncMappingRepository) GetByEvent(ctx context.Context, eventID uuid.UUID) ([]entity.SyncMapping, error) {
	var mappings []entity.SyncMapping
	query := `
		SELECT connection_id, scope, event_id, google_event_id, content_hash, last_synced_at
		FROM sync_mappings
		WHERE event_id = $1
	`
	if err := r.db.SelectContext(ctx, &mappings, query, eventID); err != nil {
		logger.Error("SyncMappingRepository:GetByEvent:Error", "error", err, "event_id", eventID)
		return nil, err
	}
	return mappings, nil
}

// Upsert records a successful push. Atomic on the composite key so concurrent
// pushes of the same target resolve last-write-wins.
func (r *syncMappingRepository) Upsert(ctx context.Context, m *entity.SyncMapping) error {
	query := `
		INSERT INTO sync_mappings (connection_id, scope, event_id, google_event_id, content_hash, last_synced_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (connection_id, scope, event_id) DO UPDATE SET
			google_event_id = EXCLUDED.google_event_id,
			content_hash    = EXCLUDED.content_hash,
			last_synced_at  = EXCLUDED.last_synced_at
	`
	err := r.db.ExecContext(ctx, query,
		m.ConnectionID, m.Scope, m.EventID, m.GoogleEventID, m.ContentHash, m.LastSyncedAt)
	if err != nil {
		logger.Error("SyncMappingRepository:Upsert:Error", "error", err, "mapping", m.String())
	}
	return err
}

func (r *syncMappingRepository) Delete(ctx context.Context, connectionID uuid.UUID, scope string, eventID uuid.UUID) error {
	query := `DELETE FROM sync_mappings WHERE connection_id = $1 AND scope = $2 AND event_id = $3`
	err := r.db.ExecContext(ctx, query, connectionID, scope, eventID)
	if err != nil {
		logger.Error("SyncMappingRepository:Delete:Error", "error", err)
	}
	return err
}

func (r *syncMappingRepository) DeleteByConnection(ctx context.Context, connectionID uuid.UUID) error {
	err := r.db.ExecContext(ctx, `DELETE FROM sync_mappings WHERE connection_id = $1`, connectionID)
	if err != nil {
		logger.Error("SyncMappingRepository:DeleteByConnection:Error", "error", err)
	}
	return err
}
