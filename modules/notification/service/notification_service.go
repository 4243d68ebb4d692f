package service

import (
	"context"
	"fmt"
	"time"

	coreEntity "rosterhub/core/entity"
	"rosterhub/core/params"
	"rosterhub/core/queue"
	"rosterhub/modules/notification/entity"
	"rosterhub/modules/notification/repository"

	"github.com/google/uuid"
)

type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) Create(ctx context.Context, notif *entity.Notification) error {
	notif.BaseEntity = coreEntity.BaseEntity{
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return s.repo.Create(ctx, notif)
}

// CreateReauthNotice records the one-per-episode notice that a calendar
// connection stopped working and must be re-linked.
func (s *NotificationService) CreateReauthNotice(ctx context.Context, payload queue.ReauthRequiredPayload) error {
	return s.Create(ctx, &entity.Notification{
		UserID:  payload.UserID,
		Title:   "Calendar connection needs attention",
		Message: fmt.Sprintf("Google Calendar access for %s has expired. Reconnect to resume syncing.", payload.AccountEmail),
		Type:    entity.TypeCalendarReauth,
		Data: entity.JSONB{
			"connection_id": payload.ConnectionID.String(),
			"account_email": payload.AccountEmail,
		},
	})
}

// CreateSyncFailureNotice records that an event could not be pushed after
// the retry budget was exhausted.
func (s *NotificationService) CreateSyncFailureNotice(ctx context.Context, payload queue.SyncFailedPayload) error {
	return s.Create(ctx, &entity.Notification{
		UserID:  payload.UserID,
		Title:   "Calendar sync failed",
		Message: fmt.Sprintf("%q could not be synced to your calendar.", payload.EventTitle),
		Type:    entity.TypeCalendarSyncFailed,
		Data: entity.JSONB{
			"event_id": payload.EventID.String(),
			"scope":    payload.Scope,
			"reason":   payload.Reason,
		},
	})
}

func (s *NotificationService) GetMyNotifications(ctx context.Context, userID uuid.UUID, queryParams params.QueryParams) (*entity.PaginatedNotificationEntity, error) {
	return s.repo.GetByUserID(ctx, userID, queryParams)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID uuid.UUID, ids []string) error {
	return s.repo.MarkAsRead(ctx, userID, ids)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
