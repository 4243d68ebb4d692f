package worker

import (
	"context"
	"encoding/json"

	"rosterhub/core/constants"
	"rosterhub/core/logger"
	"rosterhub/core/queue"
	"rosterhub/modules/notification/service"

	"github.com/hibiken/asynq"
)

// Worker consumes the calendar task queue and turns each task into a stored
// notification row.
type Worker struct {
	notifications *service.NotificationService
}

func NewWorker(notifications *service.NotificationService) *Worker {
	return &Worker{notifications: notifications}
}

// Mux registers the task handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(constants.TaskCalendarReauthRequired, w.handleReauthRequired)
	mux.HandleFunc(constants.TaskCalendarSyncFailed, w.handleSyncFailed)
	return mux
}

func (w *Worker) handleReauthRequired(ctx context.Context, t *asynq.Task) error {
	var payload queue.ReauthRequiredPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.Error("Worker:ReauthRequired:Payload:Error", "error", err)
		return err
	}

	if err := w.notifications.CreateReauthNotice(ctx, payload); err != nil {
		logger.Error("Worker:ReauthRequired:Create:Error", "user_id", payload.UserID, "error", err)
		return err
	}
	logger.Info("Worker:ReauthRequired:Notified", "user_id", payload.UserID, "connection_id", payload.ConnectionID)
	return nil
}

func (w *Worker) handleSyncFailed(ctx context.Context, t *asynq.Task) error {
	var payload queue.SyncFailedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.Error("Worker:SyncFailed:Payload:Error", "error", err)
		return err
	}

	if err := w.notifications.CreateSyncFailureNotice(ctx, payload); err != nil {
		logger.Error("Worker:SyncFailed:Create:Error", "user_id", payload.UserID, "error", err)
		return err
	}
	logger.Info("Worker:SyncFailed:Notified", "user_id", payload.UserID, "event_id", payload.EventID)
	return nil
}
