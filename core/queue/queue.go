package queue

import (
	"encoding/json"

	"rosterhub/core/config"
	"rosterhub/core/constants"
	"rosterhub/core/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ReauthRequiredPayload notifies a user that their calendar connection needs
// to be re-linked.
type ReauthRequiredPayload struct {
	UserID       uuid.UUID `json:"user_id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	AccountEmail string    `json:"account_email"`
}

// SyncFailedPayload reports a sync batch that exhausted its retries.
type SyncFailedPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	EventID    uuid.UUID `json:"event_id"`
	EventTitle string    `json:"event_title"`
	Scope      string    `json:"scope"`
	Reason     string    `json:"reason"`
}

// Client enqueues background notification tasks. Sync itself is never queued;
// only the resulting user-facing notices are.
type Client interface {
	EnqueueReauthRequired(payload ReauthRequiredPayload) error
	EnqueueSyncFailed(payload SyncFailedPayload) error
	Close() error
}

type asynqClient struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) Client {
	return &asynqClient{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (q *asynqClient) EnqueueReauthRequired(payload ReauthRequiredPayload) error {
	return q.enqueue(constants.TaskCalendarReauthRequired, payload)
}

func (q *asynqClient) EnqueueSyncFailed(payload SyncFailedPayload) error {
	return q.enqueue(constants.TaskCalendarSyncFailed, payload)
}

func (q *asynqClient) enqueue(taskType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	info, err := q.client.Enqueue(asynq.NewTask(taskType, data), asynq.MaxRetry(3))
	if err != nil {
		logger.Error("Queue:Enqueue:Error", "type", taskType, "error", err)
		return err
	}
	logger.Debug("Queue:Enqueued", "type", taskType, "task_id", info.ID)
	return nil
}

func (q *asynqClient) Close() error {
	return q.client.Close()
}

// NewServer builds the asynq worker that consumes the notification tasks.
func NewServer(cfg config.RedisConfig) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB},
		asynq.Config{Concurrency: 2},
	)
}
