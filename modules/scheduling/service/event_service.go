package service

import (
	"context"
	"time"

	"rosterhub/core/errors"
	"rosterhub/core/logger"
	calsvc "rosterhub/modules/calendarsync/service"
	"rosterhub/modules/scheduling/entity"
	"rosterhub/modules/scheduling/repository"

	"github.com/google/uuid"
)

// syncFanoutTimeout bounds the background fan-out after a mutation returns.
const syncFanoutTimeout = 2 * time.Minute

// Syncer is the calendar fan-out the scheduling flow triggers after each
// mutation. Sync outcomes never affect the mutation result.
type Syncer interface {
	SyncEvent(ctx context.Context, eventID uuid.UUID) calsvc.SyncResult
	SyncEventDeletion(ctx context.Context, eventID uuid.UUID) calsvc.SyncResult
}

// EventService owns the scheduling mutations and fires calendar sync
// best-effort after each successful write.
type EventService struct {
	repo repository.EventRepository
	sync Syncer

	// fanout runs the sync asynchronously; replaced in tests to run inline.
	fanout func(fn func(context.Context))
}

func NewEventService(repo repository.EventRepository, sync Syncer) *EventService {
	return &EventService{
		repo: repo,
		sync: sync,
		fanout: func(fn func(context.Context)) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), syncFanoutTimeout)
				defer cancel()
				fn(ctx)
			}()
		},
	}
}

func (s *EventService) GetEvent(ctx context.Context, id uuid.UUID) (*entity.Event, error) {
	event, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load event", err)
	}
	if event == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "event not found", nil)
	}
	return event, nil
}

func (s *EventService) CreateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to create event", err)
	}

	s.triggerSync(created.ID)
	return created, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, event *entity.Event) (*entity.Event, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetEventByID(ctx, event.ID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load event", err)
	}
	if existing == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "event not found", nil)
	}

	if err := s.repo.UpdateEvent(ctx, event); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update event", err)
	}

	s.triggerSync(event.ID)
	return s.GetEvent(ctx, event.ID)
}

func (s *EventService) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetEventByID(ctx, id)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load event", err)
	}
	if existing == nil {
		return errors.NewAppError(errors.ErrNotFound, "event not found", nil)
	}

	if err := s.repo.DeleteEvent(ctx, id); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete event", err)
	}

	s.triggerDeletionSync(id)
	return nil
}

// RespondToAssignment records an accept/decline. Either direction changes
// the personal-calendar picture, so both trigger a fan-out.
func (s *EventService) RespondToAssignment(ctx context.Context, eventID, userID uuid.UUID, status entity.AssignmentStatus) error {
	if status != entity.AssignmentAccepted && status != entity.AssignmentDeclined {
		return errors.NewAppError(errors.ErrInvalidInput, "status must be accepted or declined", nil)
	}

	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load event", err)
	}
	if event == nil {
		return errors.NewAppError(errors.ErrNotFound, "event not found", nil)
	}
	if event.AssignmentFor(userID) == nil {
		return errors.NewAppError(errors.ErrNotFound, "no assignment for user", nil)
	}

	if err := s.repo.SetAssignmentStatus(ctx, eventID, userID, status); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to update assignment", err)
	}

	s.triggerSync(eventID)
	return nil
}

func (s *EventService) triggerSync(eventID uuid.UUID) {
	if s.sync == nil {
		return
	}
	s.fanout(func(ctx context.Context) {
		result := s.sync.SyncEvent(ctx, eventID)
		logger.Debug("EventService:TriggerSync:Done", "event_id", eventID,
			"synced", result.Synced, "skipped", result.Skipped, "failed", result.Failed)
	})
}

func (s *EventService) triggerDeletionSync(eventID uuid.UUID) {
	if s.sync == nil {
		return
	}
	s.fanout(func(ctx context.Context) {
		result := s.sync.SyncEventDeletion(ctx, eventID)
		logger.Debug("EventService:TriggerDeletionSync:Done", "event_id", eventID,
			"synced", result.Synced, "failed", result.Failed)
	})
}

func validateEvent(event *entity.Event) error {
	if event.Title == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "title is required", nil)
	}
	if event.StartsAt.IsZero() || event.EndsAt.IsZero() {
		return errors.NewAppError(errors.ErrInvalidInput, "start and end times are required", nil)
	}
	if !event.AllDay && !event.EndsAt.After(event.StartsAt) {
		return errors.NewAppError(errors.ErrInvalidInput, "end time must be after start time", nil)
	}
	switch event.Status {
	case entity.EventStatusDraft, entity.EventStatusPublished, entity.EventStatusCancelled:
	default:
		return errors.NewAppError(errors.ErrInvalidInput, "invalid event status", nil)
	}
	switch event.Visibility {
	case entity.VisibilityPublic, entity.VisibilityMembers, entity.VisibilityPrivate:
	default:
		return errors.NewAppError(errors.ErrInvalidInput, "invalid event visibility", nil)
	}
	return nil
}
