package service

import (
	"context"
	"sync"
	"time"

	"rosterhub/core/constants"
	"rosterhub/core/errors"
	"rosterhub/core/logger"
	"rosterhub/core/queue"
	"rosterhub/modules/calendarsync/entity"
	"rosterhub/modules/calendarsync/mapper"
	"rosterhub/modules/calendarsync/repository"
	schedEntity "rosterhub/modules/scheduling/entity"
	schedRepo "rosterhub/modules/scheduling/repository"

	"github.com/google/uuid"
)

// SyncResult summarizes one fan-out batch. Failures are counted and logged,
// never thrown: no sync outcome may block the originating scheduling write.
type SyncResult struct {
	Synced  int
	Skipped int
	Failed  int
}

// syncTarget is one (connection, scope) pair a mutation fans out to.
type syncTarget struct {
	conn  entity.CalendarConnection
	scope string
}

// SyncService orchestrates event fan-out: target resolution, hash-based
// change detection, calendar provisioning and provider writes, with each
// target isolated from the others.
type SyncService struct {
	connRepo    repository.ConnectionRepository
	venueRepo   repository.VenueCalendarRepository
	mappingRepo repository.SyncMappingRepository
	tokens      *TokenManager
	calendars   *CalendarManager
	events      schedRepo.EventRepository
	queue       queue.Client

	timezone      string
	retryAttempts int
	retryBase     time.Duration
	maxParallel   int

	// sleep is a backoff hook for tests.
	sleep func(time.Duration)
}

func NewSyncService(
	connRepo repository.ConnectionRepository,
	venueRepo repository.VenueCalendarRepository,
	mappingRepo repository.SyncMappingRepository,
	tokens *TokenManager,
	calendars *CalendarManager,
	events schedRepo.EventRepository,
	q queue.Client,
	timezone string,
	retryAttempts, maxParallel int,
) *SyncService {
	if timezone == "" {
		timezone = constants.DeploymentTimezone
	}
	if retryAttempts <= 0 {
		retryAttempts = constants.SyncRetryAttempts
	}
	if maxParallel <= 0 {
		maxParallel = constants.SyncMaxParallel
	}
	return &SyncService{
		connRepo:      connRepo,
		venueRepo:     venueRepo,
		mappingRepo:   mappingRepo,
		tokens:        tokens,
		calendars:     calendars,
		events:        events,
		queue:         q,
		timezone:      timezone,
		retryAttempts: retryAttempts,
		retryBase:     constants.SyncRetryBaseDelay,
		maxParallel:   maxParallel,
		sleep:         time.Sleep,
	}
}

// SyncEvent pushes the current state of an event to every affected calendar.
// Used for create, update and assignment-status mutations.
func (s *SyncService) SyncEvent(ctx context.Context, eventID uuid.UUID) SyncResult {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		logger.Error("SyncService:SyncEvent:LoadEvent:Error", "event_id", eventID, "error", err)
		return SyncResult{}
	}
	if event == nil {
		// The event vanished between the mutation and the sync; clean up.
		return s.SyncEventDeletion(ctx, eventID)
	}

	targets, err := s.resolveTargets(ctx, event)
	if err != nil {
		logger.Error("SyncService:SyncEvent:ResolveTargets:Error", "event_id", eventID, "error", err)
		return SyncResult{}
	}

	result := s.processTargets(ctx, targets, func(ctx context.Context, t syncTarget) (bool, error) {
		return s.syncTarget(ctx, t, event)
	})

	logger.Info("SyncService:SyncEvent:Done",
		"event_id", eventID, "targets", len(targets),
		"synced", result.Synced, "skipped", result.Skipped, "failed", result.Failed)
	return result
}

// SyncEventDeletion removes the provider events and mappings for every scope
// that had one.
func (s *SyncService) SyncEventDeletion(ctx context.Context, eventID uuid.UUID) SyncResult {
	mappings, err := s.mappingRepo.GetByEvent(ctx, eventID)
	if err != nil {
		logger.Error("SyncService:SyncEventDeletion:LoadMappings:Error", "event_id", eventID, "error", err)
		return SyncResult{}
	}
	if len(mappings) == 0 {
		return SyncResult{}
	}

	targets := make([]syncTarget, 0, len(mappings))
	byKey := make(map[string]entity.SyncMapping, len(mappings))
	for _, m := range mappings {
		conn, err := s.connRepo.GetConnectionByID(ctx, m.ConnectionID)
		if err != nil || conn == nil {
			// Connection already gone; drop the orphaned mapping.
			_ = s.mappingRepo.Delete(ctx, m.ConnectionID, m.Scope, m.EventID)
			continue
		}
		targets = append(targets, syncTarget{conn: *conn, scope: m.Scope})
		byKey[m.ConnectionID.String()+"/"+m.Scope] = m
	}

	result := s.processTargets(ctx, targets, func(ctx context.Context, t syncTarget) (bool, error) {
		m := byKey[t.conn.ID.String()+"/"+t.scope]
		return true, s.deleteTarget(ctx, t, m)
	})

	logger.Info("SyncService:SyncEventDeletion:Done",
		"event_id", eventID, "synced", result.Synced, "failed", result.Failed)
	return result
}

// resolveTargets computes the (connection, scope) pairs potentially affected
// by a mutation of this event. Connections needing re-auth are excluded up
// front so no provider call is attempted for them.
func (s *SyncService) resolveTargets(ctx context.Context, event *schedEntity.Event) ([]syncTarget, error) {
	var targets []syncTarget
	seen := make(map[string]bool)

	add := func(conn entity.CalendarConnection, scope string) {
		if conn.Status == entity.StatusNeedsReauth {
			return
		}
		key := conn.ID.String() + "/" + scope
		if !seen[key] {
			seen[key] = true
			targets = append(targets, syncTarget{conn: conn, scope: scope})
		}
	}

	// Organization scope: admins syncing the org calendar.
	adminIDs, err := s.events.GetOrgAdminUserIDs(ctx, event.OrganizationID)
	if err != nil {
		return nil, err
	}
	adminConns, err := s.connRepo.GetConnectionsByUserIDs(ctx, adminIDs)
	if err != nil {
		return nil, err
	}
	for _, conn := range adminConns {
		if conn.SyncOrgCalendar {
			add(conn, entity.ScopeOrganization)
		}
	}

	// Venue scope: members of each linked venue with that venue enabled.
	for _, venueID := range event.VenueIDs {
		memberIDs, err := s.events.GetVenueMemberUserIDs(ctx, venueID)
		if err != nil {
			return nil, err
		}
		memberConns, err := s.connRepo.GetConnectionsByUserIDs(ctx, memberIDs)
		if err != nil {
			return nil, err
		}
		for _, conn := range memberConns {
			vc, err := s.venueRepo.GetByConnectionAndVenue(ctx, conn.ID, venueID)
			if err != nil {
				logger.Error("SyncService:ResolveTargets:VenueCalendar:Error",
					"connection_id", conn.ID, "venue_id", venueID, "error", err)
				continue
			}
			if vc != nil && vc.SyncEnabled {
				add(conn, entity.VenueScope(venueID))
			}
		}
	}

	// Personal scope: assigned or explicitly invited users.
	personalUserIDs := make([]uuid.UUID, 0, len(event.Assignments)+len(event.InviteeIDs))
	for _, a := range event.Assignments {
		personalUserIDs = append(personalUserIDs, a.UserID)
	}
	personalUserIDs = append(personalUserIDs, event.InviteeIDs...)
	personalConns, err := s.connRepo.GetConnectionsByUserIDs(ctx, personalUserIDs)
	if err != nil {
		return nil, err
	}
	for _, conn := range personalConns {
		if conn.SyncPersonalCalendar {
			add(conn, entity.ScopePersonal)
		}
	}

	return targets, nil
}

// processTargets runs fn for each target with bounded parallelism. Every
// target is isolated: a panic-free failure in one never prevents the others.
func (s *SyncService) processTargets(ctx context.Context, targets []syncTarget, fn func(context.Context, syncTarget) (bool, error)) SyncResult {
	var (
		mu     sync.Mutex
		result SyncResult
		wg     sync.WaitGroup
	)
	sem := make(chan struct{}, s.maxParallel)

	for _, target := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(t syncTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			wrote, err := fn(ctx, t)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				logger.Error("SyncService:Target:Failed",
					"connection_id", t.conn.ID, "scope", t.scope, "error", err)
			case wrote:
				result.Synced++
			default:
				result.Skipped++
			}
		}(target)
	}

	wg.Wait()
	return result
}

// syncTarget pushes one event to one (connection, scope) calendar. Returns
// whether a provider write happened.
func (s *SyncService) syncTarget(ctx context.Context, t syncTarget, event *schedEntity.Event) (bool, error) {
	wanted, assignments := s.desiredState(t, event)
	mapping, err := s.mappingRepo.Get(ctx, t.conn.ID, t.scope, event.ID)
	if err != nil {
		return false, errors.NewAppError(errors.ErrInternalServer, "failed to load sync mapping", err)
	}

	if !wanted {
		if mapping == nil {
			// Visibility predicate false and nothing pushed: no provider call.
			return false, nil
		}
		// The event no longer qualifies for this scope; retract it.
		return true, s.deleteTarget(ctx, t, *mapping)
	}

	hash := mapper.GenerateEventHash(event, assignments)
	if mapping != nil && mapping.ContentHash == hash {
		return false, nil
	}

	client, conn, err := s.tokens.GetAuthenticatedClient(ctx, t.conn.ID)
	if err != nil {
		return false, err
	}

	payload := mapper.ToProviderEvent(event, mapper.RoleTitles(assignments), s.timezone)

	var providerEventID string
	writeErr := s.withRetry(ctx, func(ctx context.Context) error {
		calendarID, err := s.ensureTargetCalendar(ctx, conn, t.scope)
		if err != nil {
			return err
		}

		if mapping == nil {
			id, err := client.InsertEvent(ctx, calendarID, payload)
			if err != nil {
				return s.healCalendarNotFound(ctx, conn, t.scope, err)
			}
			providerEventID = id
			return nil
		}

		if err := client.PatchEvent(ctx, calendarID, mapping.GoogleEventID, payload); err != nil {
			if classifyProviderError(err) == errors.ErrCalendarNotFound {
				// The provider event or calendar vanished externally;
				// recreate instead of patching.
				id, insErr := client.InsertEvent(ctx, calendarID, payload)
				if insErr != nil {
					return s.healCalendarNotFound(ctx, conn, t.scope, insErr)
				}
				providerEventID = id
				return nil
			}
			return err
		}
		providerEventID = mapping.GoogleEventID
		return nil
	})
	if writeErr != nil {
		s.reportFailure(t, event, writeErr)
		return false, writeErr
	}

	if err := s.mappingRepo.Upsert(ctx, &entity.SyncMapping{
		ConnectionID:  t.conn.ID,
		Scope:         t.scope,
		EventID:       event.ID,
		GoogleEventID: providerEventID,
		ContentHash:   hash,
		LastSyncedAt:  time.Now(),
	}); err != nil {
		return true, errors.NewAppError(errors.ErrInternalServer, "failed to persist sync mapping", err)
	}
	return true, nil
}

// desiredState evaluates the scope's visibility predicate and returns the
// scope-appropriate assignment projection for hashing.
func (s *SyncService) desiredState(t syncTarget, event *schedEntity.Event) (bool, []schedEntity.Assignment) {
	switch {
	case t.scope == entity.ScopeOrganization:
		return mapper.ShouldSyncToOrganizationCalendar(event), nil
	case t.scope == entity.ScopePersonal:
		if !mapper.ShouldSyncToPersonalCalendar(event, t.conn.UserID) {
			return false, nil
		}
		return true, mapper.PersonalAssignments(event, t.conn.UserID)
	default:
		venueID, ok := entity.ParseVenueScope(t.scope)
		if !ok {
			return false, nil
		}
		return mapper.ShouldSyncToVenueCalendar(event, venueID), nil
	}
}

// deleteTarget removes the provider event and its mapping. A 404 from the
// provider is success: the event is already gone.
func (s *SyncService) deleteTarget(ctx context.Context, t syncTarget, mapping entity.SyncMapping) error {
	client, conn, err := s.tokens.GetAuthenticatedClient(ctx, t.conn.ID)
	if err != nil {
		return err
	}

	calendarID, err := s.lookupCalendarID(ctx, conn, t.scope)
	if err != nil {
		return err
	}
	if calendarID != "" {
		delErr := s.withRetry(ctx, func(ctx context.Context) error {
			err := client.DeleteEvent(ctx, calendarID, mapping.GoogleEventID)
			if err != nil && classifyProviderError(err) == errors.ErrCalendarNotFound {
				return nil
			}
			return err
		})
		if delErr != nil {
			return delErr
		}
	}

	if err := s.mappingRepo.Delete(ctx, t.conn.ID, t.scope, mapping.EventID); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete sync mapping", err)
	}
	return nil
}

// ensureTargetCalendar returns the provider calendar id for the scope,
// creating it lazily when missing.
func (s *SyncService) ensureTargetCalendar(ctx context.Context, conn *entity.CalendarConnection, scope string) (string, error) {
	switch {
	case scope == entity.ScopeOrganization:
		if conn.OrgCalendarID != nil && *conn.OrgCalendarID != "" {
			return *conn.OrgCalendarID, nil
		}
		orgName, err := s.events.GetOrganizationName(ctx, conn.OrganizationID)
		if err != nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to load organization", err)
		}
		id, err := s.calendars.EnsureOrganizationCalendar(ctx, conn.ID, orgName)
		if err != nil {
			return "", err
		}
		conn.OrgCalendarID = &id
		return id, nil

	case scope == entity.ScopePersonal:
		if conn.PersonalCalendarID != nil && *conn.PersonalCalendarID != "" {
			return *conn.PersonalCalendarID, nil
		}
		orgName, err := s.events.GetOrganizationName(ctx, conn.OrganizationID)
		if err != nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to load organization", err)
		}
		id, err := s.calendars.EnsurePersonalCalendar(ctx, conn.ID, orgName)
		if err != nil {
			return "", err
		}
		conn.PersonalCalendarID = &id
		return id, nil

	default:
		venueID, ok := entity.ParseVenueScope(scope)
		if !ok {
			return "", errors.NewAppError(errors.ErrInvalidInput, "unknown sync scope", nil)
		}
		vc, err := s.venueRepo.GetByConnectionAndVenue(ctx, conn.ID, venueID)
		if err != nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to load venue calendar", err)
		}
		if vc == nil || !vc.SyncEnabled {
			return "", errors.NewAppError(errors.ErrNotFound, "venue calendar not enabled", nil)
		}
		if vc.GoogleCalendarID != "" {
			return vc.GoogleCalendarID, nil
		}

		// Stale id was cleared after an external deletion; recreate.
		venue, err := s.events.GetVenue(ctx, venueID)
		if err != nil || venue == nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to load venue", err)
		}
		orgName, err := s.events.GetOrganizationName(ctx, conn.OrganizationID)
		if err != nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to load organization", err)
		}
		client, _, err := s.tokens.GetAuthenticatedClient(ctx, conn.ID)
		if err != nil {
			return "", err
		}
		id, err := client.CreateCalendar(ctx, orgName+" - "+venue.Name, venue.Color)
		if err != nil {
			return "", errors.NewAppError(classifyProviderError(err), "failed to recreate venue calendar", err)
		}
		if err := s.venueRepo.UpdateCalendarID(ctx, conn.ID, venueID, id); err != nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to persist venue calendar id", err)
		}
		return id, nil
	}
}

// lookupCalendarID resolves the stored calendar id without creating anything.
func (s *SyncService) lookupCalendarID(ctx context.Context, conn *entity.CalendarConnection, scope string) (string, error) {
	switch {
	case scope == entity.ScopeOrganization:
		if conn.OrgCalendarID != nil {
			return *conn.OrgCalendarID, nil
		}
		return "", nil
	case scope == entity.ScopePersonal:
		if conn.PersonalCalendarID != nil {
			return *conn.PersonalCalendarID, nil
		}
		return "", nil
	default:
		venueID, ok := entity.ParseVenueScope(scope)
		if !ok {
			return "", nil
		}
		vc, err := s.venueRepo.GetByConnectionAndVenue(ctx, conn.ID, venueID)
		if err != nil {
			return "", errors.NewAppError(errors.ErrInternalServer, "failed to load venue calendar", err)
		}
		if vc == nil {
			return "", nil
		}
		return vc.GoogleCalendarID, nil
	}
}

// healCalendarNotFound clears a stale stored calendar id so the next attempt
// recreates the calendar lazily, then surfaces the original error.
func (s *SyncService) healCalendarNotFound(ctx context.Context, conn *entity.CalendarConnection, scope string, err error) error {
	code := classifyProviderError(err)
	if code != errors.ErrCalendarNotFound {
		return err
	}

	logger.Warn("SyncService:CalendarGone", "connection_id", conn.ID, "scope", scope)
	switch {
	case scope == entity.ScopeOrganization:
		empty := ""
		conn.OrgCalendarID = &empty
		_ = s.connRepo.SetCalendarID(ctx, conn.ID, "org_calendar_id", "")
	case scope == entity.ScopePersonal:
		empty := ""
		conn.PersonalCalendarID = &empty
		_ = s.connRepo.SetCalendarID(ctx, conn.ID, "personal_calendar_id", "")
	default:
		if venueID, ok := entity.ParseVenueScope(scope); ok {
			_ = s.venueRepo.UpdateCalendarID(ctx, conn.ID, venueID, "")
		}
	}
	return errors.NewAppError(errors.ErrProviderUnavailable, "target calendar missing, will recreate", err)
}

// withRetry runs fn with the bounded exponential-backoff budget. Only
// transient provider failures are retried; everything else surfaces
// immediately.
func (s *SyncService) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	delay := s.retryBase

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, constants.ProviderTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		code := errors.ErrProviderUnavailable
		if ae, ok := err.(*errors.AppError); ok {
			code = ae.Code
		} else {
			code = classifyProviderError(err)
		}
		if !isRetryable(code) {
			return err
		}
		if attempt < s.retryAttempts {
			logger.Warn("SyncService:Retry", "attempt", attempt, "delay", delay, "error", err)
			s.sleep(delay)
			delay *= 2
		}
	}
	return lastErr
}

// reportFailure enqueues a user-facing notice when a target exhausts its
// retries. Best effort.
func (s *SyncService) reportFailure(t syncTarget, event *schedEntity.Event, err error) {
	if s.queue == nil {
		return
	}
	if qErr := s.queue.EnqueueSyncFailed(queue.SyncFailedPayload{
		UserID:     t.conn.UserID,
		EventID:    event.ID,
		EventTitle: event.Title,
		Scope:      t.scope,
		Reason:     err.Error(),
	}); qErr != nil {
		logger.Error("SyncService:ReportFailure:Enqueue:Error", "error", qErr)
	}
}
