package service

import (
	"context"
	"fmt"

	"rosterhub/core/errors"
	"rosterhub/core/logger"
	"rosterhub/modules/calendarsync/entity"
	"rosterhub/modules/calendarsync/repository"
	schedRepo "rosterhub/modules/scheduling/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// CalendarManager creates and toggles target calendars in the provider on
// behalf of a connection. All create paths are check-then-create; a benign
// race producing two calendars is logged, not locked against.
type CalendarManager struct {
	connRepo  repository.ConnectionRepository
	venueRepo repository.VenueCalendarRepository
	tokens    *TokenManager
	events    schedRepo.EventRepository
}

func NewCalendarManager(
	connRepo repository.ConnectionRepository,
	venueRepo repository.VenueCalendarRepository,
	tokens *TokenManager,
	events schedRepo.EventRepository,
) *CalendarManager {
	return &CalendarManager{
		connRepo:  connRepo,
		venueRepo: venueRepo,
		tokens:    tokens,
		events:    events,
	}
}

// GetConnectionOverview returns the user's connection with its per-venue
// toggle rows for the settings surface.
func (c *CalendarManager) GetConnectionOverview(ctx context.Context, userID uuid.UUID) (*entity.CalendarConnection, []entity.VenueCalendar, error) {
	conn, err := c.connRepo.GetConnectionByUserID(ctx, userID)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return nil, nil, errors.NewAppError(errors.ErrNotFound, "no calendar connection", nil)
	}
	venueCalendars, err := c.venueRepo.GetByConnection(ctx, conn.ID)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to load venue calendars", err)
	}
	return conn, venueCalendars, nil
}

// EnsureEnabledCalendars provisions the org and personal calendars for
// whichever toggles are on. Best effort: provisioning failures are logged
// and retried lazily on the next sync attempt.
func (c *CalendarManager) EnsureEnabledCalendars(ctx context.Context, connectionID uuid.UUID) {
	conn, err := c.connRepo.GetConnectionByID(ctx, connectionID)
	if err != nil || conn == nil || conn.Status == entity.StatusNeedsReauth {
		return
	}
	orgName, err := c.events.GetOrganizationName(ctx, conn.OrganizationID)
	if err != nil {
		logger.Warn("CalendarManager:EnsureEnabledCalendars:OrgName:Error", "connection_id", connectionID, "error", err)
		return
	}

	if conn.SyncOrgCalendar && (conn.OrgCalendarID == nil || *conn.OrgCalendarID == "") {
		if _, err := c.EnsureOrganizationCalendar(ctx, connectionID, orgName); err != nil {
			logger.Warn("CalendarManager:EnsureEnabledCalendars:Org:Error", "connection_id", connectionID, "error", err)
		}
	}
	if conn.SyncPersonalCalendar && (conn.PersonalCalendarID == nil || *conn.PersonalCalendarID == "") {
		if _, err := c.EnsurePersonalCalendar(ctx, connectionID, orgName); err != nil {
			logger.Warn("CalendarManager:EnsureEnabledCalendars:Personal:Error", "connection_id", connectionID, "error", err)
		}
	}
}

// ToggleVenueSyncForUser resolves the user's connection and the venue's
// naming inputs, then delegates to ToggleVenueCalendarSync.
func (c *CalendarManager) ToggleVenueSyncForUser(ctx context.Context, userID, venueID uuid.UUID, enabled bool) (*entity.VenueCalendar, error) {
	conn, err := c.connRepo.GetConnectionByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "no calendar connection", nil)
	}
	if conn.Status == entity.StatusNeedsReauth {
		return nil, errors.NewAppError(errors.ErrReauthRequired, "connection requires re-authentication", nil)
	}

	venue, err := c.events.GetVenue(ctx, venueID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load venue", err)
	}
	if venue == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "venue not found", nil)
	}
	orgName, err := c.events.GetOrganizationName(ctx, conn.OrganizationID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load organization", err)
	}

	return c.ToggleVenueCalendarSync(ctx, conn.ID, venueID, enabled, orgName, venue.Name, venue.Color)
}

// EnsureOrganizationCalendar creates the organization calendar once and
// persists its provider id; a no-op when it already exists.
func (c *CalendarManager) EnsureOrganizationCalendar(ctx context.Context, connectionID uuid.UUID, orgName string) (string, error) {
	conn, err := c.connRepo.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return "", errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}
	if conn.OrgCalendarID != nil && *conn.OrgCalendarID != "" {
		return *conn.OrgCalendarID, nil
	}

	calendarID, err := c.createCalendar(ctx, connectionID, orgName, "")
	if err != nil {
		return "", err
	}
	if err := c.connRepo.SetCalendarID(ctx, connectionID, "org_calendar_id", calendarID); err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to persist calendar id", err)
	}

	logger.Info("CalendarManager:EnsureOrganizationCalendar:Created",
		"connection_id", connectionID, "calendar_id", calendarID)
	return calendarID, nil
}

// EnsurePersonalCalendar mirrors EnsureOrganizationCalendar with the
// personal naming convention.
func (c *CalendarManager) EnsurePersonalCalendar(ctx context.Context, connectionID uuid.UUID, orgName string) (string, error) {
	conn, err := c.connRepo.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return "", errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}
	if conn.PersonalCalendarID != nil && *conn.PersonalCalendarID != "" {
		return *conn.PersonalCalendarID, nil
	}

	summary := fmt.Sprintf("%s - Personal", orgName)
	calendarID, err := c.createCalendar(ctx, connectionID, summary, "")
	if err != nil {
		return "", err
	}
	if err := c.connRepo.SetCalendarID(ctx, connectionID, "personal_calendar_id", calendarID); err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to persist calendar id", err)
	}

	logger.Info("CalendarManager:EnsurePersonalCalendar:Created",
		"connection_id", connectionID, "calendar_id", calendarID)
	return calendarID, nil
}

// ToggleVenueCalendarSync flips per-venue sync. Enabling creates the provider
// calendar and the row on first use; disabling only flips the flag so a later
// re-enable reuses the same provider calendar and never creates a duplicate.
func (c *CalendarManager) ToggleVenueCalendarSync(ctx context.Context, connectionID, venueID uuid.UUID, enabled bool, orgName, venueName, venueColor string) (*entity.VenueCalendar, error) {
	existing, err := c.venueRepo.GetByConnectionAndVenue(ctx, connectionID, venueID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load venue calendar", err)
	}

	if existing != nil {
		if existing.SyncEnabled == enabled {
			return existing, nil
		}
		if err := c.venueRepo.SetSyncEnabled(ctx, connectionID, venueID, enabled); err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update venue sync flag", err)
		}
		existing.SyncEnabled = enabled
		logger.Info("CalendarManager:ToggleVenueCalendarSync:FlagFlipped",
			"connection_id", connectionID, "venue_id", venueID, "enabled", enabled)
		return existing, nil
	}

	if !enabled {
		// Disabling a venue that was never enabled: nothing to do.
		return nil, nil
	}

	summary := fmt.Sprintf("%s - %s", orgName, venueName)
	calendarID, err := c.createCalendar(ctx, connectionID, summary, venueColor)
	if err != nil {
		return nil, err
	}

	vc := &entity.VenueCalendar{
		ConnectionID:     connectionID,
		VenueID:          venueID,
		GoogleCalendarID: calendarID,
		SyncEnabled:      true,
	}
	saved, err := c.venueRepo.Create(ctx, vc)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to save venue calendar", err)
	}

	logger.Info("CalendarManager:ToggleVenueCalendarSync:Created",
		"connection_id", connectionID, "venue_id", venueID, "calendar_id", calendarID)
	return saved, nil
}

// createCalendar performs the provider create and afterwards looks for
// same-named siblings: a concurrent enable can have created a twin, which is
// acceptable and only logged.
func (c *CalendarManager) createCalendar(ctx context.Context, connectionID uuid.UUID, summary, colorHex string) (string, error) {
	client, _, err := c.tokens.GetAuthenticatedClient(ctx, connectionID)
	if err != nil {
		return "", err
	}

	calendarID, err := client.CreateCalendar(ctx, summary, colorHex)
	if err != nil {
		code := classifyProviderError(err)
		return "", errors.NewAppError(code, "failed to create provider calendar", err)
	}

	c.logDuplicateRace(ctx, client, calendarID, summary)
	return calendarID, nil
}

func (c *CalendarManager) logDuplicateRace(ctx context.Context, client CalendarAPI, createdID, summary string) {
	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return
	}
	want := slug.Make(summary)
	for id, s := range calendars {
		if id != createdID && slug.Make(s) == want {
			logger.Warn("CalendarManager:DuplicateCalendarRace",
				"summary", summary, "created_id", createdID, "existing_id", id)
			return
		}
	}
}
