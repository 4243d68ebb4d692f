package controller

import (
	"net/http"

	"rosterhub/core/controller"
	"rosterhub/core/errors"
	"rosterhub/core/middleware"
	"rosterhub/modules/calendarsync/dto"
	"rosterhub/modules/calendarsync/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CalendarSyncController struct {
	controller.BaseController
	oauth     *service.OAuthService
	tokens    *service.TokenManager
	calendars *service.CalendarManager
}

func NewCalendarSyncController(
	oauth *service.OAuthService,
	tokens *service.TokenManager,
	calendars *service.CalendarManager,
) *CalendarSyncController {
	return &CalendarSyncController{
		BaseController: controller.NewBaseController(),
		oauth:          oauth,
		tokens:         tokens,
		calendars:      calendars,
	}
}

// Connect starts the Google consent flow for the current user.
// GET /api/v1/private/calendar/connect
func (c *CalendarSyncController) Connect(ctx echo.Context) error {
	userID, orgID, err := identityFromContext(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	authURL, err := c.oauth.BeginConnect(ctx.Request().Context(), userID, orgID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.ConnectURLResponse{AuthURL: authURL}, "consent url issued")
}

// Callback completes the consent flow. Google redirects here, so the route
// is public and authenticated by the single-use state token instead of a JWT.
// GET /api/v1/calendar/google/callback?state=...&code=...
func (c *CalendarSyncController) Callback(ctx echo.Context) error {
	if errParam := ctx.QueryParam("error"); errParam != "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "consent was denied: "+errParam, nil))
	}

	err := c.oauth.CompleteConnect(ctx.Request().Context(), ctx.QueryParam("state"), ctx.QueryParam("code"))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "calendar connected")
}

// GetConnection returns the current user's connection and venue toggles.
// GET /api/v1/private/calendar/connection
func (c *CalendarSyncController) GetConnection(ctx echo.Context) error {
	userID, _, err := identityFromContext(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	conn, venueCalendars, err := c.calendars.GetConnectionOverview(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.ToConnectionResponse(conn, venueCalendars), "")
}

// UpdatePreferences patches the org/personal sync toggles.
// PATCH /api/v1/private/calendar/preferences
func (c *CalendarSyncController) UpdatePreferences(ctx echo.Context) error {
	userID, _, err := identityFromContext(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	var req dto.UpdatePreferencesRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}
	if req.SyncOrgCalendar == nil && req.SyncPersonalCalendar == nil {
		return c.BadRequest(errors.ErrInvalidInput, "no preference fields supplied")
	}

	conn, _, err := c.calendars.GetConnectionOverview(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	updated, err := c.tokens.UpdateConnectionPreferences(ctx.Request().Context(), conn.ID, service.PreferencesPatch{
		SyncOrgCalendar:      req.SyncOrgCalendar,
		SyncPersonalCalendar: req.SyncPersonalCalendar,
	})
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	// Newly enabled calendars are provisioned now; failures fall back to the
	// lazy create on the next sync attempt.
	c.calendars.EnsureEnabledCalendars(ctx.Request().Context(), updated.ID)

	return c.SuccessResponse(ctx, dto.ToConnectionResponse(updated, nil), "preferences updated")
}

// ToggleVenueSync enables or disables the per-venue calendar.
// PUT /api/v1/private/calendar/venues/:venueId/sync
func (c *CalendarSyncController) ToggleVenueSync(ctx echo.Context) error {
	userID, _, err := identityFromContext(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	venueID, err := uuid.Parse(ctx.Param("venueId"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid venue id")
	}

	var req dto.ToggleVenueSyncRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	vc, err := c.calendars.ToggleVenueSyncForUser(ctx.Request().Context(), userID, venueID, req.Enabled)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	resp := dto.VenueCalendarResponse{VenueID: venueID.String()}
	if vc != nil {
		resp.SyncEnabled = vc.SyncEnabled
	}
	return c.SuccessResponse(ctx, resp, "venue sync updated")
}

// Disconnect removes the connection and its mappings. Events already pushed
// to the provider are left in place.
// DELETE /api/v1/private/calendar/connection
func (c *CalendarSyncController) Disconnect(ctx echo.Context) error {
	userID, _, err := identityFromContext(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	if err := c.tokens.DeleteConnection(ctx.Request().Context(), userID); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"message": "calendar disconnected"})
}

func identityFromContext(ctx echo.Context) (uuid.UUID, uuid.UUID, error) {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, uuid.Nil, errors.NewAppError(errors.ErrUnauthorized, "invalid user context", nil)
	}
	orgID, _ := ctx.Get(middleware.ContextKeyOrgID).(uuid.UUID)
	return userID, orgID, nil
}
