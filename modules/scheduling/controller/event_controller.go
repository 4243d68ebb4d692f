package controller

import (
	"rosterhub/core/controller"
	"rosterhub/core/errors"
	"rosterhub/core/middleware"
	"rosterhub/modules/scheduling/dto"
	"rosterhub/modules/scheduling/entity"
	"rosterhub/modules/scheduling/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type EventController struct {
	controller.BaseController
	service *service.EventService
}

func NewEventController(service *service.EventService) *EventController {
	return &EventController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// GetEvent returns one event with its venues, assignments and invitations.
// GET /api/v1/private/events/:id
func (c *EventController) GetEvent(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid event id")
	}

	event, err := c.service.GetEvent(ctx.Request().Context(), id)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, event, "")
}

// CreateEvent creates an event in the caller's organization.
// POST /api/v1/private/events
func (c *EventController) CreateEvent(ctx echo.Context) error {
	orgID, ok := ctx.Get(middleware.ContextKeyOrgID).(uuid.UUID)
	if !ok || orgID == uuid.Nil {
		return c.Unauthorized(errors.ErrUnauthorized, "missing organization context")
	}

	var req dto.CreateEventRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	event, err := c.service.CreateEvent(ctx.Request().Context(), req.ToEntity(orgID))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, event, "event created")
}

// UpdateEvent replaces the mutable fields of an event.
// PUT /api/v1/private/events/:id
func (c *EventController) UpdateEvent(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid event id")
	}

	var req dto.UpdateEventRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	event, err := c.service.GetEvent(ctx.Request().Context(), id)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	req.ApplyTo(event)

	updated, err := c.service.UpdateEvent(ctx.Request().Context(), event)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, updated, "event updated")
}

// DeleteEvent removes an event; synced provider copies are retracted in the
// background.
// DELETE /api/v1/private/events/:id
func (c *EventController) DeleteEvent(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid event id")
	}

	if err := c.service.DeleteEvent(ctx.Request().Context(), id); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "event deleted")
}

// RespondAssignment records the caller's accept/decline on their assignment.
// POST /api/v1/private/events/:id/assignments/respond
func (c *EventController) RespondAssignment(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	eventID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "invalid event id")
	}

	var req dto.RespondAssignmentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	err = c.service.RespondToAssignment(ctx.Request().Context(), eventID, userID, entity.AssignmentStatus(req.Status))
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "assignment updated")
}
