package controller

import (
	"rosterhub/core/controller"
	"rosterhub/core/errors"
	"rosterhub/core/middleware"
	"rosterhub/core/params"
	"rosterhub/modules/notification/dto"
	"rosterhub/modules/notification/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type NotificationController struct {
	service *service.NotificationService
	controller.BaseController
}

func NewNotificationController(service *service.NotificationService) *NotificationController {
	return &NotificationController{
		service:        service,
		BaseController: controller.NewBaseController(),
	}
}

// GetMyNotifications lists the current user's notifications, newest first.
// GET /api/v1/private/notifications
func (c *NotificationController) GetMyNotifications(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	queryParams := params.NewQueryParams(ctx)
	result, err := c.service.GetMyNotifications(ctx.Request().Context(), userID, *queryParams)
	if err != nil {
		return c.InternalServerError(errors.ErrInternalServer, "failed to get notifications")
	}
	return c.SuccessResponse(ctx, result, "notifications retrieved")
}

// MarkAsRead marks the given notifications as read.
// PUT /api/v1/private/notifications/mark-read
func (c *NotificationController) MarkAsRead(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	req := new(dto.MarkAsReadRequest)
	if err := ctx.Bind(req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "invalid request body")
	}

	if err := c.service.MarkAsRead(ctx.Request().Context(), userID, req.IDs); err != nil {
		return c.InternalServerError(errors.ErrInternalServer, "failed to mark as read")
	}
	return c.SuccessResponse(ctx, nil, "marked as read")
}

// MarkAllAsRead marks every notification of the current user as read.
// PUT /api/v1/private/notifications/mark-all-read
func (c *NotificationController) MarkAllAsRead(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	if err := c.service.MarkAllAsRead(ctx.Request().Context(), userID); err != nil {
		return c.InternalServerError(errors.ErrInternalServer, "failed to mark all as read")
	}
	return c.SuccessResponse(ctx, nil, "marked all as read")
}

// CountUnread returns the unread badge count.
// GET /api/v1/private/notifications/unread-count
func (c *NotificationController) CountUnread(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return c.Unauthorized(errors.ErrUnauthorized, "invalid user context")
	}

	count, err := c.service.CountUnread(ctx.Request().Context(), userID)
	if err != nil {
		return c.InternalServerError(errors.ErrInternalServer, "failed to count unread")
	}
	return c.SuccessResponse(ctx, map[string]int{"count": count}, "unread count retrieved")
}
