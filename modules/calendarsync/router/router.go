package router

import (
	"rosterhub/core/middleware"
	"rosterhub/modules/calendarsync/controller"

	"github.com/labstack/echo/v4"
)

type CalendarSyncRouter struct {
	controller *controller.CalendarSyncController
}

func NewCalendarSyncRouter(controller *controller.CalendarSyncController) *CalendarSyncRouter {
	return &CalendarSyncRouter{
		controller: controller,
	}
}

func (r *CalendarSyncRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Google redirects here; authenticated by the state token, not a JWT.
	v1.GET("/calendar/google/callback", r.controller.Callback)

	calendarRoutes := v1.Group("/private/calendar")
	calendarRoutes.Use(mw.AuthMiddleware())

	calendarRoutes.GET("/connect", r.controller.Connect)
	calendarRoutes.GET("/connection", r.controller.GetConnection)
	calendarRoutes.DELETE("/connection", r.controller.Disconnect)
	calendarRoutes.PATCH("/preferences", r.controller.UpdatePreferences)
	calendarRoutes.PUT("/venues/:venueId/sync", r.controller.ToggleVenueSync)
}
