package router

import (
	"rosterhub/core/middleware"
	"rosterhub/modules/scheduling/controller"

	"github.com/labstack/echo/v4"
)

type EventRouter struct {
	controller *controller.EventController
}

func NewEventRouter(controller *controller.EventController) *EventRouter {
	return &EventRouter{
		controller: controller,
	}
}

func (r *EventRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	eventRoutes := v1.Group("/private/events")
	eventRoutes.Use(mw.AuthMiddleware())

	eventRoutes.POST("", r.controller.CreateEvent)
	eventRoutes.GET("/:id", r.controller.GetEvent)
	eventRoutes.PUT("/:id", r.controller.UpdateEvent)
	eventRoutes.DELETE("/:id", r.controller.DeleteEvent)
	eventRoutes.POST("/:id/assignments/respond", r.controller.RespondAssignment)
}
