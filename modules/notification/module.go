package notification

import (
	"rosterhub/core/cache"
	"rosterhub/core/database"
	"rosterhub/core/middleware"
	"rosterhub/modules/notification/controller"
	"rosterhub/modules/notification/repository"
	"rosterhub/modules/notification/router"
	"rosterhub/modules/notification/service"

	"github.com/labstack/echo/v4"
)

// Init wires the notification module and returns the service so the worker
// can write notices for queued calendar tasks.
func Init(e *echo.Echo, db database.Database, c cache.Cache) *service.NotificationService {
	repo := repository.NewNotificationRepository(db)
	svc := service.NewNotificationService(repo)
	ctrl := controller.NewNotificationController(svc)

	mw := middleware.NewMiddleware(c)
	router.NewNotificationRouter(ctrl).Setup(e, mw)

	return svc
}
