package scheduling

import (
	"rosterhub/core/cache"
	"rosterhub/core/database"
	"rosterhub/core/middleware"
	"rosterhub/modules/scheduling/controller"
	"rosterhub/modules/scheduling/repository"
	"rosterhub/modules/scheduling/router"
	"rosterhub/modules/scheduling/service"

	"github.com/labstack/echo/v4"
)

// Init wires the scheduling module. The syncer comes from the calendarsync
// module so each mutation fans out after its own write.
func Init(e *echo.Echo, db database.Database, c cache.Cache, syncer service.Syncer) {
	repo := repository.NewEventRepository(db)
	svc := service.NewEventService(repo, syncer)
	ctrl := controller.NewEventController(svc)

	mw := middleware.NewMiddleware(c)
	router.NewEventRouter(ctrl).Setup(e, mw)
}
