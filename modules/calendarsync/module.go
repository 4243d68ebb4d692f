package calendarsync

import (
	"rosterhub/core/cache"
	"rosterhub/core/config"
	"rosterhub/core/crypto"
	"rosterhub/core/database"
	"rosterhub/core/middleware"
	"rosterhub/core/queue"
	"rosterhub/modules/calendarsync/controller"
	"rosterhub/modules/calendarsync/repository"
	"rosterhub/modules/calendarsync/router"
	"rosterhub/modules/calendarsync/service"
	schedRepository "rosterhub/modules/scheduling/repository"

	"github.com/labstack/echo/v4"
)

// Init wires the calendar sync module and returns the SyncService so the
// scheduling module can fan out after its mutations.
func Init(e *echo.Echo, db database.Database, c cache.Cache, q queue.Client) (*service.SyncService, error) {
	cfg := config.Get()

	cipher, err := crypto.NewTokenCipher(cfg.Sync.EncryptionKey)
	if err != nil {
		return nil, err
	}

	// Repositories
	connRepo := repository.NewConnectionRepository(db)
	venueRepo := repository.NewVenueCalendarRepository(db)
	mappingRepo := repository.NewSyncMappingRepository(db)
	stateRepo := repository.NewOAuthStateRepository(db)
	eventRepo := schedRepository.NewEventRepository(db)

	// Services
	tokens := service.NewTokenManager(
		connRepo, mappingRepo, cipher, service.NewGoogleCalendarClient, q, c,
		cfg.GoogleAPI.ClientID, cfg.GoogleAPI.ClientSecret,
		cfg.Sync.TokenRefreshSkew(),
	)
	calendars := service.NewCalendarManager(connRepo, venueRepo, tokens, eventRepo)
	oauth := service.NewOAuthService(stateRepo, tokens, cfg.GoogleAPI.ClientID, cfg.GoogleAPI.ClientSecret, cfg.GoogleAPI.RedirectURI)
	syncSvc := service.NewSyncService(
		connRepo, venueRepo, mappingRepo, tokens, calendars, eventRepo, q,
		cfg.Sync.Timezone, cfg.Sync.RetryAttempts, cfg.Sync.MaxParallel,
	)

	ctrl := controller.NewCalendarSyncController(oauth, tokens, calendars)
	mw := middleware.NewMiddleware(c)
	router.NewCalendarSyncRouter(ctrl).Setup(e, mw)

	return syncSvc, nil
}
