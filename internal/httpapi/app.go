// internal/httpapi/app.go
package httpapi

import (
	"go.uber.org/zap"

	"d4d/internal/credentials"
	"d4d/internal/locations"
	"d4d/internal/menus"
	"d4d/internal/ssocrypt"
	"d4d/internal/tokens"
	"d4d/pkg/config"
)

// App is the integration-service application container. Handlers and
// middleware have methods on this type.
//
// Keep it lean: shared deps and config only. Request-scoped work should use
// context.
type App struct {
	log        *zap.SugaredLogger
	codec      *ssocrypt.Codec
	tokens     *tokens.Service
	menus      *menus.Manager
	reconciler *locations.Reconciler
	locs       locations.Store
	creds      credentials.Store
	adminToken string
}

func New(log *zap.SugaredLogger, cfg config.Config, codec *ssocrypt.Codec, tok *tokens.Service, mgr *menus.Manager, rec *locations.Reconciler, locs locations.Store, creds credentials.Store) *App {
	return &App{
		log:        log,
		codec:      codec,
		tokens:     tok,
		menus:      mgr,
		reconciler: rec,
		locs:       locs,
		creds:      creds,
		adminToken: cfg.AdminToken,
	}
}
