// cmd/integration-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"d4d/internal/credentials"
	"d4d/internal/httpapi"
	"d4d/internal/locations"
	"d4d/internal/menus"
	"d4d/internal/seed"
	"d4d/internal/ssocrypt"
	"d4d/internal/tokens"
	"d4d/pkg/config"
	"d4d/pkg/db"
	"d4d/pkg/logger"
	"d4d/pkg/platform"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer log.Sync()

	pool := db.MustConnect(cfg, log)
	cache := db.MustRedis(cfg, log)

	var credStore credentials.Store
	var locStore locations.Store
	if pool != nil {
		if err := credentials.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("credentials schema", "err", err)
		}
		if err := locations.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("locations schema", "err", err)
		}
		credStore = credentials.NewPostgresStore(pool, log)
		locStore = locations.NewPostgresStore(pool, log)
	} else {
		credStore = credentials.NewMemoryStore()
		locStore = locations.NewMemoryStore()
	}

	if cfg.SeedFile != "" {
		if err := seed.Import(context.Background(), cfg.SeedFile, credStore, locStore, log); err != nil {
			log.Warnw("seed", "err", err)
		}
	}

	api := platform.NewClient(cfg, log)
	tok := tokens.NewService(credStore, api, cfg.RefreshMargin, log)
	rec := locations.NewReconciler(locStore, tok, api, cfg.AppID, cache, log)
	mgr := menus.NewManager(credStore, tok, api, rec, cfg.MenuTitle, cfg.MenuURL, log)
	codec := ssocrypt.NewCodec(cfg.SSOSecret, log)

	app := httpapi.New(log, cfg, codec, tok, mgr, rec, locStore, credStore)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("integration-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("integration-service stopped")
}
