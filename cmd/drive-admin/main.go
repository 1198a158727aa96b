// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskdrive/internal/config"
	httptransport "taskdrive/internal/http"
	"taskdrive/internal/infra"
	"taskdrive/internal/logger"
	"taskdrive/internal/modules/commission"
	"taskdrive/internal/modules/drive"
	"taskdrive/internal/modules/driveconfig"
	"taskdrive/internal/modules/product"
	"taskdrive/internal/modules/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatal(err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logg.Fatal("db init failed", "error", err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	userStore := user.NewStore(dbPool)
	productStore := product.NewStore(dbPool, redisClient, cfg.Products.CacheTTL)
	configStore := driveconfig.NewStore(dbPool)
	configSvc := driveconfig.NewService(configStore, productStore)

	commissionSvc := commission.NewService(userStore)

	driveStore := drive.NewStore(dbPool)
	driveSvc := drive.NewService(driveStore, userStore, configStore, productStore, commissionSvc, logg)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Configs:  configSvc,
		Drive:    driveSvc,
		Products: productStore,
		Log:      logg,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error("shutdown failed", "error", err)
		}
	}()

	logg.Info("drive admin listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Fatal("server exited", "error", err)
	}
}
