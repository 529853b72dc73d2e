package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/app"
	"storefront_back_end/internal/config"
)

const closeTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	app.InitLogger(cfg.IsProd)
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("❌ invalid configuration")
	}

	server, err := app.New(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("❌ startup failed")
	}
	server.Run(stop)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	server.Close(shutdownCtx)
}
