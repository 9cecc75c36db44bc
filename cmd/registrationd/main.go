package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-registration"
	"github.com/goliatone/go-registration/config"
	"github.com/goliatone/go-registration/internal/app"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	envFile := flag.String("env", "", "dotenv file to load")
	migrate := flag.Bool("migrate", true, "apply migrations on start")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Debug {
		fmt.Println(print.MaybePrettyJSON(cfg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	logger := a.GetLogger("registration.http")

	if *migrate {
		group, err := registration.Migrate(ctx, a.DB)
		if err != nil {
			log.Fatal(err)
		}
		if group != nil && !group.IsZero() {
			logger.Info("migrations applied", "group", group.String())
		}
	}

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		fapp := router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               cfg.SiteName,
			DisableStartupMessage: !cfg.Debug,
			UnescapePath:          true,
		}))
		fapp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
		return fapp
	})

	registration.RegisterRoutes(srv.Router(),
		registration.WithControllerLogger(logger),
		registration.WithControllerRegisterer(a.Register),
		registration.WithControllerActivator(a.Activate),
	)

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.Serve(cfg.HTTPAddr); err != nil {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
