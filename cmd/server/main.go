package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/nano-midea/moments/internal/jobs"
	"github.com/anonto42/nano-midea/moments/internal/router"
	"github.com/anonto42/nano-midea/moments/pkg/config"
	"github.com/anonto42/nano-midea/moments/pkg/firebase"
	"github.com/anonto42/nano-midea/moments/pkg/logger"
	"github.com/anonto42/nano-midea/moments/pkg/metrics"
	"github.com/anonto42/nano-midea/moments/validators"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.New("", "info").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg, logger.Component(log, "database"))
	if err != nil {
		log.WithError(err).Fatal("failed to initialize databases")
	}
	defer db.CloseDB()

	var authClient *auth.Client
	if cfg.FirebaseCredentialsPath != "" {
		app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, logger.Component(log, "firebase"))
		if err != nil {
			log.WithError(err).Fatal("failed to initialize Firebase")
		}
		authClient = app.AuthClient
	} else {
		log.Warn("FIREBASE_CREDENTIALS_PATH not set, only local tokens are accepted")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, logger.Component(log, "http"))

	services, err := router.SetupRoutes(e, cfg, db, authClient, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up routes")
	}

	// Story index: initial load, live change stream, periodic resync.
	if err := services.Index.Resync(ctx); err != nil {
		log.WithError(err).Fatal("failed to load story index")
	}
	go func() {
		if err := services.Index.Watch(ctx, services.Stories); err != nil {
			log.WithError(err).Warn("story change stream stopped, relying on periodic resync")
		}
	}()

	job, err := jobs.NewStoryIndexJob(services.Index, cfg.StoryResyncSpec, cfg.WriteTimeout, logrus.NewEntry(log))
	if err != nil {
		log.WithError(err).Fatal("failed to schedule story index job")
	}
	job.Start()

	var metricsServer *http.Server
	if cfg.MetricsPort != "" {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()
	log.WithField("port", cfg.Port).Info("server started")

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	services.Registry.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	job.Stop()
	services.Dispatcher.Wait()
}
