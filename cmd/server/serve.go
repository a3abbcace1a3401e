package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/iliyamo/movie-tracker/internal/config"
	"github.com/iliyamo/movie-tracker/internal/database"
	"github.com/iliyamo/movie-tracker/internal/handler"
	"github.com/iliyamo/movie-tracker/internal/middleware"
	"github.com/iliyamo/movie-tracker/internal/queue"
	"github.com/iliyamo/movie-tracker/internal/repository"
	"github.com/iliyamo/movie-tracker/internal/router"
	"github.com/iliyamo/movie-tracker/internal/service"
)

func makeServeCMD() cli.Command {
	return cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves the HTTP API",
		Action:  serve,
	}
}

// eventPublisher is what serve owns: the handler's publisher plus Close.
type eventPublisher interface {
	handler.EventPublisher
	Close() error
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Setting DB
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db, "up"); err != nil {
			return err
		}
	}

	// Setting Redis
	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else if !cfg.Redis.Disabled {
		log.Warn("redis unavailable, using in-process rate limiting and no access token revocation")
	}

	// Setting entry events
	var events eventPublisher = service.NopPublisher{}
	if cfg.Broker.Enabled {
		p, err := service.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue)
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, entry events disabled")
		} else {
			events = p
		}
	}
	defer events.Close()

	if cfg.Broker.Enabled && cfg.Broker.ConsumerEnabled {
		consumer := &queue.ActivityConsumer{
			URL:     cfg.Broker.URL,
			Queue:   cfg.Broker.Queue,
			LogPath: cfg.Broker.ActivityLog,
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("activity consumer stopped")
			}
		}()
	}

	// Setting handlers
	sessions := repository.NewSessionRepo(rdb, "")
	auth := handler.NewAuthHandler(handler.AuthConfig{
		JWTSecret:    cfg.JWTSecret,
		AccessTTL:    cfg.AccessTTL,
		RefreshTTL:   cfg.RefreshTTL,
		BcryptCost:   cfg.BcryptCost,
		CookieSecure: cfg.CookieSecure,
	}, repository.NewUserRepo(db), repository.NewTokenRepo(db), sessions)
	entries := handler.NewEntryHandler(repository.NewEntryRepo(db), events)

	// Setting web server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(middleware.RequestLogger(log.StandardLogger()))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	var limiter echo.MiddlewareFunc
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewTokenBucket(cfg.RateLimit, rdb)
	}
	router.RegisterRoutes(e, router.Deps{
		Auth:      auth,
		Entries:   entries,
		JWT:       middleware.JWTAuth(cfg.JWTSecret, sessions),
		RateLimit: limiter,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
