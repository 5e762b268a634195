package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vipul43/privatezone/internal/api"
	"github.com/vipul43/privatezone/internal/config"
	"github.com/vipul43/privatezone/internal/database"
	"github.com/vipul43/privatezone/internal/gcalendar"
	"github.com/vipul43/privatezone/internal/gmail"
	"github.com/vipul43/privatezone/internal/gtasks"
	"github.com/vipul43/privatezone/internal/lock"
	"github.com/vipul43/privatezone/internal/models"
	"github.com/vipul43/privatezone/internal/mongostore"
	"github.com/vipul43/privatezone/internal/msgraph"
	"github.com/vipul43/privatezone/internal/oauth"
	"github.com/vipul43/privatezone/internal/repository"
	"github.com/vipul43/privatezone/internal/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Providers without credentials are left out and report ErrUnsupportedProvider
	oauthProviders := make(map[models.Provider]service.OAuthProvider)
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		for _, p := range []models.Provider{models.ProviderGmail, models.ProviderGoogleCalendar, models.ProviderGoogleTasks} {
			oauthProviders[p] = oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, api.CallbackURL(cfg.GoogleRedirectURL, p), p)
		}
	}
	if cfg.MicrosoftClientID != "" && cfg.MicrosoftClientSecret != "" {
		oauthProviders[models.ProviderMicrosoftGraph] = oauth.NewMicrosoft(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret,
			cfg.MicrosoftTenant, api.CallbackURL(cfg.MicrosoftRedirectURL, models.ProviderMicrosoftGraph))
	}

	refreshers := make(map[models.Provider]service.TokenRefresher, len(oauthProviders))
	for p, o := range oauthProviders {
		refreshers[p] = o
	}

	guard := service.NewTokenGuard(store, refreshers, logger)
	guard.SetRefreshSkew(cfg.TokenRefreshSkew)

	if cfg.RedisURL != "" {
		redisClient, err := lock.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		guard.SetLocker(lock.NewRedisLocker(redisClient, logger))
		logger.Info("Refresh lock enabled")
	}

	calendars := map[models.Provider]service.CalendarProvider{
		models.ProviderGoogleCalendar: gcalendar.NewClient(logger),
		models.ProviderMicrosoftGraph: msgraph.NewClient(logger),
	}

	calendarSync := service.NewCalendarSync(guard, store, calendars, logger)
	calendarSync.SetSyncDays(cfg.CalendarSyncDays)

	mailSync := service.NewMailSync(guard, store, gmail.NewClient(logger), logger)
	mailSync.SetInlineLimit(cfg.AttachmentInlineLimit)

	server := api.NewServer(api.Services{
		Calendar:     calendarSync,
		Mail:         mailSync,
		Tasks:        service.NewTaskSync(guard, store, gtasks.NewClient(logger), logger),
		Events:       service.NewEventEditor(guard, store, calendars, logger),
		Integrations: service.NewIntegrationService(store, oauthProviders, logger),
	}, logger)

	srv := api.NewHTTPServer(cfg.HTTPAddr, server.Router())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown timeout exceeded", zap.Error(err))
		}
		logger.Info("Application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openStore connects the configured backend and brings its schema up to date
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		store, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, nil, err
		}
		logger.Info("MongoDB connected", zap.String("database", cfg.MongoDatabase))

		return store, func() { _ = store.Close(context.Background()) }, nil

	default:
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Database connected successfully")

		logger.Info("Running database migrations...")
		if err := database.RunMigrations(db); err != nil {
			_ = database.Close(db)
			return nil, nil, err
		}
		logger.Info("Migrations completed successfully")

		return repository.NewStore(db), func() { _ = database.Close(db) }, nil
	}
}
