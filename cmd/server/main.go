// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/Ensaios/internal/api/agenda"
	"github.com/codr1/Ensaios/internal/api/auth"
	"github.com/codr1/Ensaios/internal/bands"
	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/config"
	"github.com/codr1/Ensaios/internal/email"
	"github.com/codr1/Ensaios/internal/ratelimit"
	"github.com/codr1/Ensaios/internal/scheduler"
	"github.com/codr1/Ensaios/internal/store/backend"
)

// Config holds process settings that live outside config.yaml.
type Config struct {
	ConfigPath      string
	StaticDir       string
	ShutdownTimeout time.Duration
}

func loadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	return &Config{
		ConfigPath:      getEnv("CONFIG_PATH", "config.yaml"),
		StaticDir:       getEnv("STATIC_DIR", "build/bin/static"),
		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	serverConfig, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appConfig, err := config.Load(serverConfig.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", serverConfig.ConfigPath).Msg("Failed to load configuration")
	}

	setupLogger(appConfig.App.Environment)

	if err := run(serverConfig, appConfig); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(serverConfig *Config, appConfig *config.Config) error {
	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.Logger.WithContext(ctx)

	bookingStore, closer, err := backend.Open(appConfig.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	registry, err := bands.NewRegistry(appConfig.Bands)
	if err != nil {
		return fmt.Errorf("band roster: %w", err)
	}
	policy, err := booking.ParseConflictPolicy(appConfig.Agenda.ConflictPolicy)
	if err != nil {
		return err
	}
	defaultTime, err := booking.ParseClock(appConfig.Agenda.DefaultTime)
	if err != nil {
		return fmt.Errorf("agenda default_time: %w", err)
	}

	ledger, err := booking.NewLedger(bookingStore, booking.WithConflictPolicy(policy))
	if err != nil {
		return err
	}
	// An unreachable store is not fatal: the agenda starts empty and can be reloaded.
	if _, err := ledger.Reload(ctx); err != nil {
		log.Error().Err(err).Msg("Starting with an empty agenda")
	}

	sessions, err := auth.NewSessions(appConfig.App.SecretKey, !appConfig.IsDevelopment(), auth.DefaultSessionTTL)
	if err != nil {
		return err
	}
	limiter := ratelimit.New(ratelimit.DefaultConfig())
	defer limiter.Close()

	var notifier *email.Notifier
	if appConfig.NotificationsEnabled() {
		sesClient, err := email.NewSESClient(ctx,
			appConfig.Notifications.AccessKeyID,
			appConfig.Notifications.SecretAccessKey,
			appConfig.Notifications.Region,
			appConfig.Notifications.Sender,
		)
		if err != nil {
			return fmt.Errorf("email client: %w", err)
		}
		notifier = email.NewNotifier(sesClient, appConfig.Notifications.Recipient, appConfig.App.Name, appConfig.App.BaseURL)
		log.Info().Str("recipient", appConfig.Notifications.Recipient).Msg("Booking notices enabled")
	}
	defer notifier.Wait()

	auth.InitHandlers(&auth.Config{
		AppName:      appConfig.App.Name,
		PasswordHash: appConfig.App.PasswordHash,
		Sessions:     sessions,
		Limiter:      limiter,
		TrustProxy:   appConfig.App.TrustProxy,
	})
	agenda.InitHandlers(&agenda.Config{
		Ledger:            ledger,
		Registry:          registry,
		AllowUnknownBands: appConfig.Agenda.AllowUnknownBands,
		AllowPastDates:    appConfig.Agenda.AllowPastDates,
		DefaultTime:       defaultTime,
		MinYear:           appConfig.Agenda.MinYear,
		MaxYear:           appConfig.Agenda.MaxYear,
		Debug:             appConfig.Features.EnableDebug,
		Notifier:          notifier,
		AppName:           appConfig.App.Name,
	})

	if err := startScheduler(appConfig, ledger); err != nil {
		return err
	}
	defer func() {
		if err := scheduler.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotInitialized) {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	// Create server instance
	server := newServer(serverConfig, appConfig)

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Int("port", appConfig.App.Port).Str("store", appConfig.Store.Driver).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if ledger.Pending() {
			if err := ledger.Flush(log.Logger.WithContext(shutdownCtx)); err != nil {
				log.Error().Err(err).Msg("Pending bookings were not saved before exit")
			}
		}
		return nil
	})

	return g.Wait()
}

// startScheduler registers the configured background jobs. No schedule, no scheduler.
func startScheduler(appConfig *config.Config, ledger *booking.Ledger) error {
	flushSchedule := appConfig.Scheduler.FlushSchedule
	backupSchedule := appConfig.Scheduler.BackupSchedule
	if flushSchedule == "" && backupSchedule == "" {
		return nil
	}

	if err := scheduler.Init(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	svc, err := scheduler.ServiceInstance()
	if err != nil {
		return err
	}
	if flushSchedule != "" {
		if err := scheduler.RegisterFlushJob(svc, flushSchedule, ledger); err != nil {
			return err
		}
	}
	if backupSchedule != "" {
		if err := scheduler.RegisterBackupJob(svc, backupSchedule, appConfig.Scheduler.BackupDir, ledger); err != nil {
			return err
		}
	}
	return scheduler.Start()
}
