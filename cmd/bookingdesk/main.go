package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bookingdesk/internal/api"
	"bookingdesk/internal/bookingapi"
	"bookingdesk/internal/config"
	"bookingdesk/internal/events"
	"bookingdesk/internal/identity"
	"bookingdesk/internal/journal"
	"bookingdesk/internal/metrics"
	"bookingdesk/internal/reminders"
	"bookingdesk/internal/service"
	"bookingdesk/internal/tracing"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BOOKINGDESK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Logging.JSON {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = shutdownTracing(ctxShutdown)
	}()

	database, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open journal error")
	}
	defer database.Close()
	logger.Info().Str("path", database.Path()).Msg("journal opened")

	loc := cfg.Location()
	client := bookingapi.NewClient(cfg.BookingAPI.BaseURL, cfg.BookingAPI.APIKey, cfg.BookingAPITimeout())
	client.UseLocation(loc)
	if cfg.BookingAPI.RateLimitRPS > 0 {
		client.UseRateLimit(cfg.BookingAPI.RateLimitRPS, cfg.BookingAPI.RateLimitBurst)
	}
	rdb := newRedisClient(cfg)
	if rdb != nil {
		defer rdb.Close()
		if cfg.CacheTTL() > 0 {
			client.UseRedisCache(rdb, cfg.CacheTTL())
		}
	}

	var customers api.CustomerDirectory
	if cfg.Identity.Domain != "" {
		customers = identity.NewClient(ctx, identity.Config{
			Domain:       cfg.Identity.Domain,
			ClientID:     cfg.Identity.ClientID,
			ClientSecret: cfg.Identity.ClientSecret,
			Audience:     cfg.Identity.Audience,
			Scopes:       cfg.Identity.Scopes,
			CacheTTL:     cfg.IdentityCacheTTL(),
			Timeout:      cfg.BookingAPITimeout(),
		}, &logger)
	} else {
		logger.Warn().Msg("identity provider not configured; trusting X-User-Email")
	}

	bus := events.NewEventBus()
	bus.SubscribeAll(func(e events.Event) error {
		logger.Info().
			Str("event", e.Type).
			Str("booking_id", e.BookingID).
			Str("customer_id", e.CustomerID).
			Msg("booking event")
		return nil
	})

	gridFrom, gridTo, gridStep := cfg.DisplayWindow()
	slotService := service.NewSlotService(client, service.SlotOptions{
		Location:  loc,
		GridFrom:  gridFrom,
		GridTo:    gridTo,
		GridStep:  gridStep,
		ValidDays: cfg.Site.ValidDays,
	}, &logger)
	bookingService := service.NewBookingService(client, slotService, database, bus, service.BookingOptions{
		Offset:            cfg.WireOffset(),
		DefaultLocationID: cfg.Site.LocationID,
	}, &logger)

	// Initial load + hot reload of closed dates
	if cfg.Site.ClosedDatesPath != "" {
		if err := config.WatchClosedDates(ctx, cfg.Site.ClosedDatesPath, 30*time.Second, func(updated *config.ClosedDatesConfig) {
			slotService.SetClosedDates(updated.Dates())
			logger.Info().Int("closed_dates", len(updated.Holidays)).Time("reloaded_at", time.Now()).Msg("closed dates reloaded")
		}, func(err error) {
			logger.Warn().Err(err).Msg("closed dates reload failed")
		}); err != nil {
			logger.Error().Err(err).Msg("closed dates watch failed")
		}
	}

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	backups := journal.NewBackupService(database, journal.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		Interval:      cfg.BackupInterval(),
		StoragePath:   cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backups.Start(ctx)

	go startLifecycleCleanup(ctx, bookingService, &logger)

	if cfg.Reminders.Enabled {
		scheduler := reminders.NewScheduler(reminders.Config{
			Lead:          cfg.ReminderLead(),
			CheckInterval: cfg.ReminderInterval(),
		}, client, bus, &logger)
		if rdb != nil {
			scheduler.UseRedis(rdb)
		}
		go scheduler.Start(ctx)
	}

	server := api.NewHTTPServer(api.Options{
		Port:        cfg.Server.Port,
		APIKey:      cfg.Server.APIKey,
		ValidDays:   cfg.Site.ValidDays,
		ReadTimeout: cfg.ReadTimeout(),
	}, slotService, bookingService, customers, &logger)

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			logger.Error().Err(err).Msg("api server shutdown")
		}
	}()

	logger.Info().Str("timezone", loc.String()).Msg("bookingdesk started")
	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("api server error")
		stop()
	}
	<-ctx.Done()
	logger.Info().Msg("bookingdesk stopped")
}

// startLifecycleCleanup forgets idle booking lifecycles.
func startLifecycleCleanup(ctx context.Context, bookings *service.BookingService, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracker := bookings.Tracker()
			if n := tracker.Cleanup(); n > 0 {
				logger.Debug().Int("removed", n).Int("tracked", tracker.Len()).Msg("expired booking lifecycles removed")
			}
		}
	}
}

// newRedisClient returns nil when no Redis address is configured. The client
// backs the response cache, reminder claims and the readiness check.
func newRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
}

func startHealthServer(ctx context.Context, port int, database *journal.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "journal not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
