package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Moaaz208/Mizo-Candle/internal/database"
	"github.com/Moaaz208/Mizo-Candle/internal/gateway"
	"github.com/Moaaz208/Mizo-Candle/internal/handlers"
	"github.com/Moaaz208/Mizo-Candle/internal/jobs"
	"github.com/Moaaz208/Mizo-Candle/internal/middleware"
	"github.com/Moaaz208/Mizo-Candle/internal/services"
	"github.com/Moaaz208/Mizo-Candle/internal/store"
	"github.com/Moaaz208/Mizo-Candle/pkg/cache"
	"github.com/Moaaz208/Mizo-Candle/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Console logging until the config says otherwise
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logFile := setupLogger(cfg.Log)
	defer logFile.Close()

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting Mizo Candle storefront")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage backend
	backend, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open storage backend")
	}
	defer backend.Close()

	// Redis doubles as the rate limit counter and geo-IP cache when it is
	// the storage backend; otherwise both stay in process.
	var (
		rateCounter database.RateCounter = database.NewMemoryDB()
		geoCache    *cache.Cache
	)
	if redisDB, ok := backend.(*database.RedisDB); ok {
		rateCounter = redisDB
		geoCache = cache.NewCache(redisDB.Client())
	}

	st := store.New(backend, cfg.Storage.Namespace, store.WithRecorder(middleware.RecordStoreOperation))

	// Services
	sessionService := services.NewSessionService(gateway.Options{
		ErrorFlash:  cfg.Gate.ErrorFlash,
		MaxFailures: cfg.Gate.MaxFailedAttempts,
		Lockout:     cfg.Gate.Lockout,
	}, cfg.Session.IdleTTL)
	sessionService.OnChange(middleware.SetClientSessions)

	tokenService := services.NewTokenService(&cfg.Session)

	geoService := services.NewGeoIPService(&cfg.GeoIP, geoCache)
	collector := services.NewCollector(geoService, st, cfg.Collector.LocationTimeout)
	collector.OnCapture(middleware.IncrementVisitorSnapshots)

	aiService := services.NewGeminiService(ctx, &cfg.AI)

	appService := services.NewAppService(ctx, st, sessionService, tokenService, collector, aiService, cfg.Gate)
	appService.OnGateAttempt(middleware.IncrementGateAttempts)

	// Background jobs
	scheduler := jobs.NewScheduler(sessionService, cfg.Session.SweepSchedule)
	if err := scheduler.Start(context.WithoutCancel(ctx)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	router := newRouter(routerDeps{
		app:          appService,
		tokens:       tokenService,
		sessions:     sessionService,
		limiter:      middleware.NewRateLimiter(rateCounter, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration),
		gateLimit:    cfg.RateLimit.GateRequests,
		health:       handlers.NewHealthHandler(backend),
		origins:      cfg.CORS.AllowedOrigins,
		cookieName:   cfg.Session.CookieName,
		isProduction: cfg.Server.IsProduction(),
	})

	// Video generation holds the response for minutes, hence the long
	// write timeout; every other route has its own 60s limit.
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.AI.VideoMaxWait + time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	scheduler.Stop()

	// Let in-flight visitor snapshots reach the store before it closes.
	collector.Wait()

	log.Info().Msg("Server stopped gracefully")
}
