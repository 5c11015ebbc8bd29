package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/calmpoint/counselbook/internal/handlers"
	"github.com/calmpoint/counselbook/internal/outbox"
	"github.com/calmpoint/counselbook/internal/schedule"
	"github.com/calmpoint/counselbook/internal/storage"
	"github.com/calmpoint/counselbook/libs/config"
	"github.com/calmpoint/counselbook/libs/db"
	"github.com/calmpoint/counselbook/libs/httpx"
	"github.com/calmpoint/counselbook/libs/kafkax"
	otelx "github.com/calmpoint/counselbook/libs/otel"
	"github.com/calmpoint/counselbook/libs/runtime"
)

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "counselbook")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, int32(config.Int("DB_MAX_CONNS", 10)))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	location, err := config.Location("BUSINESS_TIMEZONE", "UTC")
	if err != nil {
		logger.Error("invalid BUSINESS_TIMEZONE", "err", err)
		panic(err)
	}

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewRepository(pool, outboxRepo)

	rules := schedule.Rules{
		MinAdvance:     config.Minutes("MIN_ADVANCE_MINUTES", 24*time.Hour),
		MaxAdvance:     config.Minutes("MAX_ADVANCE_MINUTES", 30*24*time.Hour),
		Buffer:         config.Minutes("BUFFER_MINUTES", 15*time.Minute),
		SlotStep:       config.Minutes("SLOT_STEP_MINUTES", 15*time.Minute),
		Location:       location,
		LookaheadDays:  config.Int("SUGGESTION_LOOKAHEAD_DAYS", 1),
		MaxSuggestions: config.Int("MAX_SUGGESTIONS", 6),
	}
	engine := schedule.New(repo, repo, schedule.SystemClock(), rules, logger)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	publicHandler := handlers.NewPublicHandler(engine, repo, logger)
	appointmentHandler := handlers.NewAppointmentHandler(engine, repo, logger)
	scheduleHandler := handlers.NewScheduleHandler(repo, logger)
	authHandler := handlers.NewAuthHandler(repo, jwtSecret, config.Minutes("TOKEN_TTL_MINUTES", 12*time.Hour), logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)

	mux.HandleFunc("/api/v1/public/services", publicHandler.Services)
	mux.HandleFunc("/api/v1/public/slots", publicHandler.Slots)
	mux.HandleFunc("/api/v1/public/availability", publicHandler.Availability)
	mux.HandleFunc("/api/v1/public/book", publicHandler.Book)
	mux.HandleFunc("/api/v1/auth/login", authHandler.Login)

	admin := http.NewServeMux()
	admin.HandleFunc("/api/v1/admin/appointments", appointmentHandler.List)
	admin.HandleFunc("/api/v1/admin/appointments/status", appointmentHandler.ChangeStatus)
	admin.HandleFunc("/api/v1/admin/appointments/notes", appointmentHandler.UpdateNotes)
	admin.HandleFunc("/api/v1/admin/appointments/reschedule", appointmentHandler.Reschedule)
	admin.HandleFunc("/api/v1/admin/appointments/history", appointmentHandler.History)
	admin.HandleFunc("/api/v1/admin/conflicts", appointmentHandler.Conflicts)
	admin.HandleFunc("/api/v1/admin/windows", scheduleHandler.Windows)
	admin.HandleFunc("/api/v1/admin/blocked-slots", scheduleHandler.BlockedSlots)
	admin.HandleFunc("/api/v1/admin/services", scheduleHandler.Services)
	mux.Handle("/api/v1/admin/", handlers.RequireAdmin(jwtSecret, admin))

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key")),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
