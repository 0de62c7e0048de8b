package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/wolfman30/clinic-scheduler/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduler/internal/api/router"
	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/calendar"
	"github.com/wolfman30/clinic-scheduler/internal/compliance"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/datetime"
	httpmiddleware "github.com/wolfman30/clinic-scheduler/internal/http/middleware"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/internal/llm"
	"github.com/wolfman30/clinic-scheduler/internal/messaging"
	"github.com/wolfman30/clinic-scheduler/internal/notify"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/pause"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const pauseRedisKey = "clinic:pause_window"

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting clinic scheduler",
		"env", cfg.Env,
		"port", cfg.Port,
		"appointment_store", cfg.AppointmentStore,
		"context_store", cfg.ContextStore,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		logger.Error("invalid clinic timezone", "error", err)
		os.Exit(1)
	}

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = mainconfig.NewRedisClient(cfg)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable; falling back to in-process state", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		}
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	metricsHandler, messagingMetrics, dialogueMetrics := setupMetrics()

	apptStore, err := setupAppointments(ctx, cfg, pool)
	if err != nil {
		logger.Error("failed to initialize appointment store", "error", err)
		os.Exit(1)
	}
	cal, err := setupCalendar(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize calendar", "error", err)
		os.Exit(1)
	}
	contexts, err := setupContexts(ctx, cfg, redisClient, awsCfg, logger)
	if err != nil {
		logger.Error("failed to initialize context store", "error", err)
		os.Exit(1)
	}

	var persister pause.Persister
	if redisClient != nil {
		persister = pause.NewRedisPersister(redisClient, pauseRedisKey)
	}
	pauses := pause.NewStore(persister, logger)
	if err := pauses.Restore(ctx); err != nil {
		logger.Warn("failed to restore pause window", "error", err)
	}

	client := setupLLM(ctx, cfg, awsCfg, logger)
	recognizer := intent.Chain{intent.CommandRecognizer{}}
	settings := conversation.Settings{
		ClinicName:       cfg.ClinicName,
		OpenHour:         cfg.ClinicOpenHour,
		CloseHour:        cfg.ClinicCloseHour,
		DurationMinutes:  cfg.AppointmentDurationMinutes,
		MaxParseFailures: cfg.MaxParseFailures,
		PauseLookahead:   time.Duration(cfg.PauseLookaheadDays) * 24 * time.Hour,
	}
	var assistant conversation.Assistant
	if client != nil {
		recognizer = append(recognizer, intent.NewLLMRecognizer(client, ""))
		var history conversation.HistoryStore = conversation.NewMemoryHistory()
		if redisClient != nil {
			history = conversation.NewRedisHistory(redisClient, nil)
		}
		assistant = conversation.NewClinicAssistant(client, "", settings, history, logger)
	} else {
		logger.Warn("no LLM configured; only slash commands will be recognized")
	}

	var sender *messaging.TwilioSender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sender = messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	}

	var auditor conversation.Auditor
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		auditor = compliance.NewAuditService(db)
	}

	orchestrator, err := conversation.NewOrchestrator(conversation.Deps{
		Recognizer:   recognizer,
		Resolver:     datetime.NewResolver(loc),
		Pause:        pauses,
		Appointments: apptStore,
		Calendar:     cal,
		Contexts:     contexts,
		Assistant:    assistant,
		Auditor:      auditor,
		Alerts:       setupNotify(cfg, awsCfg, sender, logger),
		Metrics:      dialogueMetrics,
		Logger:       logger,
	}, settings)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	roles := roleResolver(cfg)
	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go limiter.Run(5*time.Minute, ctx.Done())

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(orchestrator, roles, logger),
		MetricsHandler:      metricsHandler,
		RateLimiter:         limiter,
	}
	if sender != nil {
		routerCfg.MessagingHandler = messaging.NewHandler(orchestrator, sender, roles, messagingMetrics, logger)
	} else {
		logger.Warn("twilio not configured; SMS webhook disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func needsAWS(cfg *appconfig.Config) bool {
	return cfg.ContextStore == appconfig.StoreDynamoDB || cfg.BedrockModelID != "" || cfg.SESFromEmail != ""
}

func setupMetrics() (http.Handler, *metrics.MessagingMetrics, *metrics.DialogueMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewMessagingMetrics(reg), metrics.NewDialogueMetrics(reg)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to ping postgres", "error", err)
		os.Exit(1)
	}
	return pool
}

func googleOptions(cfg *appconfig.Config) []option.ClientOption {
	if cfg.GoogleCredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsFile)}
}

func setupAppointments(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool) (appointments.Store, error) {
	switch cfg.AppointmentStore {
	case appconfig.StorePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres appointment store requires DATABASE_URL")
		}
		return appointments.NewPostgresStore(pool), nil
	case appconfig.StoreSheets:
		return appointments.NewSheetsStore(ctx, cfg.GoogleSheetID, cfg.GoogleSheetRange, googleOptions(cfg)...)
	default:
		return appointments.NewMemoryStore(), nil
	}
}

func setupCalendar(ctx context.Context, cfg *appconfig.Config) (calendar.Calendar, error) {
	if cfg.GoogleCalendarID == "" {
		return calendar.NewMemoryCalendar(), nil
	}
	return calendar.NewGoogleCalendar(ctx, cfg.GoogleCalendarID, cfg.ClinicTimezone, googleOptions(cfg)...)
}

func setupContexts(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, awsCfg *aws.Config, logger *logging.Logger) (conversation.ContextStore, error) {
	switch cfg.ContextStore {
	case appconfig.StoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis context store requires a reachable REDIS_ADDR")
		}
		return conversation.NewRedisContextStore(redisClient, cfg.ContextTTL, nil), nil
	case appconfig.StoreDynamoDB:
		if awsCfg == nil {
			return nil, fmt.Errorf("dynamodb context store requires AWS configuration")
		}
		return conversation.NewDynamoContextStore(dynamodb.NewFromConfig(*awsCfg), cfg.ContextTable, cfg.ContextTTL, logger), nil
	default:
		store := conversation.NewMemoryContextStore(cfg.ContextTTL)
		go store.RunSweeper(ctx, time.Minute, logger)
		return store, nil
	}
}

// setupLLM returns nil when no provider is configured.
func setupLLM(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) llm.Client {
	var primary, fallback llm.Client
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("failed to initialize gemini", "error", err)
		} else {
			primary = gemini
		}
	}
	if cfg.BedrockModelID != "" && awsCfg != nil {
		fallback = llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID)
	}
	switch {
	case primary != nil:
		return llm.NewFallbackClient(primary, fallback, logger)
	case fallback != nil:
		return fallback
	default:
		return nil
	}
}

func setupNotify(cfg *appconfig.Config, awsCfg *aws.Config, sender *messaging.TwilioSender, logger *logging.Logger) *notify.Service {
	var email notify.EmailSender
	switch {
	case cfg.SendGridAPIKey != "":
		email = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case cfg.SESFromEmail != "" && awsCfg != nil:
		email = notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	default:
		email = notify.NewLogSender(logger)
	}
	var sms notify.SMSSender
	if sender != nil {
		sms = sender
	}
	return notify.NewService(email, sms, notify.Config{
		OpsEmail:   cfg.OpsAlertEmail,
		DoctorID:   cfg.DoctorNotifyID,
		ClinicName: cfg.ClinicName,
	}, logger)
}

func roleResolver(cfg *appconfig.Config) conversation.RoleResolver {
	return func(senderID string) intent.Role {
		if cfg.IsDoctor(senderID) {
			return intent.RoleDoctor
		}
		return intent.RolePatient
	}
}
